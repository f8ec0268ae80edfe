// Package memory implements the tenant-scoped memory subsystem: hybrid-scored
// vector retrieval, atomic writes with vector-store rollback, and the scoped
// wrapper that enforces isolation between tenants and requests.
package memory

import (
	"context"

	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
)

// VectorRecord is what the memory manager upserts into a vector store
// alongside each memory item.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// VectorMatch is one similarity hit returned by a vector store.
type VectorMatch struct {
	ID         string
	Similarity float64
}

// Filter restricts a vector search by metadata. Each key maps to the set of
// acceptable values (any-of); an empty filter matches everything. Stores are
// expected to push the filter down into the search itself so the manager does
// not have to over-sample.
type Filter map[string][]string

// Metadata keys the manager writes on every vector record.
const (
	MetaType   = "type"
	MetaGoalID = "goalId"
	MetaScope  = "scope"
)

// VectorStore is the similarity index the manager writes through to.
// Implementations live in infrastructure (in-process, LanceDB).
type VectorStore interface {
	Upsert(ctx context.Context, rec VectorRecord) error
	Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]VectorMatch, error)
	Delete(ctx context.Context, id string) error
}

// EmbeddingProvider turns text into a vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Repository is the durable memory record store. Save has upsert-on-id
// semantics; Get returns a NotFound AppError for unknown ids.
type Repository interface {
	Save(ctx context.Context, item *valueobject.MemoryItem) error
	Get(ctx context.Context, id string) (*valueobject.MemoryItem, error)
	Delete(ctx context.Context, id string) error
	UpdateAccess(ctx context.Context, id string, accessedAtMS int64) error
}

// PoisonGuard vets memory content before it is written. A non-nil error
// blocks the write.
type PoisonGuard interface {
	Check(ctx context.Context, item *valueobject.MemoryItem) error
}

// Store is the capability set the cognitive cycle needs from memory. Both
// Manager and ScopedManager satisfy it.
type Store interface {
	AddEpisodic(ctx context.Context, id, content, eventType string, meta valueobject.MemoryMetadata) (*valueobject.MemoryItem, error)
	AddSemantic(ctx context.Context, id, content string, factConfidence float64, meta valueobject.MemoryMetadata) (*valueobject.MemoryItem, error)
	AddProcedural(ctx context.Context, id, content, planSummary string, successRate float64, meta valueobject.MemoryMetadata) (*valueobject.MemoryItem, error)
	Query(ctx context.Context, req QueryRequest) ([]valueobject.SearchResult, error)
	InjectForPrompt(ctx context.Context, req QueryRequest) (string, error)
}

// QueryRequest parameterizes a memory search.
type QueryRequest struct {
	Text  string
	Limit int
	// Kinds restricts results to the given memory kinds. A single kind is
	// pushed down as an equality filter, several as an any-of filter.
	Kinds []valueobject.MemoryKind
	// Scope restricts the search to one scope's records. The scoped wrapper
	// sets this; direct callers normally leave it empty.
	Scope string
	// Goals feed the goal-relevance component of the hybrid score.
	Goals []*valueobject.Goal
}
