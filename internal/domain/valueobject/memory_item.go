package valueobject

import (
	apperrors "github.com/ngoclaw/agentcore/pkg/errors"
)

// MemoryKind is the tagged-variant discriminator for a MemoryItem.
type MemoryKind string

const (
	KindEpisodic   MemoryKind = "episodic"
	KindSemantic   MemoryKind = "semantic"
	KindProcedural MemoryKind = "procedural"
)

// MemoryMetadata carries the optional, non-variant-specific fields of a memory.
type MemoryMetadata struct {
	Source string
	GoalID string
	Tags   []string
}

// MemoryItem is the tagged-variant memory record. Exactly one of the
// per-variant fields is meaningful, selected by Kind; the invariant is
// enforced by the constructors below rather than by the zero value.
type MemoryItem struct {
	ID             string
	Kind           MemoryKind
	Content        string
	CreatedAt      int64 // epoch-ms
	LastAccessedAt *int64

	// Episodic
	EventType string

	// Semantic
	FactConfidence float64

	// Procedural
	PlanSummary string
	SuccessRate float64

	Metadata MemoryMetadata
}

// NewEpisodic constructs an Episodic memory item.
func NewEpisodic(id, content, eventType string, createdAt int64, meta MemoryMetadata) (*MemoryItem, error) {
	if content == "" {
		return nil, apperrors.NewInvalidInputError("memory content must not be empty")
	}
	return &MemoryItem{
		ID: id, Kind: KindEpisodic, Content: content, EventType: eventType,
		CreatedAt: createdAt, Metadata: meta,
	}, nil
}

// NewSemantic constructs a Semantic memory item; factConfidence must be in [0,1].
func NewSemantic(id, content string, factConfidence float64, createdAt int64, meta MemoryMetadata) (*MemoryItem, error) {
	if content == "" {
		return nil, apperrors.NewInvalidInputError("memory content must not be empty")
	}
	if factConfidence < 0 || factConfidence > 1 {
		return nil, apperrors.NewInvalidInputError("factConfidence must be within [0,1]")
	}
	return &MemoryItem{
		ID: id, Kind: KindSemantic, Content: content, FactConfidence: factConfidence,
		CreatedAt: createdAt, Metadata: meta,
	}, nil
}

// NewProcedural constructs a Procedural memory item; successRate must be in [0,1].
func NewProcedural(id, content, planSummary string, successRate float64, createdAt int64, meta MemoryMetadata) (*MemoryItem, error) {
	if content == "" {
		return nil, apperrors.NewInvalidInputError("memory content must not be empty")
	}
	if successRate < 0 || successRate > 1 {
		return nil, apperrors.NewInvalidInputError("successRate must be within [0,1]")
	}
	return &MemoryItem{
		ID: id, Kind: KindProcedural, Content: content, PlanSummary: planSummary,
		SuccessRate: successRate, CreatedAt: createdAt, Metadata: meta,
	}, nil
}

// Validate checks the tagged-variant invariant: the declared Kind must match
// the fields actually populated.
func (m *MemoryItem) Validate() error {
	if m.Content == "" {
		return apperrors.NewInvalidInputError("memory content must not be empty")
	}
	switch m.Kind {
	case KindEpisodic, KindSemantic, KindProcedural:
	default:
		return apperrors.NewInvalidInputError("unknown memory kind: " + string(m.Kind))
	}
	if m.Kind == KindSemantic && (m.FactConfidence < 0 || m.FactConfidence > 1) {
		return apperrors.NewInvalidInputError("factConfidence must be within [0,1]")
	}
	if m.Kind == KindProcedural && (m.SuccessRate < 0 || m.SuccessRate > 1) {
		return apperrors.NewInvalidInputError("successRate must be within [0,1]")
	}
	return nil
}

// Touch sets LastAccessedAt, mimicking the updateAccess lifecycle operation.
func (m *MemoryItem) Touch(nowMS int64) {
	m.LastAccessedAt = &nowMS
}
