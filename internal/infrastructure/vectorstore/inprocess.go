// Package vectorstore provides the similarity indexes behind the memory
// manager: an in-process store for tests and single-node deployments, and a
// LanceDB-backed store for persistent installs.
package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/ngoclaw/agentcore/internal/domain/memory"
	apperrors "github.com/ngoclaw/agentcore/pkg/errors"
)

// InProcessVectorStore is a mutex-guarded cosine-similarity index. All
// vectors must share one dimension, fixed by the first upsert.
type InProcessVectorStore struct {
	mu        sync.RWMutex
	records   map[string]memory.VectorRecord
	dimension int
}

// NewInProcessVectorStore returns an empty in-process store.
func NewInProcessVectorStore() *InProcessVectorStore {
	return &InProcessVectorStore{records: make(map[string]memory.VectorRecord)}
}

// Upsert inserts or replaces a record, validating dimension and finiteness.
func (s *InProcessVectorStore) Upsert(_ context.Context, rec memory.VectorRecord) error {
	if len(rec.Vector) == 0 {
		return apperrors.NewInvalidInputError("vector must not be empty")
	}
	for _, v := range rec.Vector {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return apperrors.NewInvalidInputError("vector components must be finite")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		s.dimension = len(rec.Vector)
	} else if len(rec.Vector) != s.dimension {
		return apperrors.NewInvalidInputError("vector dimension mismatch")
	}

	stored := rec
	stored.Vector = append([]float32(nil), rec.Vector...)
	stored.Metadata = make(map[string]string, len(rec.Metadata))
	for k, v := range rec.Metadata {
		stored.Metadata[k] = v
	}
	s.records[rec.ID] = stored
	return nil
}

// Search returns the topK most cosine-similar records passing the filter.
func (s *InProcessVectorStore) Search(_ context.Context, vector []float32, topK int, filter memory.Filter) ([]memory.VectorMatch, error) {
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]memory.VectorMatch, 0, len(s.records))
	for _, rec := range s.records {
		if !matchesFilter(rec.Metadata, filter) {
			continue
		}
		matches = append(matches, memory.VectorMatch{
			ID:         rec.ID,
			Similarity: cosineSimilarity(vector, rec.Vector),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Delete removes a record; deleting an unknown id is not an error.
func (s *InProcessVectorStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// Len reports the number of stored records.
func (s *InProcessVectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Has reports whether an id is present, for containment checks in tests.
func (s *InProcessVectorStore) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok
}

func matchesFilter(meta map[string]string, filter memory.Filter) bool {
	for key, accepted := range filter {
		if len(accepted) == 0 {
			continue
		}
		value, ok := meta[key]
		if !ok {
			return false
		}
		found := false
		for _, a := range accepted {
			if a == value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
