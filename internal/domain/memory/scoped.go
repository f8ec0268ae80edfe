package memory

import (
	"context"

	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
)

// oversampleFloor is the minimum expanded limit a scoped read issues to the
// base manager. When other scopes hold many more embeddings than this one,
// an unexpanded query could return nothing but foreign-scope hits; the
// expansion plus post-filter defeats that dilution.
const oversampleFloor = 100

// ScopedManager wraps a base Store and confines it to one scope. Writes get
// the scope prefix applied to their ids; reads are expanded, post-filtered to
// the scope, stripped of the prefix, and truncated back to the caller's
// limit. In non-persisting mode (anonymous requests) both directions are
// no-ops.
type ScopedManager struct {
	base       Store
	scope      valueobject.Scope
	persisting bool
}

// NewScopedManager validates the scope and wraps base. persisting=false
// yields the ephemeral, no-op view used for unauthenticated requests.
func NewScopedManager(base Store, scope string, persisting bool) (*ScopedManager, error) {
	s, err := valueobject.NewScope(scope)
	if err != nil {
		return nil, err
	}
	return &ScopedManager{base: base, scope: s, persisting: persisting}, nil
}

// Scope returns the wrapper's scope.
func (s *ScopedManager) Scope() string {
	return string(s.scope)
}

// AddEpisodic stores an episodic memory under the scope.
func (s *ScopedManager) AddEpisodic(ctx context.Context, id, content, eventType string, meta valueobject.MemoryMetadata) (*valueobject.MemoryItem, error) {
	if !s.persisting {
		return valueobject.NewEpisodic(id, content, eventType, 0, meta)
	}
	item, err := s.base.AddEpisodic(ctx, s.scope.Apply(id), content, eventType, meta)
	if err != nil {
		return nil, err
	}
	return s.unscoped(item), nil
}

// AddSemantic stores a semantic memory under the scope.
func (s *ScopedManager) AddSemantic(ctx context.Context, id, content string, factConfidence float64, meta valueobject.MemoryMetadata) (*valueobject.MemoryItem, error) {
	if !s.persisting {
		return valueobject.NewSemantic(id, content, factConfidence, 0, meta)
	}
	item, err := s.base.AddSemantic(ctx, s.scope.Apply(id), content, factConfidence, meta)
	if err != nil {
		return nil, err
	}
	return s.unscoped(item), nil
}

// AddProcedural stores a procedural memory under the scope.
func (s *ScopedManager) AddProcedural(ctx context.Context, id, content, planSummary string, successRate float64, meta valueobject.MemoryMetadata) (*valueobject.MemoryItem, error) {
	if !s.persisting {
		return valueobject.NewProcedural(id, content, planSummary, successRate, 0, meta)
	}
	item, err := s.base.AddProcedural(ctx, s.scope.Apply(id), content, planSummary, successRate, meta)
	if err != nil {
		return nil, err
	}
	return s.unscoped(item), nil
}

// Query issues an expanded, scope-filtered query against the base manager,
// keeps only hits physically prefixed with this scope, strips the prefix,
// and truncates to the original limit preserving the base manager's order.
func (s *ScopedManager) Query(ctx context.Context, req QueryRequest) ([]valueobject.SearchResult, error) {
	if !s.persisting {
		return nil, nil
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	expanded := req
	expanded.Scope = string(s.scope)
	expanded.Limit = limit * 10
	if expanded.Limit < oversampleFloor {
		expanded.Limit = oversampleFloor
	}

	results, err := s.base.Query(ctx, expanded)
	if err != nil {
		return nil, err
	}

	scoped := make([]valueobject.SearchResult, 0, limit)
	for _, r := range results {
		if !valueobject.HasScope(s.scope, r.Memory.ID) {
			continue
		}
		r.Memory = s.unscoped(r.Memory)
		scoped = append(scoped, r)
		if len(scoped) == limit {
			break
		}
	}
	return scoped, nil
}

// InjectForPrompt formats scoped query results for prompt interpolation.
func (s *ScopedManager) InjectForPrompt(ctx context.Context, req QueryRequest) (string, error) {
	if !s.persisting {
		return "", nil
	}
	return injectForPrompt(ctx, s, req)
}

// unscoped returns a copy of item with the physical scope prefix removed, so
// callers outside the scope never observe physical ids.
func (s *ScopedManager) unscoped(item *valueobject.MemoryItem) *valueobject.MemoryItem {
	copied := *item
	copied.ID = valueobject.StripScope(s.scope, item.ID)
	return &copied
}
