package cognition

import (
	"sort"
	"sync"
	"time"

	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
	apperrors "github.com/ngoclaw/agentcore/pkg/errors"
)

// GoalStack owns every goal mutation for a run. It resolves the next goal by
// priority, ties broken by insertion order.
type GoalStack struct {
	mu    sync.Mutex
	goals map[string]*valueobject.Goal
	seq   int64
	now   func() time.Time
}

// NewGoalStack returns an empty goal stack.
func NewGoalStack() *GoalStack {
	return &GoalStack{
		goals: make(map[string]*valueobject.Goal),
		now:   time.Now,
	}
}

// Add registers a goal. A duplicate id is a Conflict error; a goal with no
// status is activated.
func (s *GoalStack) Add(goal *valueobject.Goal) error {
	if goal == nil || goal.ID == "" {
		return apperrors.NewInvalidInputError("goal id must not be empty")
	}
	if goal.Priority < 0 {
		return apperrors.NewInvalidInputError("goal priority must be >= 0")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.goals[goal.ID]; exists {
		return apperrors.NewConflictError("goal already exists: " + goal.ID)
	}

	copied := *goal
	if copied.Status == "" {
		copied.Status = valueobject.GoalActive
	}
	nowMS := s.now().UnixMilli()
	if copied.CreatedAt == 0 {
		copied.CreatedAt = nowMS
	}
	copied.UpdatedAt = nowMS
	s.seq++
	copied.InsertionSeq = s.seq
	s.goals[copied.ID] = &copied
	return nil
}

// ResolveNext returns the highest-priority active goal, or nil when no goal
// is active.
func (s *GoalStack) ResolveNext() *valueobject.Goal {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *valueobject.Goal
	for _, g := range s.goals {
		if g.Status != valueobject.GoalActive {
			continue
		}
		if best == nil ||
			g.Priority > best.Priority ||
			(g.Priority == best.Priority && g.InsertionSeq < best.InsertionSeq) {
			best = g
		}
	}
	if best == nil {
		return nil
	}
	copied := *best
	return &copied
}

// ListActive returns the active goals ordered by priority then insertion.
func (s *GoalStack) ListActive() []*valueobject.Goal {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]*valueobject.Goal, 0, len(s.goals))
	for _, g := range s.goals {
		if g.Status == valueobject.GoalActive {
			copied := *g
			active = append(active, &copied)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority > active[j].Priority
		}
		return active[i].InsertionSeq < active[j].InsertionSeq
	})
	return active
}

// SetStatus transitions a goal's lifecycle state.
func (s *GoalStack) SetStatus(id string, status valueobject.GoalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	goal, ok := s.goals[id]
	if !ok {
		return apperrors.NewNotFoundError("goal not found: " + id)
	}
	goal.Status = status
	goal.UpdatedAt = s.now().UnixMilli()
	return nil
}

// Get returns a copy of the goal with the given id.
func (s *GoalStack) Get(id string) (*valueobject.Goal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	goal, ok := s.goals[id]
	if !ok {
		return nil, false
	}
	copied := *goal
	return &copied, true
}
