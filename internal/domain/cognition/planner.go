package cognition

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
)

// PlanStep is one step of a plan.
type PlanStep struct {
	ID          string
	Description string
	Action      valueobject.CandidateAction
}

// Plan is the planner's output for a goal.
type Plan struct {
	ID        string
	GoalID    string
	CreatedAt int64
	Steps     []PlanStep
}

// Summary renders a plan as one line per step, for procedural memory.
func (p *Plan) Summary() string {
	if p == nil || len(p.Steps) == 0 {
		return ""
	}
	lines := make([]string, len(p.Steps))
	for i, step := range p.Steps {
		lines[i] = fmt.Sprintf("%d. %s", i+1, step.Description)
	}
	return strings.Join(lines, "\n")
}

// Planner produces a plan for a goal given its candidate actions. A nil or
// empty plan means the planner has nothing to add.
type Planner interface {
	Plan(ctx context.Context, goal *valueobject.Goal, candidates []valueobject.CandidateAction) (*Plan, error)
}

// HeuristicPlanner scores each candidate through the world model's
// simulation and plans the single highest-scoring step.
type HeuristicPlanner struct {
	world *WorldModel
	now   func() time.Time
}

// NewHeuristicPlanner builds a planner over the given world model.
func NewHeuristicPlanner(world *WorldModel) *HeuristicPlanner {
	return &HeuristicPlanner{world: world, now: time.Now}
}

// Plan picks the candidate whose simulated score, discounted by predicted
// uncertainty, is highest.
func (p *HeuristicPlanner) Plan(_ context.Context, goal *valueobject.Goal, candidates []valueobject.CandidateAction) (*Plan, error) {
	if goal == nil || len(candidates) == 0 {
		return nil, nil
	}

	bestIdx := 0
	bestScore := -1.0
	for i, candidate := range candidates {
		pred := p.world.Simulate(candidate)
		score := pred.Score * (1 - pred.Uncertainty)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	chosen := candidates[bestIdx]
	return &Plan{
		ID:        uuid.NewString(),
		GoalID:    goal.ID,
		CreatedAt: p.now().UnixMilli(),
		Steps: []PlanStep{{
			ID:          uuid.NewString(),
			Description: fmt.Sprintf("Execute %s toward goal %q", chosen.Type, goal.Title),
			Action:      chosen,
		}},
	}, nil
}
