package cognition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
)

func TestHeuristicPlanner_PicksHighestSimulatedCandidate(t *testing.T) {
	world := NewWorldModel(0,
		stubPredictor{actionType: "restart", prediction: Prediction{Score: 0.9, Uncertainty: 0.1}},
		stubPredictor{actionType: "scale", prediction: Prediction{Score: 0.9, Uncertainty: 0.8}},
	)
	p := NewHeuristicPlanner(world)

	g := goal("g1", 1)
	plan, err := p.Plan(context.Background(), g, []valueobject.CandidateAction{
		{Type: "scale"},
		{Type: "restart"},
	})
	require.NoError(t, err)
	require.NotNil(t, plan)
	require.Len(t, plan.Steps, 1)

	assert.Equal(t, "g1", plan.GoalID)
	assert.Equal(t, "restart", plan.Steps[0].Action.Type)
	assert.NotEmpty(t, plan.ID)
	assert.NotEmpty(t, plan.Steps[0].ID)
	assert.Contains(t, plan.Summary(), "restart")
}

func TestHeuristicPlanner_NoCandidatesNoPlan(t *testing.T) {
	p := NewHeuristicPlanner(NewWorldModel(0))

	plan, err := p.Plan(context.Background(), goal("g1", 1), nil)
	require.NoError(t, err)
	assert.Nil(t, plan)

	plan, err = p.Plan(context.Background(), nil, []valueobject.CandidateAction{{Type: "x"}})
	require.NoError(t, err)
	assert.Nil(t, plan)
}

func TestPlanSummary_Empty(t *testing.T) {
	var p *Plan
	assert.Empty(t, p.Summary())
	assert.Empty(t, (&Plan{}).Summary())
}
