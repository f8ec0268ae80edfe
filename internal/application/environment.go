package application

import (
	"context"

	"github.com/ngoclaw/agentcore/internal/domain/cognition"
	"github.com/ngoclaw/agentcore/internal/domain/tool"
	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
	apperrors "github.com/ngoclaw/agentcore/pkg/errors"
)

// pursueGoalAction is the synthesized action type that requires no tool: it
// acknowledges the goal without touching the sandbox.
const pursueGoalAction = "pursue_goal"

// ToolEnvironment is the episodic, per-request environment: it replays the
// request's observation once and routes actions through the tool sandbox.
type ToolEnvironment struct {
	observation *cognition.Observation
	runner      *tool.Runner
	requestID   string
}

// NewToolEnvironment builds the environment for one request.
func NewToolEnvironment(observation *cognition.Observation, runner *tool.Runner, requestID string) *ToolEnvironment {
	return &ToolEnvironment{observation: observation, runner: runner, requestID: requestID}
}

// Observe returns the request's observation.
func (e *ToolEnvironment) Observe(context.Context) (*cognition.Observation, error) {
	if e.observation == nil {
		return nil, apperrors.NewInvalidInputError("Invalid request: missing observation")
	}
	return e.observation, nil
}

// Act executes the decision. pursue_goal is acknowledged in place; any other
// action type must name a sandboxed tool.
func (e *ToolEnvironment) Act(ctx context.Context, decision *valueobject.Decision) (*valueobject.ActionResult, error) {
	if decision.ActionType == pursueGoalAction {
		return &valueobject.ActionResult{
			Success: true,
			Output:  map[string]any{"acknowledged": true},
		}, nil
	}

	result := e.runner.Execute(ctx, decision.ActionType, decision.ActionPayload, e.requestID)
	return &valueobject.ActionResult{
		Success: result.Success,
		Output:  result.Output,
		Error:   result.Error,
	}, nil
}
