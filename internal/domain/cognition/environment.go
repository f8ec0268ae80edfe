// Package cognition contains the agent's internal models (world, goals,
// planner) and the cognitive cycle state machine that drives one run.
package cognition

import (
	"context"

	"github.com/ngoclaw/agentcore/internal/domain/memory"
	"github.com/ngoclaw/agentcore/internal/domain/promptsafety"
	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
)

// Observation is what the environment reports at the start of a run.
type Observation struct {
	Timestamp int64
	State     map[string]any
	Events    []string
}

// Environment is the boundary the cycle senses and acts through. Act
// receives the validated, authorized decision.
type Environment interface {
	Observe(ctx context.Context) (*Observation, error)
	Act(ctx context.Context, decision *valueobject.Decision) (*valueobject.ActionResult, error)
}

// LLMClient generates a completion for the request the cycle builds.
type LLMClient interface {
	Generate(ctx context.Context, req valueobject.LLMRequest) (valueobject.LLMResponse, error)
}

// PromptFilter classifies text for injection attempts.
type PromptFilter interface {
	Sanitize(text string) promptsafety.FilterResult
}

// OutputValidator classifies raw LLM text into a decision.
type OutputValidator interface {
	Validate(raw string) promptsafety.ValidationResult
}

// PermissionGate authorizes a decision before the environment acts on it.
type PermissionGate interface {
	IsAllowed(decision *valueobject.Decision, goalID string) (bool, string)
}

// AuditEmitter records structured events. Implementations must never let a
// logging failure change the run's outcome.
type AuditEmitter interface {
	Emit(ctx context.Context, eventType valueobject.AuditEventType, data map[string]any)
}

// Memory is the capability set the cycle needs from the (scoped) memory
// manager.
type Memory interface {
	AddEpisodic(ctx context.Context, id, content, eventType string, meta valueobject.MemoryMetadata) (*valueobject.MemoryItem, error)
	AddProcedural(ctx context.Context, id, content, planSummary string, successRate float64, meta valueobject.MemoryMetadata) (*valueobject.MemoryItem, error)
	InjectForPrompt(ctx context.Context, req memory.QueryRequest) (string, error)
}
