package cognition

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ngoclaw/agentcore/internal/domain/memory"
	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
)

const (
	llmMaxTokens   = 512
	llmTemperature = 0.2
	contextLimit   = 5

	// defaultRepeatLimit bounds consecutive identical decisions across runs
	// of the same cycle before the run is aborted instead of looping.
	defaultRepeatLimit = 3
)

// Deps are the collaborators a Cycle composes per run.
type Deps struct {
	Environment Environment
	Memory      Memory
	Goals       *GoalStack
	World       *WorldModel
	Self        *valueobject.SelfModel
	Planner     Planner
	LLM         LLMClient
	Filter      PromptFilter
	Validator   OutputValidator
	Gate        PermissionGate
	Audit       AuditEmitter
	Logger      *zap.Logger
}

// RunOptions parameterize one RunOnce invocation.
type RunOptions struct {
	RequestID string
	DryRun    valueobject.DryRunMode
	// Progress, when set, observes each state as it is entered.
	Progress func(state valueobject.StateLabel)
}

// Cycle is the single-pass cognitive state machine: observe, retrieve,
// plan, query the LLM, validate, authorize, act, learn. Each entered state
// is appended to the run's StateTrace. One Cycle serves one scoped request
// pipeline; RunOnce may be called repeatedly on it.
type Cycle struct {
	deps        Deps
	now         func() time.Time
	newID       func() string
	repeatLimit int

	lastDecisionKey string
	repeatCount     int
}

// CycleOption customizes a Cycle.
type CycleOption func(*Cycle)

// WithCycleClock overrides the time source for tests.
func WithCycleClock(now func() time.Time) CycleOption {
	return func(c *Cycle) { c.now = now }
}

// WithRepeatLimit overrides the consecutive-identical-decision bound.
func WithRepeatLimit(limit int) CycleOption {
	return func(c *Cycle) { c.repeatLimit = limit }
}

// NewCycle wires a cycle from its collaborators.
func NewCycle(deps Deps, opts ...CycleOption) *Cycle {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	c := &Cycle{
		deps:        deps,
		now:         time.Now,
		newID:       uuid.NewString,
		repeatLimit: defaultRepeatLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run carries the per-invocation mutable state.
type run struct {
	opts  RunOptions
	trace []valueobject.StateLabel
	start time.Time
}

func (r *run) enter(state valueobject.StateLabel, progress func(valueobject.StateLabel)) {
	r.trace = append(r.trace, state)
	if progress != nil {
		progress(state)
	}
}

// RunOnce executes one cognitive cycle. It never returns a Go error: every
// failure is captured, audited, and surfaced as a RunResult with status
// "error". The caller bounds the run with its context deadline.
func (c *Cycle) RunOnce(ctx context.Context, opts RunOptions) (result *valueobject.RunResult) {
	r := &run{opts: opts, start: c.now()}

	defer func() {
		if rec := recover(); rec != nil {
			c.deps.Logger.Error("cycle panicked", zap.Any("panic", rec))
			result = c.errorResult(ctx, r, fmt.Sprintf("internal error: %v", rec))
		}
		if result != nil {
			result.DurationMS = c.now().Sub(r.start).Milliseconds()
		}
	}()

	// 1. Observe.
	r.enter(valueobject.StateObserve, opts.Progress)
	obs, err := c.deps.Environment.Observe(ctx)
	if err != nil {
		return c.errorResult(ctx, r, "observation failed: "+err.Error())
	}

	// 2. Sanitize the observation before anything downstream sees it.
	r.enter(valueobject.StateRetrieveMemory, opts.Progress)
	obsJSON, err := json.Marshal(obs.State)
	if err != nil {
		return c.errorResult(ctx, r, "Invalid observation: "+err.Error())
	}
	filtered := c.deps.Filter.Sanitize(string(obsJSON))
	if filtered.Flagged {
		return c.errorResult(ctx, r, "Prompt injection detected: "+strings.Join(filtered.Reasons, ", "))
	}

	// 3. Retrieve context.
	activeGoals := c.deps.Goals.ListActive()
	memoryContext, err := c.deps.Memory.InjectForPrompt(ctx, memory.QueryRequest{
		Text:  filtered.Sanitized,
		Limit: contextLimit,
		Goals: activeGoals,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return c.errorResult(ctx, r, "run timed out")
		}
		c.deps.Logger.Warn("memory retrieval failed, continuing without context", zap.Error(err))
		memoryContext = ""
	}

	// 4. Update internal models.
	r.enter(valueobject.StateUpdateWorld, opts.Progress)
	c.deps.World.UpdateFromObservation(obs)
	r.enter(valueobject.StateUpdateSelf, opts.Progress)
	selfSnapshot := c.deps.Self.Snapshot()

	// 5. Resolve the next goal.
	r.enter(valueobject.StatePlanGoals, opts.Progress)
	goal := c.deps.Goals.ResolveNext()
	if goal == nil {
		r.enter(valueobject.StateIdle, opts.Progress)
		return &valueobject.RunResult{Status: valueobject.RunIdle, StateTrace: r.trace}
	}

	// 6. Candidate actions.
	candidates := goal.CandidateActions
	if len(candidates) == 0 {
		candidates = []valueobject.CandidateAction{{
			Type:    "pursue_goal",
			Payload: map[string]any{"goalId": goal.ID},
		}}
	}

	// 7. Plan; a non-empty plan is remembered procedurally.
	r.enter(valueobject.StateSimulate, opts.Progress)
	plan, err := c.deps.Planner.Plan(ctx, goal, candidates)
	if err != nil {
		c.deps.Logger.Warn("planner failed, continuing without plan", zap.Error(err))
		plan = nil
	}
	dryRun := opts.DryRun != ""
	if plan != nil && len(plan.Steps) > 0 && !dryRun {
		if _, err := c.deps.Memory.AddProcedural(ctx, c.newID(),
			"Plan for goal "+goal.Title+":\n"+plan.Summary(), plan.Summary(), 0.5,
			valueobject.MemoryMetadata{Source: "planner", GoalID: goal.ID}); err != nil {
			c.deps.Logger.Warn("failed to persist plan memory", zap.Error(err))
		}
	}

	// 8-9. Build the LLM request, honoring dry-run modes.
	var decision *valueobject.Decision
	if opts.DryRun == valueobject.DryRunWithoutLLM {
		confidence := 0.5
		decision = &valueobject.Decision{
			ActionType:    "pursue_goal",
			ActionPayload: map[string]any{"goalId": goal.ID},
			Confidence:    &confidence,
			Reasoning:     "Dry run (without LLM): synthesized decision",
		}
		r.enter(valueobject.StateDryRun, opts.Progress)
		return &valueobject.RunResult{
			Status:         valueobject.RunDryRun,
			DryRunMode:     opts.DryRun,
			Decision:       decision,
			ActionResult:   &valueobject.ActionResult{Success: true, Skipped: true},
			SelectedGoalID: goal.ID,
			StateTrace:     r.trace,
		}
	}

	request := c.buildLLMRequest(goal, memoryContext, plan, filtered.Sanitized, selfSnapshot)

	r.enter(valueobject.StateQueryLLM, opts.Progress)
	c.deps.Audit.Emit(ctx, valueobject.EventLLMRequest, map[string]any{
		"goalId":    goal.ID,
		"maxTokens": request.MaxTokens,
		"messages":  len(request.Messages),
	})
	response, err := c.deps.LLM.Generate(ctx, request)
	if err != nil {
		if ctx.Err() != nil {
			return c.errorResult(ctx, r, "run timed out")
		}
		return c.errorResult(ctx, r, "LLM request failed: "+err.Error())
	}

	// 10. Validate: parse, unsafe-key check, and schema form one atomic
	// classification with no suspension in between.
	r.enter(valueobject.StateValidateOutput, opts.Progress)
	validation := c.deps.Validator.Validate(response.Text)
	if !validation.Success {
		return c.errorResult(ctx, r, "Invalid LLM output: "+strings.Join(validation.Errors, "; "))
	}
	decision = validation.Decision

	if opts.DryRun == valueobject.DryRunWithLLM {
		r.enter(valueobject.StateDryRun, opts.Progress)
		return &valueobject.RunResult{
			Status:         valueobject.RunDryRun,
			DryRunMode:     opts.DryRun,
			Decision:       decision,
			ActionResult:   &valueobject.ActionResult{Success: true, Skipped: true},
			SelectedGoalID: goal.ID,
			StateTrace:     r.trace,
		}
	}

	if err := c.checkRepeat(decision); err != nil {
		return c.errorResult(ctx, r, err.Error())
	}

	// 11. Authorize. The decision is audited before the environment acts on
	// it, so the audit record always precedes the tool call.
	allowed, reason := c.deps.Gate.IsAllowed(decision, goal.ID)
	if !allowed {
		return c.errorResult(ctx, r, "Action not permitted: "+reason)
	}
	c.deps.Audit.Emit(ctx, valueobject.EventAgentDecision, map[string]any{
		"goalId":     goal.ID,
		"actionType": decision.ActionType,
		"payload":    decision.ActionPayload,
		"reasoning":  decision.Reasoning,
	})

	// 12. Act.
	r.enter(valueobject.StateAct, opts.Progress)
	actionResult, err := c.deps.Environment.Act(ctx, decision)
	if err != nil {
		if ctx.Err() != nil {
			return c.errorResult(ctx, r, "run timed out")
		}
		return c.errorResult(ctx, r, "action failed: "+err.Error())
	}
	c.deps.Audit.Emit(ctx, valueobject.EventToolCall, map[string]any{
		"actionType": decision.ActionType,
		"success":    actionResult.Success,
	})

	// 13. Store the outcome.
	r.enter(valueobject.StateStoreResults, opts.Progress)
	c.deps.World.UpdateFromResult(c.now().UnixMilli(), actionResult)
	outcome := "failure"
	if actionResult.Success {
		outcome = "success"
	}
	if _, err := c.deps.Memory.AddEpisodic(ctx, c.newID(),
		fmt.Sprintf("Action %s => %s", decision.ActionType, outcome), "action_outcome",
		valueobject.MemoryMetadata{Source: "cycle", GoalID: goal.ID}); err != nil {
		c.deps.Logger.Warn("failed to persist outcome memory", zap.Error(err))
	}

	// 14. Learn.
	r.enter(valueobject.StateLearn, opts.Progress)
	c.deps.Self.RecordOutcome(actionResult.Success)
	status := valueobject.GoalFailed
	if actionResult.Success {
		status = valueobject.GoalCompleted
	}
	if err := c.deps.Goals.SetStatus(goal.ID, status); err != nil {
		c.deps.Logger.Warn("failed to update goal status", zap.Error(err))
	}

	r.enter(valueobject.StateComplete, opts.Progress)
	return &valueobject.RunResult{
		Status:         valueobject.RunCompleted,
		Decision:       decision,
		ActionResult:   actionResult,
		SelectedGoalID: goal.ID,
		StateTrace:     r.trace,
	}
}

// buildLLMRequest assembles the system and user messages. Every fragment
// interpolated into the system prompt passes through the injection filter
// again: memory content and goal text are attacker-reachable.
func (c *Cycle) buildLLMRequest(goal *valueobject.Goal, memoryContext string, plan *Plan, observation string, self valueobject.SelfModel) valueobject.LLMRequest {
	clean := func(s string) string {
		return c.deps.Filter.Sanitize(s).Sanitized
	}

	var system strings.Builder
	system.WriteString("You are an autonomous agent. Choose exactly one action and answer with a JSON object ")
	system.WriteString(`{"actionType": string, "actionPayload": object, "confidence": number, "reasoning": string}.`)
	system.WriteString("\n\nCurrent goal: " + clean(goal.Title))
	if goal.Description != "" {
		system.WriteString("\nGoal description: " + clean(goal.Description))
	}
	if memoryContext != "" {
		system.WriteString("\n\nRelevant memories:\n" + clean(memoryContext))
	}
	if plan != nil && len(plan.Steps) > 0 {
		system.WriteString("\n\nProposed plan:\n" + clean(plan.Summary()))
	}
	system.WriteString(fmt.Sprintf("\n\nSelf-assessment: reliability %.2f, confidence %.2f.",
		self.Reliability, self.Confidence))

	return valueobject.LLMRequest{
		Messages: []valueobject.LLMMessage{
			{Role: "system", Content: system.String()},
			{Role: "user", Content: "Observation: " + observation},
		},
		MaxTokens:   llmMaxTokens,
		Temperature: llmTemperature,
	}
}

// checkRepeat aborts when the same decision keeps being chosen run after
// run, which indicates the model is stuck rather than making progress.
func (c *Cycle) checkRepeat(decision *valueobject.Decision) error {
	payload, _ := json.Marshal(decision.ActionPayload)
	key := decision.ActionType + "|" + string(payload)
	if key == c.lastDecisionKey {
		c.repeatCount++
	} else {
		c.lastDecisionKey = key
		c.repeatCount = 1
	}
	if c.repeatCount > c.repeatLimit {
		return fmt.Errorf("aborting run: action %s repeated %d consecutive times", decision.ActionType, c.repeatCount)
	}
	return nil
}

func (c *Cycle) errorResult(ctx context.Context, r *run, message string) *valueobject.RunResult {
	r.enter(valueobject.StateError, r.opts.Progress)
	c.deps.Audit.Emit(ctx, valueobject.EventError, map[string]any{
		"error":      message,
		"stateTrace": r.trace,
	})
	return &valueobject.RunResult{
		Status:     valueobject.RunError,
		Error:      message,
		StateTrace: r.trace,
	}
}
