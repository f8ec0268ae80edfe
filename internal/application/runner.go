package application

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ngoclaw/agentcore/internal/domain/audit"
	"github.com/ngoclaw/agentcore/internal/domain/cognition"
	"github.com/ngoclaw/agentcore/internal/domain/memory"
	"github.com/ngoclaw/agentcore/internal/domain/safety"
	"github.com/ngoclaw/agentcore/internal/domain/tool"
	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
	"github.com/ngoclaw/agentcore/internal/infrastructure/monitoring"
	"github.com/ngoclaw/agentcore/internal/infrastructure/observability"
	apperrors "github.com/ngoclaw/agentcore/pkg/errors"
)

// Request is one run-once invocation as the transport hands it over.
type Request struct {
	Observation *cognition.Observation
	Goal        *valueobject.Goal
	TenantID    string // client-claimed tenant, verified against the principal
	AuthHeader  string
	DryRun      valueobject.DryRunMode
	// MultiAct repeats the cycle while goals stay active, bounded by the
	// configured max step count.
	MultiAct bool
}

// RunnerConfig bounds and tunes the request runner.
type RunnerConfig struct {
	RunTimeout       time.Duration
	MaxMultiActSteps int
	// ObservabilityEnabled gates run_start/run_progress/run_complete events.
	ObservabilityEnabled bool
}

// RunnerDeps are the shared collaborators every request pipeline draws from.
type RunnerDeps struct {
	Memory     *memory.Manager
	ToolRunner *tool.Runner
	LLM        cognition.LLMClient
	Filter     cognition.PromptFilter
	Validator  cognition.OutputValidator
	Gate       cognition.PermissionGate
	Audit      *audit.Logger
	Auth       *Authenticator
	Limiter    *safety.RateLimiter
	ObsStore   *observability.Store
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger
}

// Runner authenticates a request, builds its scoped pipeline, and drives the
// cognitive cycle under the configured deadline.
type Runner struct {
	cfg  RunnerConfig
	deps RunnerDeps
	now  func() time.Time
}

// NewRunner builds a request runner.
func NewRunner(cfg RunnerConfig, deps RunnerDeps) *Runner {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}
	if cfg.MaxMultiActSteps <= 0 {
		cfg.MaxMultiActSteps = 10
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, deps: deps, now: time.Now}
}

// Run executes the request. Transport-level rejections (auth, tenant
// mismatch, rate limit, invalid request) surface as AppErrors; everything
// that happens inside the cycle surfaces through the RunResult.
func (r *Runner) Run(ctx context.Context, req Request) (*valueobject.RunResult, error) {
	principal, err := r.deps.Auth.Authenticate(req.AuthHeader, req.TenantID)
	if err != nil {
		return nil, err
	}

	limiterKey := "anonymous"
	if principal.Authenticated {
		limiterKey = principal.TenantID
	}
	if r.deps.Limiter != nil {
		if err := r.deps.Limiter.Allow(limiterKey, 1); err != nil {
			return nil, err
		}
	}

	requestID := "req-" + uuid.NewString()
	if requestID == principal.TenantID {
		requestID = "req-" + uuid.NewString()
	}

	// Authenticated tenants get persistent, tenant-scoped memory; anonymous
	// requests get an ephemeral request-scoped view that never persists.
	scope, persisting := requestID, false
	if principal.Authenticated {
		scope, persisting = principal.TenantID, true
	}
	scoped, err := memory.NewScopedManager(r.deps.Memory, scope, persisting)
	if err != nil {
		return nil, err
	}

	goals := cognition.NewGoalStack()
	if req.Goal != nil {
		if err := goals.Add(req.Goal); err != nil {
			return nil, err
		}
	}

	world := cognition.NewWorldModel(r.now().UnixMilli())
	emitter := r.deps.Audit.WithContext(principal.TenantID, requestID)

	cycle := cognition.NewCycle(cognition.Deps{
		Environment: NewToolEnvironment(req.Observation, r.deps.ToolRunner, requestID),
		Memory:      scoped,
		Goals:       goals,
		World:       world,
		Self:        valueobject.NewSelfModel(),
		Planner:     cognition.NewHeuristicPlanner(world),
		LLM:         r.deps.LLM,
		Filter:      r.deps.Filter,
		Validator:   r.deps.Validator,
		Gate:        r.deps.Gate,
		Audit:       emitter,
		Logger:      r.deps.Logger,
	})

	opts := cognition.RunOptions{RequestID: requestID, DryRun: req.DryRun}
	if r.cfg.ObservabilityEnabled {
		emitter.Emit(ctx, valueobject.EventRunStart, map[string]any{
			"dryRun":   string(req.DryRun),
			"multiAct": req.MultiAct,
		})
		opts.Progress = func(state valueobject.StateLabel) {
			emitter.Emit(ctx, valueobject.EventRunProgress, map[string]any{"state": string(state)})
		}
	}

	result := r.runWithDeadline(ctx, cycle, opts, req.MultiAct)

	if r.cfg.ObservabilityEnabled {
		emitter.Emit(ctx, valueobject.EventRunComplete, map[string]any{
			"status":     string(result.Status),
			"durationMs": result.DurationMS,
		})
	}
	if r.deps.ObsStore != nil {
		r.deps.ObsStore.RecordRun(observability.RunRecord{
			RequestID:  requestID,
			TenantID:   principal.TenantID,
			Status:     result.Status,
			Error:      result.Error,
			StateTrace: result.StateTrace,
			DurationMS: result.DurationMS,
			Timestamp:  r.now(),
		})
	}
	if r.deps.Metrics != nil {
		r.deps.Metrics.ObserveRun(result.Status, result.DurationMS)
	}
	return result, nil
}

// runWithDeadline drives the cycle under the run timeout. A deadline that
// fires before the cycle finishes yields a timeout-classed error result; the
// cycle's outstanding work is cancelled through the context.
func (r *Runner) runWithDeadline(ctx context.Context, cycle *cognition.Cycle, opts cognition.RunOptions, multiAct bool) *valueobject.RunResult {
	runCtx, cancel := context.WithTimeout(ctx, r.cfg.RunTimeout)
	defer cancel()

	start := r.now()
	done := make(chan *valueobject.RunResult, 1)
	go func() {
		if multiAct {
			done <- r.runMultiAct(runCtx, cycle, opts)
			return
		}
		done <- cycle.RunOnce(runCtx, opts)
	}()

	select {
	case result := <-done:
		return result
	case <-runCtx.Done():
		return &valueobject.RunResult{
			Status:     valueobject.RunError,
			Error:      "run timed out after " + r.cfg.RunTimeout.String(),
			DurationMS: r.now().Sub(start).Milliseconds(),
		}
	}
}

// runMultiAct repeats the cycle while runs complete and active goals remain,
// bounded by MaxMultiActSteps. The last step's result is returned with the
// accumulated state trace.
func (r *Runner) runMultiAct(ctx context.Context, cycle *cognition.Cycle, opts cognition.RunOptions) *valueobject.RunResult {
	var last *valueobject.RunResult
	var trace []valueobject.StateLabel
	for step := 0; step < r.cfg.MaxMultiActSteps; step++ {
		last = cycle.RunOnce(ctx, opts)
		trace = append(trace, last.StateTrace...)
		if last.Status != valueobject.RunCompleted {
			break
		}
	}
	if last != nil {
		last.StateTrace = trace
	}
	return last
}

// HTTPStatusForResult maps a run result to the HTTP status a transport
// should answer with.
func HTTPStatusForResult(result *valueobject.RunResult) int {
	if result == nil {
		return 500
	}
	switch result.Status {
	case valueobject.RunCompleted, valueobject.RunIdle, valueobject.RunDryRun:
		return 200
	}
	msg := result.Error
	switch {
	case strings.Contains(msg, "timed out"):
		return 504
	case strings.Contains(msg, "Invalid") || strings.Contains(msg, "not permitted"):
		return 400
	default:
		return 500
	}
}

// Used by transports mapping transport-level errors; re-exported here so the
// HTTP layer needs only this package.
var HTTPStatusForError = apperrors.HTTPStatus
