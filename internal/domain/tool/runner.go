package tool

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/agentcore/internal/domain/safety"
	apperrors "github.com/ngoclaw/agentcore/pkg/errors"
)

// DefaultTimeout bounds a single tool execution unless configured otherwise.
const DefaultTimeout = 30 * time.Second

// Isolator runs a named tool in a separate worker process. Implementations
// must hard-terminate the worker when ctx expires.
type Isolator interface {
	Execute(ctx context.Context, req WorkerRequest) (*WorkerResponse, error)
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Tools is a constructor-supplied map consulted after the registry, for
	// in-process mode only (test seams).
	Tools map[string]Tool
	// Timeout bounds each execution; zero means DefaultTimeout.
	Timeout time.Duration
	// UseWorkerIsolation routes execution through the Isolator.
	UseWorkerIsolation bool
	// RequireIsolation makes construction fail unless worker isolation is
	// actually on, for deployments where in-process fallback is unacceptable.
	RequireIsolation bool
}

// Runner dispatches tool executions. Input and output both pass the
// unsafe-key assertion; execution is bounded by the configured timeout.
type Runner struct {
	cfg      RunnerConfig
	registry *Registry
	isolator Isolator
	logger   *zap.Logger
}

// NewRunner validates the configuration and builds a runner. isolator may be
// nil when worker isolation is off.
func NewRunner(cfg RunnerConfig, registry *Registry, isolator Isolator, logger *zap.Logger) (*Runner, error) {
	if cfg.RequireIsolation && !cfg.UseWorkerIsolation {
		return nil, apperrors.NewInvalidInputError("requireIsolation set but worker isolation is disabled")
	}
	if cfg.UseWorkerIsolation && isolator == nil {
		return nil, apperrors.NewInvalidInputError("worker isolation enabled without an isolator")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, registry: registry, isolator: isolator, logger: logger}, nil
}

// Has reports whether the runner can dispatch the named tool.
func (r *Runner) Has(name string) bool {
	if r.registry.Has(name) {
		return true
	}
	_, ok := r.cfg.Tools[name]
	return ok
}

// Execute runs the named tool with the given input and request id.
func (r *Runner) Execute(ctx context.Context, name string, input map[string]any, requestID string) *Result {
	if err := safety.AssertSafeObject(input, 0); err != nil {
		return &Result{Success: false, Error: "unsafe tool input: " + err.Error()}
	}

	var result *Result
	if r.cfg.UseWorkerIsolation {
		result = r.executeIsolated(ctx, name, input, requestID)
	} else {
		result = r.executeInProcess(ctx, name, input)
	}

	if result.Success {
		if err := safety.AssertSafeObject(result.Output, 0); err != nil {
			return &Result{Success: false, Error: "unsafe tool output: " + err.Error()}
		}
	}
	return result
}

// executeInProcess races the tool against the timeout. The timeout cancels
// the context so cooperative tools stop; a compute-bound tool that ignores
// cancellation cannot be forcibly stopped in this mode — that is what worker
// isolation is for.
func (r *Runner) executeInProcess(ctx context.Context, name string, input map[string]any) *Result {
	t, ok := r.registry.Get(name)
	if !ok {
		t, ok = r.cfg.Tools[name]
	}
	if !ok {
		return &Result{Success: false, Error: "Tool not permitted: " + name}
	}

	execCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	type outcome struct {
		output map[string]any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		output, err := t.Execute(execCtx, input)
		done <- outcome{output, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return &Result{Success: false, Error: out.err.Error()}
		}
		return &Result{Success: true, Output: out.output}
	case <-execCtx.Done():
		cancel()
		r.logger.Warn("tool timed out in-process", zap.String("tool", name))
		return &Result{Success: false, Error: "tool execution timed out: " + name}
	}
}

// executeIsolated ships {toolName, input, requestId} to the worker. The
// payload is checked for transportability first so a bad value fails with a
// diagnostic path instead of a marshal error.
func (r *Runner) executeIsolated(ctx context.Context, name string, input map[string]any, requestID string) *Result {
	if err := AssertTransportable(input); err != nil {
		return &Result{Success: false, Error: err.Error()}
	}

	execCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	resp, err := r.isolator.Execute(execCtx, WorkerRequest{
		RequestID: requestID,
		ToolName:  name,
		Input:     input,
	})
	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return &Result{Success: false, Error: "tool execution timed out: " + name}
		}
		return &Result{Success: false, Error: "worker execution failed: " + err.Error()}
	}
	if !resp.Success {
		return &Result{Success: false, Error: resp.Error}
	}
	return &Result{Success: true, Output: resp.Result}
}
