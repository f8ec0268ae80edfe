package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name string) Tool {
	return &FuncTool{
		ToolName: name,
		Desc:     "echoes its input",
		Fn: func(_ context.Context, input map[string]any) (map[string]any, error) {
			return map[string]any{"echo": input["value"]}, nil
		},
	}
}

func newInProcessRunner(t *testing.T, cfg RunnerConfig, tools ...Tool) *Runner {
	t.Helper()
	reg := NewRegistry()
	for _, tl := range tools {
		require.NoError(t, reg.Register(tl))
	}
	r, err := NewRunner(cfg, reg, nil, nil)
	require.NoError(t, err)
	return r
}

func TestRegistry_IdempotentRegistrationAndFreeze(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(echoTool("echo")))
	require.NoError(t, reg.Register(echoTool("echo")))
	assert.Len(t, reg.Names(), 1)

	reg.Freeze()
	err := reg.Register(echoTool("late"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frozen")
}

func TestNewRunner_RequireIsolationNeedsIsolation(t *testing.T) {
	_, err := NewRunner(RunnerConfig{RequireIsolation: true}, NewRegistry(), nil, nil)
	require.Error(t, err)

	_, err = NewRunner(RunnerConfig{UseWorkerIsolation: true}, NewRegistry(), nil, nil)
	require.Error(t, err)
}

func TestExecute_UnknownToolNotPermitted(t *testing.T) {
	r := newInProcessRunner(t, RunnerConfig{})
	res := r.Execute(context.Background(), "ghost", map[string]any{}, "req-1")
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "Tool not permitted")
}

func TestExecute_RegistryAndConstructorMap(t *testing.T) {
	r := newInProcessRunner(t, RunnerConfig{
		Tools: map[string]Tool{"extra": echoTool("extra")},
	}, echoTool("registered"))

	res := r.Execute(context.Background(), "registered", map[string]any{"value": "a"}, "req-1")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "a", res.Output["echo"])

	res = r.Execute(context.Background(), "extra", map[string]any{"value": "b"}, "req-1")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "b", res.Output["echo"])
}

func TestExecute_RejectsUnsafeInput(t *testing.T) {
	r := newInProcessRunner(t, RunnerConfig{}, echoTool("echo"))
	res := r.Execute(context.Background(), "echo", map[string]any{
		"__proto__": map[string]any{"polluted": true},
	}, "req-1")
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "unsafe tool input")
}

func TestExecute_RejectsUnsafeOutput(t *testing.T) {
	bad := &FuncTool{
		ToolName: "bad",
		Fn: func(context.Context, map[string]any) (map[string]any, error) {
			return map[string]any{"constructor": "x"}, nil
		},
	}
	r := newInProcessRunner(t, RunnerConfig{}, bad)
	res := r.Execute(context.Background(), "bad", map[string]any{}, "req-1")
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "unsafe tool output")
}

func TestExecute_TimeoutCancelsCooperativeTool(t *testing.T) {
	observed := make(chan struct{}, 1)
	slow := &FuncTool{
		ToolName: "slow",
		Fn: func(ctx context.Context, _ map[string]any) (map[string]any, error) {
			select {
			case <-ctx.Done():
				observed <- struct{}{}
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return map[string]any{}, nil
			}
		},
	}
	r := newInProcessRunner(t, RunnerConfig{Timeout: 30 * time.Millisecond}, slow)

	start := time.Now()
	res := r.Execute(context.Background(), "slow", map[string]any{}, "req-1")
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "timed out")
	assert.Less(t, time.Since(start), 2*time.Second)

	select {
	case <-observed:
	case <-time.After(time.Second):
		t.Fatal("tool never observed cancellation")
	}
}

func TestExecute_ToolErrorIsFailure(t *testing.T) {
	failing := &FuncTool{
		ToolName: "fail",
		Fn: func(context.Context, map[string]any) (map[string]any, error) {
			return nil, errors.New("exit status 1")
		},
	}
	r := newInProcessRunner(t, RunnerConfig{}, failing)
	res := r.Execute(context.Background(), "fail", map[string]any{}, "req-1")
	require.False(t, res.Success)
	assert.Equal(t, "exit status 1", res.Error)
}

type scriptedIsolator struct {
	resp *WorkerResponse
	err  error
	last WorkerRequest
}

func (s *scriptedIsolator) Execute(_ context.Context, req WorkerRequest) (*WorkerResponse, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func TestExecute_IsolatedShipsOnlyNamedRequest(t *testing.T) {
	iso := &scriptedIsolator{resp: &WorkerResponse{RequestID: "req-1", Success: true, Result: map[string]any{"ok": true}}}
	r, err := NewRunner(RunnerConfig{UseWorkerIsolation: true, RequireIsolation: true}, NewRegistry(), iso, nil)
	require.NoError(t, err)

	res := r.Execute(context.Background(), "remote", map[string]any{"value": 1.0}, "req-1")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "remote", iso.last.ToolName)
	assert.Equal(t, "req-1", iso.last.RequestID)
	assert.Equal(t, true, res.Output["ok"])
}

func TestExecute_IsolatedRejectsUntransportablePayload(t *testing.T) {
	iso := &scriptedIsolator{resp: &WorkerResponse{Success: true}}
	r, err := NewRunner(RunnerConfig{UseWorkerIsolation: true}, NewRegistry(), iso, nil)
	require.NoError(t, err)

	res := r.Execute(context.Background(), "remote", map[string]any{
		"callback": func() {},
	}, "req-1")
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "not transportable")
	assert.Contains(t, res.Error, "$.callback")
}

func TestAssertTransportable(t *testing.T) {
	require.NoError(t, AssertTransportable(map[string]any{
		"s": "x", "n": 1.5, "b": true, "nil": nil,
		"list": []any{1, "two", map[string]any{"k": "v"}},
	}))

	err := AssertTransportable(map[string]any{"nested": []any{map[string]any{"ch": make(chan int)}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "$.nested[0].ch")

	require.Error(t, AssertTransportable(map[string]any{"c": complex(1, 2)}))
}
