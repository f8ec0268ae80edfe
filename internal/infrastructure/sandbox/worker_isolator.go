// Package sandbox provides worker-isolated tool execution: each invocation
// runs in a separate process that can be hard-terminated on timeout, with
// only {toolName, input, requestId} crossing the boundary as JSON.
package sandbox

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/agentcore/internal/domain/tool"
)

// IsolatorConfig configures the worker process.
type IsolatorConfig struct {
	// Command and Args launch the worker. Empty Command defaults to the
	// current executable with the "tool-worker" subcommand, which serves the
	// process-wide tool registry over stdio.
	Command string
	Args    []string
	// KillGrace is how long after SIGTERM the worker gets before SIGKILL.
	KillGrace time.Duration
}

// ProcessIsolator implements tool.Isolator by spawning one worker process
// per execution. A fresh process per call costs a fork but guarantees the
// hard-kill leaves no shared state behind.
type ProcessIsolator struct {
	cfg    IsolatorConfig
	logger *zap.Logger
}

// NewProcessIsolator builds an isolator.
func NewProcessIsolator(cfg IsolatorConfig, logger *zap.Logger) (*ProcessIsolator, error) {
	if cfg.Command == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("cannot locate own executable for worker: %w", err)
		}
		cfg.Command = self
		cfg.Args = []string{"tool-worker"}
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessIsolator{cfg: cfg, logger: logger}, nil
}

// Execute ships the request to a fresh worker and waits for its single
// response line. When ctx expires the whole worker process group is killed.
func (p *ProcessIsolator) Execute(ctx context.Context, req tool.WorkerRequest) (*tool.WorkerResponse, error) {
	cmd := exec.Command(p.cfg.Command, p.cfg.Args...)
	// Workers get their own process group so a kill reaps any children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdout: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		p.kill(cmd)
		return nil, fmt.Errorf("marshal worker request: %w", err)
	}

	type outcome struct {
		resp *tool.WorkerResponse
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer stdin.Close()
		if _, err := stdin.Write(append(payload, '\n')); err != nil {
			done <- outcome{nil, fmt.Errorf("write worker request: %w", err)}
			return
		}
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				done <- outcome{nil, fmt.Errorf("read worker response: %w", err)}
				return
			}
			done <- outcome{nil, fmt.Errorf("worker exited without a response")}
			return
		}
		var resp tool.WorkerResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			done <- outcome{nil, fmt.Errorf("decode worker response: %w", err)}
			return
		}
		done <- outcome{&resp, nil}
	}()

	select {
	case out := <-done:
		_ = cmd.Wait()
		if out.err != nil {
			return nil, out.err
		}
		if out.resp.RequestID != req.RequestID {
			return nil, fmt.Errorf("worker response id mismatch: got %q", out.resp.RequestID)
		}
		return out.resp, nil
	case <-ctx.Done():
		p.kill(cmd)
		p.logger.Warn("worker hard-terminated",
			zap.String("tool", req.ToolName),
			zap.String("requestId", req.RequestID),
		)
		return nil, ctx.Err()
	}
}

// kill terminates the worker's whole process group: SIGTERM first, SIGKILL
// after the grace period if it lingers.
func (p *ProcessIsolator) kill(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid := -cmd.Process.Pid
	_ = syscall.Kill(pgid, syscall.SIGTERM)

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()
	select {
	case <-exited:
	case <-time.After(p.cfg.KillGrace):
		_ = syscall.Kill(pgid, syscall.SIGKILL)
		<-exited
	}
}
