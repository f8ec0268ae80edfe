package sandbox

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ngoclaw/agentcore/internal/domain/safety"
	"github.com/ngoclaw/agentcore/internal/domain/tool"
)

// RunWorker is the worker-process main loop: it reads JSON-encoded
// WorkerRequests line by line from in, executes each named tool against its
// private registry, and writes one WorkerResponse line per request to out.
// Unknown tools and panicking handlers produce structured error responses;
// the worker itself never crashes on them.
func RunWorker(ctx context.Context, registry *tool.Registry, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	encoder := json.NewEncoder(out)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req tool.WorkerRequest
		if err := json.Unmarshal(line, &req); err != nil {
			if encErr := encoder.Encode(tool.WorkerResponse{
				Success: false,
				Error:   "malformed worker request: " + err.Error(),
			}); encErr != nil {
				return encErr
			}
			continue
		}
		if err := encoder.Encode(executeRequest(ctx, registry, req)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func executeRequest(ctx context.Context, registry *tool.Registry, req tool.WorkerRequest) (resp tool.WorkerResponse) {
	resp.RequestID = req.RequestID

	defer func() {
		if rec := recover(); rec != nil {
			resp.Success = false
			resp.Result = nil
			resp.Error = fmt.Sprintf("tool panicked: %v", rec)
		}
	}()

	t, ok := registry.Get(req.ToolName)
	if !ok {
		resp.Error = "unknown tool: " + req.ToolName
		return resp
	}
	if err := safety.AssertSafeObject(req.Input, 0); err != nil {
		resp.Error = "unsafe tool input: " + err.Error()
		return resp
	}

	output, err := t.Execute(ctx, req.Input)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Success = true
	resp.Result = output
	return resp
}
