package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngoclaw/agentcore/internal/domain/tool"
)

func workerRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(&tool.FuncTool{
		ToolName: "double",
		Fn: func(_ context.Context, input map[string]any) (map[string]any, error) {
			n, _ := input["n"].(float64)
			return map[string]any{"result": n * 2}, nil
		},
	}))
	require.NoError(t, reg.Register(&tool.FuncTool{
		ToolName: "panics",
		Fn: func(context.Context, map[string]any) (map[string]any, error) {
			panic("boom")
		},
	}))
	return reg
}

func runWorkerWith(t *testing.T, reg *tool.Registry, requests ...tool.WorkerRequest) []tool.WorkerResponse {
	t.Helper()
	var in bytes.Buffer
	for _, req := range requests {
		line, err := json.Marshal(req)
		require.NoError(t, err)
		in.Write(line)
		in.WriteByte('\n')
	}

	var out bytes.Buffer
	require.NoError(t, RunWorker(context.Background(), reg, &in, &out))

	var responses []tool.WorkerResponse
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var resp tool.WorkerResponse
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		responses = append(responses, resp)
	}
	return responses
}

func TestRunWorker_ExecutesNamedTool(t *testing.T) {
	responses := runWorkerWith(t, workerRegistry(t), tool.WorkerRequest{
		RequestID: "r1", ToolName: "double", Input: map[string]any{"n": 21.0},
	})
	require.Len(t, responses, 1)
	assert.Equal(t, "r1", responses[0].RequestID)
	assert.True(t, responses[0].Success)
	assert.Equal(t, 42.0, responses[0].Result["result"])
}

func TestRunWorker_UnknownToolIsStructuredError(t *testing.T) {
	responses := runWorkerWith(t, workerRegistry(t), tool.WorkerRequest{
		RequestID: "r1", ToolName: "ghost",
	})
	require.Len(t, responses, 1)
	assert.False(t, responses[0].Success)
	assert.Contains(t, responses[0].Error, "unknown tool")
}

func TestRunWorker_PanicDoesNotCrashWorker(t *testing.T) {
	responses := runWorkerWith(t, workerRegistry(t),
		tool.WorkerRequest{RequestID: "r1", ToolName: "panics"},
		tool.WorkerRequest{RequestID: "r2", ToolName: "double", Input: map[string]any{"n": 1.0}},
	)
	require.Len(t, responses, 2)
	assert.False(t, responses[0].Success)
	assert.Contains(t, responses[0].Error, "panicked")
	assert.True(t, responses[1].Success)
}

func TestRunWorker_UnsafeInputRejected(t *testing.T) {
	responses := runWorkerWith(t, workerRegistry(t), tool.WorkerRequest{
		RequestID: "r1", ToolName: "double",
		Input: map[string]any{"__proto__": map[string]any{}},
	})
	require.Len(t, responses, 1)
	assert.False(t, responses[0].Success)
	assert.Contains(t, responses[0].Error, "unsafe")
}

func TestRunWorker_MalformedRequestLine(t *testing.T) {
	reg := workerRegistry(t)
	in := strings.NewReader("not json\n")
	var out bytes.Buffer
	require.NoError(t, RunWorker(context.Background(), reg, in, &out))

	var resp tool.WorkerResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "malformed")
}
