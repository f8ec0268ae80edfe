// Package tools registers the built-in tool set every deployment carries:
// workspace-confined file reads and SSRF-filtered HTTP fetches, plus small
// wiring-check tools. Richer CLI tools (editor, shell, email) are external
// collaborators registered by the embedding binary.
package tools

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ngoclaw/agentcore/internal/domain/safety"
	"github.com/ngoclaw/agentcore/internal/domain/tool"
	apperrors "github.com/ngoclaw/agentcore/pkg/errors"
)

// maxFileBytes bounds what read_file returns to the model.
const maxFileBytes = 256 * 1024

// maxFetchBytes bounds what http_fetch returns to the model.
const maxFetchBytes = 512 * 1024

// Options configure the built-in tools.
type Options struct {
	// WorkspaceRoot confines read_file; empty disables the tool.
	WorkspaceRoot string
	// URLFilter vets http_fetch targets; nil disables the tool.
	URLFilter *safety.SSRFFilter
	// HTTPClient overrides the fetch client, for tests.
	HTTPClient *http.Client
}

// Register adds the built-in tools to the registry.
func Register(registry *tool.Registry, opts Options) error {
	builtins := []tool.Tool{
		&tool.FuncTool{
			ToolName: "echo",
			Desc:     "returns its input, for wiring checks",
			Fn: func(_ context.Context, input map[string]any) (map[string]any, error) {
				return map[string]any{"echo": input}, nil
			},
		},
		&tool.FuncTool{
			ToolName: "sleep",
			Desc:     "sleeps for ms milliseconds, for timeout checks",
			Fn: func(ctx context.Context, input map[string]any) (map[string]any, error) {
				ms, _ := input["ms"].(float64)
				select {
				case <-time.After(time.Duration(ms) * time.Millisecond):
					return map[string]any{"slept": ms}, nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			},
		},
	}
	if opts.WorkspaceRoot != "" {
		builtins = append(builtins, readFileTool(opts.WorkspaceRoot))
	}
	if opts.URLFilter != nil {
		client := opts.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: 15 * time.Second}
		}
		builtins = append(builtins, fetchTool(opts.URLFilter, client))
	}

	for _, t := range builtins {
		if err := registry.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// readFileTool reads a file strictly inside root. The candidate path is
// validated through the symlink-resolving boundary check before any open.
func readFileTool(root string) tool.Tool {
	return &tool.FuncTool{
		ToolName: "read_file",
		Desc:     "reads a file inside the workspace root",
		Fn: func(_ context.Context, input map[string]any) (map[string]any, error) {
			candidate, _ := input["path"].(string)
			if candidate == "" {
				return nil, apperrors.NewInvalidInputError("Invalid input: path is required")
			}
			resolved, err := safety.AssertSafePath(root, candidate)
			if err != nil {
				return nil, err
			}
			f, err := os.Open(resolved)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			data, err := io.ReadAll(io.LimitReader(f, maxFileBytes))
			if err != nil {
				return nil, err
			}
			return map[string]any{"path": resolved, "content": string(data)}, nil
		},
	}
}

// fetchTool performs an HTTP GET after the SSRF filter clears the URL.
func fetchTool(filter *safety.SSRFFilter, client *http.Client) tool.Tool {
	return &tool.FuncTool{
		ToolName: "http_fetch",
		Desc:     "fetches a public http(s) URL",
		Fn: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			rawURL, _ := input["url"].(string)
			if rawURL == "" {
				return nil, apperrors.NewInvalidInputError("Invalid input: url is required")
			}
			if err := filter.IsSafeURL(ctx, rawURL); err != nil {
				return nil, err
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
			if err != nil {
				return nil, err
			}
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"status": float64(resp.StatusCode),
				"body":   string(body),
			}, nil
		},
	}
}
