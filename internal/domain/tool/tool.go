// Package tool defines the sandboxed tool surface: the Tool interface, the
// process-wide registry, and the Runner that executes registered tools with
// unsafe-input checks, timeouts, and optional worker isolation.
package tool

import (
	"context"
	"sync"

	apperrors "github.com/ngoclaw/agentcore/pkg/errors"
)

// Tool is one executable capability. Execute must observe ctx cancellation
// cooperatively; the runner's timeout cancels ctx, and in isolated mode the
// worker process is hard-terminated regardless.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, input map[string]any) (map[string]any, error)
}

// Result is the outcome of one tool invocation.
type Result struct {
	Success bool
	Output  map[string]any
	Error   string
}

// Registry is a name-keyed tool collection. Registration is idempotent per
// name and frozen after startup: Freeze is called once wiring is complete,
// after which further registration is an error.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	frozen bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering the same name twice is a no-op; a
// registration after Freeze is rejected.
func (r *Registry) Register(t Tool) error {
	if t == nil || t.Name() == "" {
		return apperrors.NewInvalidInputError("tool must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return apperrors.NewInvalidInputError("tool registry is frozen")
	}
	if _, exists := r.tools[t.Name()]; exists {
		return nil
	}
	r.tools[t.Name()] = t
	return nil
}

// Freeze forbids further registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names lists the registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

var (
	globalMu       sync.Mutex
	globalRegistry *Registry
)

// InitializeToolRegistry creates (or returns) the process-wide registry.
// Idempotent; call once at startup before registering tools.
func InitializeToolRegistry() *Registry {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalRegistry == nil {
		globalRegistry = NewRegistry()
	}
	return globalRegistry
}

// GlobalRegistry returns the process-wide registry, initializing it if
// needed.
func GlobalRegistry() *Registry {
	return InitializeToolRegistry()
}

// FuncTool adapts a plain function into a Tool.
type FuncTool struct {
	ToolName string
	Desc     string
	Fn       func(ctx context.Context, input map[string]any) (map[string]any, error)
}

func (t *FuncTool) Name() string        { return t.ToolName }
func (t *FuncTool) Description() string { return t.Desc }
func (t *FuncTool) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	return t.Fn(ctx, input)
}
