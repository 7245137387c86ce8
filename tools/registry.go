// ABOUTME: Named tool registry for council deliberation, mapping tool names to handlers.
// ABOUTME: Execution is total: unknown tools and bad arguments come back as result strings, never errors.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/2389-research/council/llm"
)

// InvalidArgsResult is returned when a tool's arguments fail validation.
const InvalidArgsResult = "Error: invalid tool arguments"

// Handler executes a tool with raw JSON arguments and returns the result as a
// string. Handlers must be total: failures are reported in the result text.
type Handler func(ctx context.Context, args json.RawMessage) string

// RegisteredTool pairs a tool definition with its handler.
type RegisteredTool struct {
	Definition llm.ToolDefinition
	Handler    Handler
}

// Registry is a thread-safe collection of tools available to council models.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*RegisteredTool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*RegisteredTool)}
}

// Register adds a tool to the registry. Registering a nil tool, a tool with no
// name, or a duplicate name is an error.
func (r *Registry) Register(tool *RegisteredTool) error {
	if tool == nil {
		return fmt.Errorf("cannot register nil tool")
	}
	if tool.Definition.Name == "" {
		return fmt.Errorf("cannot register tool with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Definition.Name]; exists {
		return fmt.Errorf("tool already registered: %s", tool.Definition.Name)
	}
	r.tools[tool.Definition.Name] = tool
	return nil
}

// Get returns the tool with the given name, or nil if not registered.
func (r *Registry) Get(name string) *RegisteredTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Has reports whether a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	return r.Get(name) != nil
}

// Names returns the sorted names of all registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns tool definitions for inclusion in a gateway request,
// ordered by name for determinism.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.tools[name].Definition)
	}
	return defs
}

// Execute runs the named tool. Unknown tools return a descriptive string so
// the model can recover instead of the run aborting.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) string {
	tool := r.Get(name)
	if tool == nil {
		return fmt.Sprintf("Unknown tool: %s", name)
	}
	return tool.Handler(ctx, args)
}

// Executor adapts the registry to the gateway's ToolExecutor signature.
func (r *Registry) Executor() llm.ToolExecutor {
	return func(ctx context.Context, name string, args json.RawMessage) string {
		return r.Execute(ctx, name, args)
	}
}
