// Package tools implements the external tool-executor capability named by
// spec §4.5: execute(name, arguments) -> string. Each tool declares its own
// JSON-schema-style parameters, the same Name/Description/Parameters/Execute
// shape as the teacher's internal/tools package (shell.go, web_fetch.go),
// collapsed into the plain string-returning contract SPEC_FULL.md's core
// depends on instead of the teacher's richer *Result (for_llm/for_user/
// async/usage) struct.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/loomgate/loomgate/internal/providers"
)

// Tool is one callable capability the orchestrator can expose to the model.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (result string, isError bool)
}

// Registry holds every registered Tool and satisfies
// orchestrator.ToolExecutor and agentmanager's isolated-turn tool access.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, overwriting any previous tool with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Execute implements orchestrator.ToolExecutor.
func (r *Registry) Execute(ctx context.Context, name string, arguments map[string]any) (string, bool) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Sprintf("unknown tool: %s", name), true
	}
	return t.Execute(ctx, arguments)
}

// Definitions returns the static TOOL_DEFINITIONS table (spec §4.5) in
// stable name order, ready to hand to providers.ChatRequest.Tools.
func (r *Registry) Definitions() []providers.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]providers.ToolDefinition, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		defs = append(defs, providers.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}
