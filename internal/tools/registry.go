// Package tools holds the catalog of tools advertised to the agent.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/alucardeht/ghview-bridge/internal/logger"
)

// Tool is one invocable operation. Failures the agent should see are
// returned as error results; a non-nil error is reported the same way.
type Tool interface {
	Definition() mcpgo.Tool
	Execute(ctx context.Context, args json.RawMessage) (*mcpgo.CallToolResult, error)
}

type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	log   *slog.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
		log:   logger.ForComponent("tools"),
	}
}

func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Definition().Name
	if name == "" {
		return fmt.Errorf("tool has no name")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}

	r.tools[name] = tool
	return nil
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Definitions returns the descriptors of all tools ordered by name.
func (r *Registry) Definitions() []mcpgo.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]mcpgo.Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Call runs the named tool. It never returns nil: unknown tools, execution
// errors and panics all become error results.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (result *mcpgo.CallToolResult) {
	tool, ok := r.Get(name)
	if !ok {
		return mcpgo.NewToolResultError(fmt.Sprintf("Unknown tool: %s", name))
	}

	defer func() {
		if p := recover(); p != nil {
			r.log.Error("tool panic recovered", "tool", name, "panic", p, "stack", string(debug.Stack()))
			result = mcpgo.NewToolResultError(fmt.Sprintf("Tool %s failed: %v", name, p))
		}
	}()

	result, err := tool.Execute(ctx, args)
	if err != nil {
		return mcpgo.NewToolResultError(err.Error())
	}
	if result == nil {
		return mcpgo.NewToolResultText("")
	}
	return result
}

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
