// Package tools provides the tool surface workflow steps call into: a local
// commerce registry backed by an in-memory store, a retrieval tool, an MCP
// gateway for external servers, and a tag-scored router that picks the tools
// relevant to a task.
package tools

import (
	"context"
	"sort"
	"sync"

	"github.com/rivermist/shopflow/pkg/schema"
)

// Tool is a callable capability. Arguments are string-keyed; outputs are
// JSON documents so memory extraction can parse them.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, args map[string]string) (string, error)
}

// FuncTool adapts a function to the Tool interface.
type FuncTool struct {
	ToolName string
	Desc     string
	Fn       func(ctx context.Context, args map[string]string) (string, error)
}

func (t FuncTool) Name() string        { return t.ToolName }
func (t FuncTool) Description() string { return t.Desc }
func (t FuncTool) Call(ctx context.Context, args map[string]string) (string, error) {
	return t.Fn(ctx, args)
}

// Registry holds tools by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry over the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

// Register adds (or replaces) a tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names, sorted.
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

// Call invokes the named tool and wraps the output as a ToolResult.
func (r *Registry) Call(ctx context.Context, name string, args map[string]string) (schema.ToolResult, error) {
	t, ok := r.Get(name)
	if !ok {
		return schema.ToolResult{}, schema.NewErrorf(schema.ErrCodeNotFound, "tool %s is not registered", name)
	}
	output, err := t.Call(ctx, args)
	if err != nil {
		return schema.ToolResult{}, schema.NewErrorf(schema.ErrCodeTool, "tool %s failed", name).WithCause(err)
	}
	return schema.ToolResult{Tool: name, Output: output}, nil
}
