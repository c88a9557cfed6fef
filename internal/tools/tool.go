// Package tools implements the agent's side-effecting tools and the
// execution subsystem that dispatches model tool calls to them.
package tools

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Tool is the interface every capability implements. Execute receives the
// decoded JSON arguments object and returns a textual result for the model.
type Tool interface {
	Name() string
	Schema() openai.Tool
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Registry holds the available tools by name.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Re-registering a name replaces the earlier tool.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Schemas returns the tool schemas in registration order, for the provider
// request.
func (r *Registry) Schemas() []openai.Tool {
	out := make([]openai.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Schema())
	}
	return out
}

// requireString extracts a mandatory string argument.
func requireString(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("'%s' is required", key)
	}
	return v, nil
}

// optionalInt extracts an optional integer argument; JSON numbers decode as
// float64.
func optionalInt(args map[string]any, key string) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return 0
}
