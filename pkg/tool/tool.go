// Package tool defines the capability contract exposed to agents: a
// named, invocable unit with a declared JSON-schema input shape and a
// textual result. Capabilities are stateless; whoever constructs one
// owns its backing resource.
package tool

import (
	"context"
	"fmt"

	"github.com/nwiesmann/faktotum/pkg/llm"
)

// Tool is a capability an agent can expose to its model.
type Tool interface {
	// Name returns the unique capability name within an agent's bound set.
	Name() string

	// Definition returns the function declaration handed to the provider.
	Definition() llm.Tool

	// Call invokes the capability with already-decoded arguments and
	// returns its textual result.
	Call(ctx context.Context, args map[string]any) (string, error)
}

// Func adapts a plain function into a Tool.
type Func struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args map[string]any) (string, error)
}

// NewFunc constructs a Func tool from an explicit schema and function.
// The parameters map follows the minimal JSON Schema subset providers
// accept (type, properties, required).
func NewFunc(name, description string, parameters map[string]any, fn func(ctx context.Context, args map[string]any) (string, error)) *Func {
	return &Func{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// Name returns the tool name.
func (f *Func) Name() string { return f.name }

// Definition returns the LLM function declaration for this tool.
func (f *Func) Definition() llm.Tool {
	return llm.Tool{
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionDef{
			Name:        f.name,
			Description: f.description,
			Parameters:  f.parameters,
		},
	}
}

// Call invokes the wrapped function.
func (f *Func) Call(ctx context.Context, args map[string]any) (string, error) {
	return f.fn(ctx, args)
}

// Registry is an ordered, name-unique set of tools bound to one agent.
// It is built once at session start and never mutated afterwards.
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry builds a registry from the given tools.
// Duplicate names are an error.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := r.add(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(t Tool) error {
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("duplicate tool name %q", name)
	}
	r.order = append(r.order, name)
	r.tools[name] = t
	return nil
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tools[name]
	return t, ok
}

// Len returns the number of bound tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

// Definitions returns the function declarations in registration order.
func (r *Registry) Definitions() []llm.Tool {
	if r == nil || len(r.order) == 0 {
		return nil
	}
	defs := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}
