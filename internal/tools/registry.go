// Package tools implements the tools clients can invoke over a delivery
// session. Handlers are pure functions of their parameters.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/vanachterjacob/BC-MCP/internal/rules"
)

var (
	// ErrUnknownTool is returned by Dispatch for names no handler serves.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidParams is returned when parameters do not decode or miss a required field.
	ErrInvalidParams = errors.New("invalid parameters")
)

// Definition is a tool as advertised to clients.
type Definition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// Handler runs a tool against its raw JSON parameters.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Registry maps tool names to handlers, keeping advertisement order.
type Registry struct {
	defs     []Definition
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a tool. Registering a name twice replaces its handler.
// A nil Parameters schema advertises an object with no properties.
func (r *Registry) Register(def Definition, h Handler) {
	if def.Parameters == nil {
		def.Parameters = &jsonschema.Schema{Type: "object"}
	}
	if _, exists := r.handlers[def.Name]; !exists {
		r.defs = append(r.defs, def)
	} else {
		for i := range r.defs {
			if r.defs[i].Name == def.Name {
				r.defs[i] = def
			}
		}
	}
	r.handlers[def.Name] = h
}

// Definitions returns every registered tool in registration order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	for _, d := range r.defs {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// Dispatch runs the named tool.
func (r *Registry) Dispatch(ctx context.Context, name string, params json.RawMessage) (any, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return h(ctx, params)
}

// typed adapts a function over a decoded input struct to a Handler.
// Parameters are checked against schema before they are decoded; absent
// parameters are checked as an empty object.
func typed[In, Out any](schema *jsonschema.Schema, fn func(In) (Out, error)) Handler {
	resolved, err := schema.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("tools: resolve schema: %v", err))
	}
	return func(_ context.Context, params json.RawMessage) (any, error) {
		params = bytes.TrimSpace(params)
		if len(params) == 0 || bytes.Equal(params, []byte("null")) {
			params = []byte("{}")
		}
		var doc any
		if err := json.Unmarshal(params, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
		if err := resolved.Validate(doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
		var in In
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
		return fn(in)
	}
}

// schemaFor infers the parameter schema of In. Field descriptions come
// from the jsonschema struct tags.
func schemaFor[In any]() *jsonschema.Schema {
	s, err := jsonschema.For[In](nil)
	if err != nil {
		panic(fmt.Sprintf("tools: schema for %T: %v", *new(In), err))
	}
	return s
}

// add registers fn under name with the schema inferred from In.
func add[In, Out any](r *Registry, name, description string, fn func(In) (Out, error), refine ...func(*jsonschema.Schema)) {
	schema := schemaFor[In]()
	for _, f := range refine {
		f(schema)
	}
	r.Register(Definition{Name: name, Description: description, Parameters: schema}, typed(schema, fn))
}

// Builtin returns a registry holding every built-in tool.
func Builtin() *Registry {
	r := NewRegistry()
	add(r, "bc_help", "Get help with Business Central development", Help)
	add(r, "get_rules_by_type", "Get the built-in AL rule set for a category, with its .cursorrules conversion",
		RulesByType, func(s *jsonschema.Schema) {
			for _, c := range rules.BuiltinTypes() {
				s.Properties["type"].Enum = append(s.Properties["type"].Enum, string(c))
			}
		})
	add(r, "validate_rule", "Check that a rule set has a name, a known type and a content object", ValidateRule)
	add(r, "merge_rules", "Deep merge an override rule set into a base rule set", Merge)
	return r
}
