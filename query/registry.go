// Package query holds the named-query registry and its executor. Queries
// are registered once at startup and are read-only thereafter: a builder
// turns validated parameters plus the caller's identity into a predicate
// tree scoped to that caller.
package query

import (
	"fmt"

	"ticketdesk/identity"
	"ticketdesk/predicate"
	"ticketdesk/schema"
)

// Builder produces the scoped read for one caller. Builders are pure:
// no side effects, deterministic for identical inputs.
type Builder func(params schema.Values, ictx identity.Context) predicate.Query

// Definition binds a globally unique name to a parameter schema and a
// builder.
type Definition struct {
	Name   string
	Schema schema.Schema
	Build  Builder
}

// Registry maps query names to definitions. Built during process
// initialization, immutable afterwards, safe for unlimited concurrent
// readers.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a definition. A duplicate name or a nil builder is a
// startup defect and panics: the process must fail before serving any
// request rather than run with an ambiguous registry.
func (r *Registry) Register(def Definition) {
	if def.Name == "" {
		panic("query: register with empty name")
	}
	if def.Build == nil {
		panic(fmt.Sprintf("query: register %q with nil builder", def.Name))
	}
	if _, exists := r.defs[def.Name]; exists {
		panic(fmt.Sprintf("query: duplicate registration of %q", def.Name))
	}
	r.defs[def.Name] = def
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Names returns the registered query names, unordered.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	return names
}
