// Package mutation holds the named-mutator registry and its transactional
// executor. A handler receives validated parameters, the open transaction,
// the caller's identity, and the execution location, and performs its
// writes only after access checks pass.
package mutation

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ticketdesk/identity"
	"ticketdesk/schema"
)

// Location tags where a mutation is being evaluated. Server-side checks
// are mandatory; a client-side speculative run may skip re-validation
// reads because the server run repeats them authoritatively.
type Location string

const (
	LocationServer Location = "server"
	LocationClient Location = "client"
)

// Valid reports whether l is a known location tag.
func (l Location) Valid() bool {
	return l == LocationServer || l == LocationClient
}

// Handler applies one named mutation inside tx. Returning an error aborts
// the transaction; no partial write survives. Handlers may read inside tx
// to check ownership and state before writing, and must never perform a
// destructive effect outside tx.
type Handler func(ctx context.Context, tx pgx.Tx, params schema.Values, ictx identity.Context, loc Location) error

// Definition binds a globally unique mutator name to its schema and
// handler.
type Definition struct {
	Name   string
	Schema schema.Schema
	Handle Handler
}

// Registry maps mutator names to definitions. Same lifecycle as the query
// registry: built at startup, immutable afterwards.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a definition, panicking on a duplicate name or nil
// handler: registration collisions are startup defects, not runtime ones.
func (r *Registry) Register(def Definition) {
	if def.Name == "" {
		panic("mutation: register with empty name")
	}
	if def.Handle == nil {
		panic(fmt.Sprintf("mutation: register %q with nil handler", def.Name))
	}
	if _, exists := r.defs[def.Name]; exists {
		panic(fmt.Sprintf("mutation: duplicate registration of %q", def.Name))
	}
	r.defs[def.Name] = def
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Names returns the registered mutator names, unordered.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	return names
}
