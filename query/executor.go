package query

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ticketdesk/authz"
	"ticketdesk/identity"
	"ticketdesk/predicate"
)

// Querier is the read-only slice of the store the executor needs.
// *pgxpool.Pool satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Executor validates, builds, and runs registered queries.
type Executor struct {
	reg   *Registry
	store Querier
}

// NewExecutor builds an executor over a registry and a store.
func NewExecutor(reg *Registry, store Querier) *Executor {
	return &Executor{reg: reg, store: store}
}

// Introspect runs the validation and build path for a query and returns
// the predicate tree it would execute, without touching the store. This is
// the contract tests assert scoping against.
func (e *Executor) Introspect(name string, raw map[string]any, ictx identity.Context) (predicate.Query, error) {
	def, ok := e.reg.Lookup(name)
	if !ok {
		return predicate.Query{}, fmt.Errorf("%w: query %q", authz.ErrNotFound, name)
	}

	params, err := def.Schema.Validate(raw)
	if err != nil {
		return predicate.Query{}, err
	}

	return def.Build(params, ictx), nil
}

// Execute validates parameters, builds the caller-scoped predicate tree,
// and runs it read-only against the store. Anonymous callers are allowed
// through on purpose: their builders produce a never-matching predicate,
// so the result degrades to an empty set instead of an error while a
// session is still being resolved.
func (e *Executor) Execute(ctx context.Context, name string, raw map[string]any, ictx identity.Context) ([]map[string]any, error) {
	q, err := e.Introspect(name, raw, ictx)
	if err != nil {
		return nil, err
	}

	sql, args, err := predicate.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", name, err)
	}

	rows, err := e.store.Query(ctx, sql, args...)
	if err != nil {
		return nil, authz.Internal(fmt.Sprintf("query %q", name), err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := []map[string]any{}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, authz.Internal(fmt.Sprintf("query %q: scan", name), err)
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[string(fd.Name)] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, authz.Internal(fmt.Sprintf("query %q: rows", name), err)
	}

	return out, nil
}
