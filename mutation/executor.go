package mutation

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ticketdesk/authz"
	"ticketdesk/identity"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Executor validates parameters and runs each mutation inside exactly one
// transaction: commit on success, rollback on any error. The transaction
// is the sole unit of atomicity, so an ownership check and the write it
// guards cannot be split by a concurrent writer.
type Executor struct {
	reg  *Registry
	pool TxBeginner
}

// NewExecutor builds an executor over a registry and a transaction source.
func NewExecutor(reg *Registry, pool TxBeginner) *Executor {
	return &Executor{reg: reg, pool: pool}
}

// Execute runs the named mutator for the given caller and location.
func (e *Executor) Execute(ctx context.Context, name string, raw map[string]any, ictx identity.Context, loc Location) error {
	def, ok := e.reg.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: mutator %q", authz.ErrNotFound, name)
	}
	if !loc.Valid() {
		return authz.NewValidationError("location", fmt.Sprintf("unknown location %q", loc))
	}

	params, err := def.Schema.Validate(raw)
	if err != nil {
		return err
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return authz.Internal(fmt.Sprintf("mutator %q: begin tx", name), err)
	}
	defer tx.Rollback(ctx)

	if err := def.Handle(ctx, tx, params, ictx, loc); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return authz.Internal(fmt.Sprintf("mutator %q: commit", name), err)
	}

	return nil
}
