// Package oracles defines SQL invariants checked against the live
// database while the stress actors run. An oracle returning any row is a
// failure.
package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			// A message authored by a client account must sit on a ticket
			// owned by that client's organization.
			Name: "O1_message_tenant_integrity",
			SQL: `SELECT m.id, m.ticket_id, a.client_id
                  FROM ticket_messages m
                  JOIN accounts a ON a.id::text = m.author_id
                  JOIN tickets t ON t.id = m.ticket_id
                  WHERE a.client_id IS NOT NULL AND a.client_id <> t.client_id`,
		},
		{
			Name: "O2_feedback_single_per_ticket",
			SQL: `SELECT ticket_id, COUNT(*) FROM ticket_feedback
                  GROUP BY ticket_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O3_status_domain",
			SQL: `SELECT id, status FROM tickets
                  WHERE status NOT IN ('open','in_progress','blocked','resolved','closed')`,
		},
		{
			Name: "O4_rating_bounds",
			SQL:  `SELECT ticket_id, rating FROM ticket_feedback WHERE rating < 1 OR rating > 5`,
		},
		{
			// The idempotent create relies on this constraint existing.
			Name: "O5_external_id_unique_guard",
			SQL: `SELECT 'missing_external_id_unique' AS detail
                  WHERE NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'tickets_external_id_key')`,
		},
		{
			Name: "O6_no_duplicate_external_id",
			SQL: `SELECT external_id, COUNT(*) FROM tickets
                  GROUP BY external_id HAVING COUNT(*) > 1`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample
// row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
