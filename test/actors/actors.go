// Package actors holds the concurrent workloads the stress test runs
// against the authorization layer. Every actor goes through the real
// executors with a real identity context, never around them, so the
// scoping rules are exercised exactly as production traffic would.
package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"ticketdesk/authz"
	"ticketdesk/identity"
	"ticketdesk/mutation"
	"ticketdesk/query"
	"ticketdesk/ticket"
)

// transient reports errors an actor should ride out rather than fail on:
// store hiccups (the chaos actor kills backends) and shutdown races.
func transient(err error) bool {
	return errors.Is(err, authz.ErrInternal) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Creator files tickets for its own tenant. Every few iterations it
// replays a fixed idempotency key, so retried creates battle over the
// same external id under contention.
func Creator(ctx context.Context, mut *mutation.Executor, ictx identity.Context, clientID int64, stop <-chan struct{}) error {
	replayKey := uuid.NewString()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		key := uuid.NewString()
		if i%5 == 0 {
			key = replayKey
		}
		err := mut.Execute(ctx, "tickets.create", map[string]any{
			"id":       key,
			"clientId": clientID,
			"title":    fmt.Sprintf("stress ticket %d", rand.Int63()),
		}, ictx, mutation.LocationServer)
		if err != nil && !transient(err) {
			return fmt.Errorf("creator: %w", err)
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Transitioner walks random tickets through the status machine as staff.
// Illegal edges and vanished tickets are expected under contention.
func Transitioner(ctx context.Context, pool *pgxpool.Pool, mut *mutation.Executor, ictx identity.Context, stop <-chan struct{}) error {
	statuses := []ticket.Status{
		ticket.StatusOpen, ticket.StatusInProgress, ticket.StatusBlocked,
		ticket.StatusResolved, ticket.StatusClosed,
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		var id int64
		if err := pool.QueryRow(ctx, `SELECT id FROM tickets ORDER BY random() LIMIT 1`).Scan(&id); err != nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		err := mut.Execute(ctx, "tickets.updateStatus", map[string]any{
			"ticketId": id,
			"status":   string(statuses[rand.Intn(len(statuses))]),
		}, ictx, mutation.LocationServer)
		if err != nil &&
			!errors.Is(err, ticket.ErrInvalidTransition) &&
			!errors.Is(err, ticket.ErrTicketNotFound) &&
			!transient(err) {
			return fmt.Errorf("transitioner: %w", err)
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// Messenger posts messages on random tickets as a client. Posting on
// another tenant's ticket must come back as an opaque denial, which the
// actor treats as success of the guard, not failure of the run.
func Messenger(ctx context.Context, pool *pgxpool.Pool, mut *mutation.Executor, ictx identity.Context, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		var id int64
		if err := pool.QueryRow(ctx, `SELECT id FROM tickets ORDER BY random() LIMIT 1`).Scan(&id); err != nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		err := mut.Execute(ctx, "ticketMessages.create", map[string]any{
			"ticketId": id,
			"body":     "stress message",
		}, ictx, mutation.LocationServer)
		if err != nil && !errors.Is(err, authz.ErrAccessDenied) && !transient(err) {
			return fmt.Errorf("messenger: %w", err)
		}
		time.Sleep(time.Duration(15+rand.Intn(35)) * time.Millisecond)
	}
}

// Reviewer attempts feedback on random tickets as a client. Only its own
// resolved tickets may accept it; everything else must deny.
func Reviewer(ctx context.Context, pool *pgxpool.Pool, mut *mutation.Executor, ictx identity.Context, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		var id int64
		if err := pool.QueryRow(ctx, `SELECT id FROM tickets ORDER BY random() LIMIT 1`).Scan(&id); err != nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		err := mut.Execute(ctx, "ticketFeedback.upsert", map[string]any{
			"ticketId": id,
			"rating":   1 + rand.Intn(5),
		}, ictx, mutation.LocationServer)
		if err != nil && !errors.Is(err, authz.ErrAccessDenied) && !transient(err) {
			return fmt.Errorf("reviewer: %w", err)
		}
		time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)
	}
}

// Reader runs the tenant's dashboard query in a loop and fails the run
// the moment a row from another tenant shows up. This is the live leak
// detector; the SQL oracles only see the final state.
func Reader(ctx context.Context, q *query.Executor, ictx identity.Context, clientID int64, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		rows, err := q.Execute(ctx, "tickets.recent", map[string]any{"limit": 100}, ictx)
		if err != nil {
			if transient(err) {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return fmt.Errorf("reader: %w", err)
		}
		for _, row := range rows {
			owner, ok := row["client_id"].(int64)
			if !ok || owner != clientID {
				return fmt.Errorf("reader: tenant %d saw row %v", clientID, row)
			}
		}
		time.Sleep(time.Duration(30+rand.Intn(50)) * time.Millisecond)
	}
}
