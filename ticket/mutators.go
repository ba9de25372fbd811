package ticket

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"ticketdesk/authz"
	"ticketdesk/identity"
	"ticketdesk/mutation"
	"ticketdesk/schema"
)

var (
	// ErrTicketNotFound is returned when no ticket row exists for the id a
	// staff caller targeted. Client callers get ErrAccessDenied instead so
	// a denial never confirms that another tenant's row exists.
	ErrTicketNotFound = errors.New("ticket: not found")
	// ErrInvalidTransition signals a status change that is not an edge of
	// the ticket state machine.
	ErrInvalidTransition = errors.New("ticket: invalid status transition")
)

var statusNames = []string{
	string(StatusOpen), string(StatusInProgress), string(StatusBlocked),
	string(StatusResolved), string(StatusClosed),
}

var priorityNames = []string{
	string(PriorityLow), string(PriorityNormal), string(PriorityHigh), string(PriorityUrgent),
}

// RegisterMutators installs the dashboard's named mutators. Same startup
// lifecycle as RegisterQueries.
func RegisterMutators(reg *mutation.Registry) {
	reg.Register(mutation.Definition{
		Name: "tickets.create",
		Schema: schema.Schema{Fields: []schema.Field{
			{Name: "id", Kind: schema.KindString},
			schema.IntField("clientId", true, 1, maxID, nil),
			{Name: "title", Kind: schema.KindString, Required: true},
			{Name: "description", Kind: schema.KindString},
			{Name: "priority", Kind: schema.KindString, Enum: priorityNames, Default: string(PriorityNormal)},
			schema.IntField("assignedTo", false, 1, maxID, nil),
		}},
		Handle: createTicket,
	})
	reg.Register(mutation.Definition{
		Name: "tickets.updateStatus",
		Schema: schema.Schema{Fields: []schema.Field{
			schema.IntField("ticketId", true, 1, maxID, nil),
			{Name: "status", Kind: schema.KindString, Required: true, Enum: statusNames},
		}},
		Handle: updateTicketStatus,
	})
	reg.Register(mutation.Definition{
		Name: "tickets.assign",
		Schema: schema.Schema{Fields: []schema.Field{
			schema.IntField("ticketId", true, 1, maxID, nil),
			schema.IntField("teamMemberId", false, 1, maxID, nil),
		}},
		Handle: assignTicket,
	})
	reg.Register(mutation.Definition{
		Name: "ticketMessages.create",
		Schema: schema.Schema{Fields: []schema.Field{
			{Name: "id", Kind: schema.KindString},
			schema.IntField("ticketId", true, 1, maxID, nil),
			{Name: "body", Kind: schema.KindString, Required: true},
		}},
		Handle: createMessage,
	})
	reg.Register(mutation.Definition{
		Name: "ticketFeedback.upsert",
		Schema: schema.Schema{Fields: []schema.Field{
			schema.IntField("ticketId", true, 1, maxID, nil),
			schema.IntField("rating", true, 1, 5, nil),
			{Name: "comment", Kind: schema.KindString},
		}},
		Handle: upsertFeedback,
	})
	reg.Register(mutation.Definition{
		Name: "clients.create",
		Schema: schema.Schema{Fields: []schema.Field{
			{Name: "name", Kind: schema.KindString, Required: true},
		}},
		Handle: createClient,
	})
}

// resolveOwningClient applies the ownership rule shared by every
// tenant-owned write: staff may target any client id supplied in params; a
// client caller has the owning id forced from its own context, and a
// mismatching id in params is rejected rather than silently corrected.
// Anonymous and malformed contexts are denied.
func resolveOwningClient(ictx identity.Context, requested int64) (int64, error) {
	switch {
	case ictx.IsInternal():
		return requested, nil
	case ictx.IsClient():
		if requested != *ictx.ClientID {
			return 0, authz.ErrAccessDenied
		}
		return *ictx.ClientID, nil
	default:
		return 0, authz.ErrAccessDenied
	}
}

func createTicket(ctx context.Context, tx pgx.Tx, params schema.Values, ictx identity.Context, loc mutation.Location) error {
	owner, err := resolveOwningClient(ictx, params.Int("clientId"))
	if err != nil {
		return err
	}

	// Clients never choose an assignee; new tickets from a client always
	// start unassigned.
	var assignee *int64
	if ictx.IsInternal() {
		assignee = params.IntPtr("assignedTo")
	}

	var description *string
	if params.Has("description") {
		d := params.String("description")
		description = &d
	}

	// The external id keys the insert so a retried request lands on the
	// existing row instead of creating a duplicate.
	externalID := params.StringOr("id", uuid.NewString())

	const insertSQL = `
		INSERT INTO tickets (external_id, client_id, title, description, priority, status, assigned_to, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (external_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, insertSQL,
		externalID,
		owner,
		params.String("title"),
		description,
		params.String("priority"),
		string(StatusOpen),
		assignee,
		ictx.UserID,
	); err != nil {
		return fmt.Errorf("ticket: insert ticket: %w", err)
	}

	return nil
}

func updateTicketStatus(ctx context.Context, tx pgx.Tx, params schema.Values, ictx identity.Context, loc mutation.Location) error {
	if !ictx.IsInternal() {
		return authz.ErrAccessDenied
	}

	ticketID := params.Int("ticketId")
	next := Status(params.String("status"))

	// The server run re-reads the current status under lock so the
	// transition check and the write cannot be split by a concurrent
	// writer. A client-location run is speculative: the authoritative
	// server run repeats the check.
	if loc == mutation.LocationServer {
		var current Status
		err := tx.QueryRow(ctx, `SELECT status FROM tickets WHERE id = $1 FOR UPDATE`, ticketID).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTicketNotFound
			}
			return fmt.Errorf("ticket: fetch status: %w", err)
		}
		if !CanTransition(current, next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE tickets SET status = $2, updated_at = now() WHERE id = $1`, ticketID, string(next)); err != nil {
		return fmt.Errorf("ticket: update status: %w", err)
	}

	return nil
}

func assignTicket(ctx context.Context, tx pgx.Tx, params schema.Values, ictx identity.Context, loc mutation.Location) error {
	if !ictx.IsInternal() {
		return authz.ErrAccessDenied
	}

	ticketID := params.Int("ticketId")
	assignee := params.IntPtr("teamMemberId")

	if loc == mutation.LocationServer {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id = $1)`, ticketID).Scan(&exists); err != nil {
			return fmt.Errorf("ticket: check ticket: %w", err)
		}
		if !exists {
			return ErrTicketNotFound
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE tickets SET assigned_to = $2, updated_at = now() WHERE id = $1`, ticketID, assignee); err != nil {
		return fmt.Errorf("ticket: assign: %w", err)
	}

	return nil
}

func createMessage(ctx context.Context, tx pgx.Tx, params schema.Values, ictx identity.Context, loc mutation.Location) error {
	if ictx.IsAnon() || (!ictx.IsInternal() && !ictx.IsClient()) {
		return authz.ErrAccessDenied
	}

	ticketID := params.Int("ticketId")

	if loc == mutation.LocationServer {
		var owner int64
		err := tx.QueryRow(ctx, `SELECT client_id FROM tickets WHERE id = $1 FOR UPDATE`, ticketID).Scan(&owner)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				if ictx.IsInternal() {
					return ErrTicketNotFound
				}
				return authz.ErrAccessDenied
			}
			return fmt.Errorf("ticket: fetch message ticket: %w", err)
		}
		if ictx.IsClient() && owner != *ictx.ClientID {
			return authz.ErrAccessDenied
		}
	}

	externalID := params.StringOr("id", uuid.NewString())

	const insertSQL = `
		INSERT INTO ticket_messages (external_id, ticket_id, author_id, body)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (external_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, insertSQL, externalID, ticketID, ictx.UserID, params.String("body")); err != nil {
		return fmt.Errorf("ticket: insert message: %w", err)
	}

	return nil
}

func upsertFeedback(ctx context.Context, tx pgx.Tx, params schema.Values, ictx identity.Context, loc mutation.Location) error {
	if !ictx.IsClient() {
		return authz.ErrAccessDenied
	}

	ticketID := params.Int("ticketId")

	// Feedback attaches only to the caller's own resolved tickets. The
	// row is locked so the status cannot change between this check and
	// the write.
	if loc == mutation.LocationServer {
		var (
			owner  int64
			status Status
		)
		err := tx.QueryRow(ctx, `SELECT client_id, status FROM tickets WHERE id = $1 FOR UPDATE`, ticketID).Scan(&owner, &status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return authz.ErrAccessDenied
			}
			return fmt.Errorf("ticket: fetch feedback ticket: %w", err)
		}
		if owner != *ictx.ClientID || status != StatusResolved {
			return authz.ErrAccessDenied
		}
	}

	var comment *string
	if params.Has("comment") {
		c := params.String("comment")
		comment = &c
	}

	const upsertSQL = `
		INSERT INTO ticket_feedback (ticket_id, rating, comment)
		VALUES ($1, $2, $3)
		ON CONFLICT (ticket_id) DO UPDATE
		SET rating = EXCLUDED.rating,
		    comment = EXCLUDED.comment,
		    updated_at = now()
	`
	if _, err := tx.Exec(ctx, upsertSQL, ticketID, params.Int("rating"), comment); err != nil {
		return fmt.Errorf("ticket: upsert feedback: %w", err)
	}

	return nil
}

func createClient(ctx context.Context, tx pgx.Tx, params schema.Values, ictx identity.Context, loc mutation.Location) error {
	if !ictx.HasRole(identity.RoleAdmin) {
		return authz.ErrAccessDenied
	}

	if _, err := tx.Exec(ctx, `INSERT INTO clients (name) VALUES ($1)`, params.String("name")); err != nil {
		return fmt.Errorf("ticket: insert client: %w", err)
	}

	return nil
}
