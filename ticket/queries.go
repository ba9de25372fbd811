package ticket

import (
	"ticketdesk/identity"
	"ticketdesk/predicate"
	"ticketdesk/query"
	"ticketdesk/schema"
)

// RegisterQueries installs the dashboard's named queries. Called once at
// startup; a duplicate name panics before the process serves anything.
func RegisterQueries(reg *query.Registry) {
	reg.Register(query.Definition{
		Name:   "tickets.recent",
		Schema: schema.Schema{Fields: []schema.Field{limitField(500, 50)}},
		Build:  buildTicketsRecent,
	})
	reg.Register(query.Definition{
		Name: "tickets.byClient",
		Schema: schema.Schema{Fields: []schema.Field{
			schema.IntField("clientId", true, 1, maxID, nil),
			limitField(500, 50),
		}},
		Build: buildTicketsByClient,
	})
	reg.Register(query.Definition{
		Name:   "tickets.assignedTo",
		Schema: schema.Schema{Fields: []schema.Field{limitField(200, 50)}},
		Build:  buildTicketsAssignedTo,
	})
	reg.Register(query.Definition{
		Name: "ticketMessages.byTicket",
		Schema: schema.Schema{Fields: []schema.Field{
			schema.IntField("ticketId", true, 1, maxID, nil),
		}},
		Build: buildMessagesByTicket,
	})
	reg.Register(query.Definition{
		Name: "ticketFeedback.byTicket",
		Schema: schema.Schema{Fields: []schema.Field{
			schema.IntField("ticketId", true, 1, maxID, nil),
		}},
		Build: buildFeedbackByTicket,
	})
	reg.Register(query.Definition{
		Name:   "clients.list",
		Schema: schema.Schema{Fields: []schema.Field{limitField(200, 100)}},
		Build:  buildClientsList,
	})
}

const maxID = int64(1) << 62

func limitField(max, def int64) schema.Field {
	return schema.IntField("limit", false, 1, max, def)
}

func buildTicketsRecent(params schema.Values, ictx identity.Context) predicate.Query {
	return predicate.Query{
		Table:   TableTickets,
		Where:   scopeDirect(ictx),
		OrderBy: newestFirst(),
		Limit:   int(params.Int("limit")),
	}
}

// buildTicketsByClient filters by a requested client id. Internal staff
// may ask for any tenant; a client caller is rescoped to its own id no
// matter what the argument says, so requesting another tenant's id
// explicitly still only ever returns the caller's rows.
func buildTicketsByClient(params schema.Values, ictx identity.Context) predicate.Query {
	cond := predicate.DenyAll()
	switch {
	case ictx.IsInternal():
		cond = predicate.Eq("client_id", params.Int("clientId"))
	case ictx.IsClient():
		cond = predicate.Eq("client_id", *ictx.ClientID)
	}
	return predicate.Query{
		Table:   TableTickets,
		Where:   cond,
		OrderBy: newestFirst(),
		Limit:   int(params.Int("limit")),
	}
}

// buildTicketsAssignedTo is "my assigned work": the one internal query
// scoped by the caller's own team member id rather than unscoped.
func buildTicketsAssignedTo(params schema.Values, ictx identity.Context) predicate.Query {
	cond := predicate.DenyAll()
	if ictx.IsInternal() {
		cond = predicate.Eq("assigned_to", *ictx.TeamMemberID)
	}
	return predicate.Query{
		Table:   TableTickets,
		Where:   cond,
		OrderBy: newestFirst(),
		Limit:   int(params.Int("limit")),
	}
}

func buildMessagesByTicket(params schema.Values, ictx identity.Context) predicate.Query {
	return predicate.Query{
		Table: TableTicketMessages,
		Where: combine(
			predicate.Eq("ticket_id", params.Int("ticketId")),
			scopeThroughTicket(ictx),
		),
		OrderBy: []predicate.Order{{Column: "created_at"}, {Column: "id"}},
	}
}

func buildFeedbackByTicket(params schema.Values, ictx identity.Context) predicate.Query {
	return predicate.Query{
		Table: TableTicketFeedback,
		Where: combine(
			predicate.Eq("ticket_id", params.Int("ticketId")),
			scopeThroughTicket(ictx),
		),
	}
}

// buildClientsList is unscoped for staff: any internal caller may list
// every tenant. A client caller sees only its own organization row.
func buildClientsList(params schema.Values, ictx identity.Context) predicate.Query {
	cond := predicate.DenyAll()
	switch {
	case ictx.IsInternal():
		cond = nil
	case ictx.IsClient():
		cond = predicate.Eq("id", *ictx.ClientID)
	}
	return predicate.Query{
		Table:   TableClients,
		Where:   cond,
		OrderBy: []predicate.Order{{Column: "id"}},
		Limit:   int(params.Int("limit")),
	}
}

func newestFirst() []predicate.Order {
	return []predicate.Order{
		{Column: "created_at", Desc: true},
		{Column: "id", Desc: true},
	}
}
