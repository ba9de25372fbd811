package ticket

import (
	"ticketdesk/identity"
	"ticketdesk/predicate"
)

// Table names used by the registered queries and mutators.
const (
	TableTickets        = "tickets"
	TableTicketMessages = "ticket_messages"
	TableTicketFeedback = "ticket_feedback"
	TableClients        = "clients"
)

// scopeDirect returns the tenancy predicate for a table that carries
// client_id directly. The never-matching predicate is the default branch:
// only a well-formed internal or client context opts out of it, so a
// context missing its scoping id can never read unscoped.
func scopeDirect(ictx identity.Context) predicate.Condition {
	cond := predicate.DenyAll()
	switch {
	case ictx.IsInternal():
		cond = nil
	case ictx.IsClient():
		cond = predicate.Eq("client_id", *ictx.ClientID)
	}
	return cond
}

// scopeThroughTicket returns the tenancy predicate for tables owned
// indirectly through their parent ticket (ticket_messages,
// ticket_feedback). Same deny-by-default shape as scopeDirect.
func scopeThroughTicket(ictx identity.Context) predicate.Condition {
	cond := predicate.DenyAll()
	switch {
	case ictx.IsInternal():
		cond = nil
	case ictx.IsClient():
		cond = predicate.CorrelatedSubquery{
			RelatedTable: TableTickets,
			ParentColumn: "ticket_id",
			ChildColumn:  "id",
			Where:        predicate.Eq("client_id", *ictx.ClientID),
		}
	}
	return cond
}

// combine joins the non-nil conditions into a single predicate.
func combine(conds ...predicate.Condition) predicate.Condition {
	kept := make([]predicate.Condition, 0, len(conds))
	for _, c := range conds {
		if c != nil {
			kept = append(kept, c)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return predicate.And{Conditions: kept}
	}
}
