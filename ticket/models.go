package ticket

import "time"

// Status is the lifecycle state of a ticket. Only internal staff may move
// a ticket between states; clients create tickets in StatusOpen and never
// transition them.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// transitions is the edge set of the ticket state machine. Resolved and
// closed tickets can reopen; blocked tickets resume through in_progress.
var transitions = map[Status][]Status{
	StatusOpen:       {StatusInProgress},
	StatusInProgress: {StatusBlocked, StatusResolved, StatusOpen},
	StatusBlocked:    {StatusInProgress},
	StatusResolved:   {StatusClosed, StatusOpen, StatusInProgress},
	StatusClosed:     {StatusOpen, StatusInProgress},
}

// ValidStatus reports whether s names a known status.
func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether moving a ticket from one status to the
// next is a legal edge of the state machine.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Priority is the urgency class assigned at creation.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Ticket is the domain representation of a support ticket. Rows are owned
// by the client organization in ClientID.
type Ticket struct {
	ID          int64
	ExternalID  string
	ClientID    int64
	Title       string
	Description *string
	Priority    Priority
	Status      Status
	AssignedTo  *int64
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Message is a conversation entry under a ticket. It has no client_id of
// its own: tenancy is inherited from the parent ticket.
type Message struct {
	ID         int64
	ExternalID string
	TicketID   int64
	AuthorID   string
	Body       string
	CreatedAt  time.Time
}

// Feedback is the single per-ticket satisfaction record a client may
// attach once the ticket is resolved.
type Feedback struct {
	TicketID  int64
	Rating    int
	Comment   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Client is a tenant organization.
type Client struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// TeamMember is an internal staff record referenced by ticket assignment.
type TeamMember struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}
