package identity

import "fmt"

// UserType classifies the caller of a request.
type UserType string

const (
	TypeInternal UserType = "internal"
	TypeClient   UserType = "client"
	TypeAnon     UserType = "anon"
)

// Role enumerates internal staff roles.
type Role string

const (
	RoleSupportAgent Role = "support_agent"
	RoleManager      Role = "manager"
	RoleAdmin        Role = "admin"
)

// AnonUserID is the sentinel user id carried by anonymous contexts.
const AnonUserID = "anon"

// Context describes the caller of a single request. It is created once per
// request by the hosting layer and read throughout; it is never mutated and
// never shared across requests for different callers.
//
// Exactly one of ClientID / TeamMemberID is set for non-anonymous contexts.
// A context that claims a type but lacks its scoping id is invalid and must
// be treated as unauthorized, never as an unscoped caller.
type Context struct {
	UserID       string
	UserType     UserType
	InternalRole Role
	ClientID     *int64
	TeamMemberID *int64
}

// Anonymous returns the context used when no valid session exists.
func Anonymous() Context {
	return Context{UserID: AnonUserID, UserType: TypeAnon}
}

// Internal builds a staff context. The team member id is mandatory: an
// internal account without a staff record must fail resolution upstream
// rather than arrive here with a nil id.
func Internal(userID string, role Role, teamMemberID int64) Context {
	return Context{
		UserID:       userID,
		UserType:     TypeInternal,
		InternalRole: role,
		TeamMemberID: &teamMemberID,
	}
}

// Client builds a context scoped to a single client organization.
func Client(userID string, clientID int64) Context {
	return Context{
		UserID:   userID,
		UserType: TypeClient,
		ClientID: &clientID,
	}
}

// IsAnon reports whether the context is anonymous.
func (c Context) IsAnon() bool {
	return c.UserType == TypeAnon
}

// IsInternal reports whether the context is a well-formed staff context.
// A context of internal type missing its role or team member id does NOT
// count: returning false here forces such callers onto the deny paths.
func (c Context) IsInternal() bool {
	return c.UserType == TypeInternal && c.TeamMemberID != nil && validRole(c.InternalRole)
}

// IsClient reports whether the context is a well-formed client context.
func (c Context) IsClient() bool {
	return c.UserType == TypeClient && c.ClientID != nil
}

// HasRole reports whether the context is a valid internal context holding
// one of the given roles.
func (c Context) HasRole(roles ...Role) bool {
	if !c.IsInternal() {
		return false
	}
	for _, r := range roles {
		if c.InternalRole == r {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants of the context.
func (c Context) Validate() error {
	switch c.UserType {
	case TypeAnon:
		if c.ClientID != nil || c.TeamMemberID != nil {
			return fmt.Errorf("identity: anonymous context carries scoping ids")
		}
		return nil
	case TypeInternal:
		if c.TeamMemberID == nil {
			return fmt.Errorf("identity: internal context missing team member id")
		}
		if c.ClientID != nil {
			return fmt.Errorf("identity: internal context carries client id")
		}
		if !validRole(c.InternalRole) {
			return fmt.Errorf("identity: invalid internal role %q", c.InternalRole)
		}
		return nil
	case TypeClient:
		if c.ClientID == nil {
			return fmt.Errorf("identity: client context missing client id")
		}
		if c.TeamMemberID != nil {
			return fmt.Errorf("identity: client context carries team member id")
		}
		return nil
	default:
		return fmt.Errorf("identity: unknown user type %q", c.UserType)
	}
}

func validRole(role Role) bool {
	switch role {
	case RoleSupportAgent, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}
