package auth

import (
	"time"

	"ticketdesk/identity"
)

// AccountRole is the role stored on an account row. Internal roles map
// onto identity.Role; RoleClient marks a tenant user.
type AccountRole string

const (
	RoleSupportAgent AccountRole = "support_agent"
	RoleManager      AccountRole = "manager"
	RoleAdmin        AccountRole = "admin"
	RoleClient       AccountRole = "client"
)

// AccountStatus gates whether an account can resolve to an identity.
type AccountStatus string

const (
	StatusActive   AccountStatus = "active"
	StatusPending  AccountStatus = "pending"
	StatusDisabled AccountStatus = "disabled"
)

// Account is the domain representation of a login account. It mirrors the
// accounts table and carries no JSON annotations so it can be reused by
// different presentation layers.
type Account struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Role         AccountRole
	Status       AccountStatus
	ClientID     *int64
	TeamMemberID *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterRequest contains account registration data supplied by callers.
type RegisterRequest struct {
	Email        string      `json:"email"`
	Password     string      `json:"password"`
	FullName     string      `json:"full_name"`
	Role         AccountRole `json:"role"`
	ClientID     *int64      `json:"client_id"`
	TeamMemberID *int64      `json:"team_member_id"`
}

// LoginRequest contains login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func isInternalRole(role AccountRole) bool {
	switch role {
	case RoleSupportAgent, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}

func isValidRole(role AccountRole) bool {
	return role == RoleClient || isInternalRole(role)
}

func internalRole(role AccountRole) identity.Role {
	return identity.Role(role)
}
