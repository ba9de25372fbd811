package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"ticketdesk/identity"
)

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("auth: password must be at least 8 characters")
	// ErrUnresolvable signals a session that must not reach the executors:
	// missing/invalid token, unknown or inactive account, or an account
	// whose role and scoping ids disagree.
	ErrUnresolvable = errors.New("auth: identity unresolvable")
)

// Service handles authentication and identity resolution.
type Service struct {
	repo      Repository
	jwtSecret []byte
}

// LoginResult bundles the token and account returned after a successful login.
type LoginResult struct {
	Token   string
	Account Account
}

// NewService creates a new authentication service.
func NewService(repo Repository, jwtSecret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
	}
}

// Register creates a new account. Internal roles must reference a staff
// record and client accounts must reference an organization; accounts that
// would resolve ambiguously are rejected at the door.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	if len(req.Password) < 8 {
		return nil, ErrWeakPassword
	}
	if req.Email == "" || req.FullName == "" {
		return nil, fmt.Errorf("auth: email and full_name are required")
	}

	role := AccountRole(strings.TrimSpace(string(req.Role)))
	if role == "" {
		role = RoleClient
	}
	if !isValidRole(role) {
		return nil, fmt.Errorf("auth: invalid role %q", role)
	}
	if isInternalRole(role) {
		if req.TeamMemberID == nil {
			return nil, fmt.Errorf("auth: internal role %q requires team_member_id", role)
		}
		if req.ClientID != nil {
			return nil, fmt.Errorf("auth: internal role %q must not carry client_id", role)
		}
	} else {
		if req.ClientID == nil {
			return nil, fmt.Errorf("auth: client role requires client_id")
		}
		if req.TeamMemberID != nil {
			return nil, fmt.Errorf("auth: client role must not carry team_member_id")
		}
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	account, err := s.repo.CreateAccount(ctx, CreateAccountParams{
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: string(passwordHash),
		Role:         role,
		ClientID:     req.ClientID,
		TeamMemberID: req.TeamMemberID,
	})
	if err != nil {
		return nil, err
	}

	return &account, nil
}

// Login authenticates an account and returns a JWT token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	account, err := s.repo.GetAccountByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.generateToken(account.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: generate token: %w", err)
	}

	return LoginResult{
		Token:   token,
		Account: account,
	}, nil
}

// Resolve turns a session token into the caller's identity context.
//
// Every failure is ErrUnresolvable: the hosting layer decides whether that
// becomes a request failure (mutations) or an anonymous context (queries,
// so public/no-op reads stay servable while a session hydrates). Resolve
// itself never downgrades a broken internal account to an unscoped
// context; an internal account without a staff record, or a client account
// without an organization, fails outright.
func (s *Service) Resolve(ctx context.Context, tokenString string) (identity.Context, error) {
	if tokenString == "" {
		return identity.Context{}, ErrUnresolvable
	}

	accountID, err := s.verifyToken(tokenString)
	if err != nil {
		return identity.Context{}, fmt.Errorf("%w: %w", ErrUnresolvable, err)
	}

	account, err := s.repo.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return identity.Context{}, ErrUnresolvable
		}
		return identity.Context{}, err
	}

	if account.Status != StatusActive {
		return identity.Context{}, ErrUnresolvable
	}

	switch {
	case isInternalRole(account.Role):
		if account.TeamMemberID == nil {
			return identity.Context{}, fmt.Errorf("%w: internal account %s has no staff record", ErrUnresolvable, account.ID)
		}
		return identity.Internal(account.ID, internalRole(account.Role), *account.TeamMemberID), nil
	case account.Role == RoleClient:
		if account.ClientID == nil {
			return identity.Context{}, fmt.Errorf("%w: client account %s has no organization", ErrUnresolvable, account.ID)
		}
		return identity.Client(account.ID, *account.ClientID), nil
	default:
		return identity.Context{}, fmt.Errorf("%w: unknown role %q", ErrUnresolvable, account.Role)
	}
}

// verifyToken validates a JWT token and returns the account ID.
func (s *Service) verifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("auth: parse token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		accountID, ok := claims["account_id"].(string)
		if !ok {
			return "", fmt.Errorf("auth: invalid account_id in token")
		}
		return accountID, nil
	}

	return "", fmt.Errorf("auth: invalid token")
}

// generateToken creates a JWT token for the account.
func (s *Service) generateToken(accountID string) (string, error) {
	claims := jwt.MapClaims{
		"account_id": accountID,
		"exp":        time.Now().Add(24 * time.Hour).Unix(),
		"iat":        time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}
