package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"ticketdesk/identity"
)

func TestService_RegisterAndLogin(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	clientID := int64(7)
	req := RegisterRequest{
		Email:    "alice@example.com",
		Password: "supersafe",
		FullName: "Alice Client",
		Role:     RoleClient,
		ClientID: &clientID,
	}

	ctx := context.Background()
	account, err := svc.Register(ctx, req)
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}

	if account.Email != req.Email {
		t.Fatalf("expected email %q got %q", req.Email, account.Email)
	}
	if account.Role != RoleClient {
		t.Fatalf("register: expected role %s got %s", RoleClient, account.Role)
	}

	resp, err := svc.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		t.Fatalf("login: unexpected error: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login: expected token, got empty string")
	}

	ictx, err := svc.Resolve(ctx, resp.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !ictx.IsClient() {
		t.Fatalf("resolve: expected client context, got %+v", ictx)
	}
	if *ictx.ClientID != clientID {
		t.Fatalf("resolve: expected client id %d got %d", clientID, *ictx.ClientID)
	}
	if ictx.UserID != account.ID {
		t.Fatalf("resolve: expected user id %q got %q", account.ID, ictx.UserID)
	}
}

func TestService_ResolveInternal(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")
	ctx := context.Background()

	teamMemberID := int64(3)
	_, err := svc.Register(ctx, RegisterRequest{
		Email:        "mona@example.com",
		Password:     "strongpassword",
		FullName:     "Mona Manager",
		Role:         RoleManager,
		TeamMemberID: &teamMemberID,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, err := svc.Login(ctx, LoginRequest{Email: "mona@example.com", Password: "strongpassword"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	ictx, err := svc.Resolve(ctx, resp.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !ictx.IsInternal() {
		t.Fatalf("expected internal context, got %+v", ictx)
	}
	if ictx.InternalRole != identity.RoleManager {
		t.Fatalf("expected role manager, got %s", ictx.InternalRole)
	}
	if *ictx.TeamMemberID != teamMemberID {
		t.Fatalf("expected team member id %d got %d", teamMemberID, *ictx.TeamMemberID)
	}
	if err := ictx.Validate(); err != nil {
		t.Fatalf("resolved context invalid: %v", err)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")
	ctx := context.Background()
	clientID := int64(1)

	_, err := svc.Register(ctx, RegisterRequest{
		Email:    "alice@example.com",
		Password: "short",
		FullName: "Alice",
		Role:     RoleClient,
		ClientID: &clientID,
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	// internal role without a staff record must be rejected, not stored
	// as an unscoped internal account
	if _, err := svc.Register(ctx, RegisterRequest{
		Email:    "bob@example.com",
		Password: "strongpassword",
		FullName: "Bob Agent",
		Role:     RoleSupportAgent,
	}); err == nil {
		t.Fatal("expected error for internal account without team_member_id")
	}

	if _, err := svc.Register(ctx, RegisterRequest{
		Email:    "carol@example.com",
		Password: "strongpassword",
		FullName: "Carol Client",
		Role:     RoleClient,
	}); err == nil {
		t.Fatal("expected error for client account without client_id")
	}
}

func TestService_ResolveFailures(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")
	ctx := context.Background()

	if _, err := svc.Resolve(ctx, ""); !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("empty token: expected ErrUnresolvable, got %v", err)
	}
	if _, err := svc.Resolve(ctx, "not-a-jwt"); !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("garbage token: expected ErrUnresolvable, got %v", err)
	}

	clientID := int64(9)
	account, err := svc.Register(ctx, RegisterRequest{
		Email:    "dave@example.com",
		Password: "strongpassword",
		FullName: "Dave Client",
		Role:     RoleClient,
		ClientID: &clientID,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	resp, err := svc.Login(ctx, LoginRequest{Email: "dave@example.com", Password: "strongpassword"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// disabling the account must break resolution even with a live token
	repo.setStatus(account.ID, StatusDisabled)
	if _, err := svc.Resolve(ctx, resp.Token); !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("disabled account: expected ErrUnresolvable, got %v", err)
	}

	// an internal account whose staff record was removed must fail, never
	// resolve to internal-with-no-scoping
	repo.setStatus(account.ID, StatusActive)
	repo.corruptToInternal(account.ID)
	if _, err := svc.Resolve(ctx, resp.Token); !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("internal without staff record: expected ErrUnresolvable, got %v", err)
	}
}

func TestService_LoginInvalidCredentials(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "unknown@example.com",
		Password: "irrelevant",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

type fakeRepository struct {
	accountsByEmail map[string]Account
	accountsByID    map[string]Account
	nextID          int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		accountsByEmail: make(map[string]Account),
		accountsByID:    make(map[string]Account),
		nextID:          1,
	}
}

func (f *fakeRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error) {
	if _, exists := f.accountsByEmail[strings.ToLower(params.Email)]; exists {
		return Account{}, ErrDuplicateEmail
	}

	id := fmt.Sprintf("account-%d", f.nextID)
	f.nextID++

	account := Account{
		ID:           id,
		Email:        params.Email,
		FullName:     params.FullName,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		Status:       StatusActive,
		ClientID:     params.ClientID,
		TeamMemberID: params.TeamMemberID,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	f.accountsByEmail[strings.ToLower(account.Email)] = account
	f.accountsByID[account.ID] = account

	return account, nil
}

func (f *fakeRepository) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	account, ok := f.accountsByEmail[strings.ToLower(email)]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (f *fakeRepository) GetAccountByID(ctx context.Context, accountID string) (Account, error) {
	account, ok := f.accountsByID[accountID]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (f *fakeRepository) setStatus(accountID string, status AccountStatus) {
	account := f.accountsByID[accountID]
	account.Status = status
	f.accountsByID[accountID] = account
	f.accountsByEmail[strings.ToLower(account.Email)] = account
}

func (f *fakeRepository) corruptToInternal(accountID string) {
	account := f.accountsByID[accountID]
	account.Role = RoleSupportAgent
	account.ClientID = nil
	account.TeamMemberID = nil
	f.accountsByID[accountID] = account
	f.accountsByEmail[strings.ToLower(account.Email)] = account
}
