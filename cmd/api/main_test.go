package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ticketdesk/auth"
	"ticketdesk/authz"
	"ticketdesk/identity"
	"ticketdesk/mutation"
	"ticketdesk/predicate"
	"ticketdesk/ticket"
)

type stubAuth struct {
	loginResult auth.LoginResult
	loginErr    error
	resolved    identity.Context
	resolveErr  error
}

func (s *stubAuth) Login(_ context.Context, _ auth.LoginRequest) (auth.LoginResult, error) {
	return s.loginResult, s.loginErr
}

func (s *stubAuth) Resolve(_ context.Context, _ string) (identity.Context, error) {
	return s.resolved, s.resolveErr
}

type stubQueries struct {
	rows       []map[string]any
	tree       predicate.Query
	err        error
	gotName    string
	gotParams  map[string]any
	gotCaller  identity.Context
	introspect bool
}

func (s *stubQueries) Execute(_ context.Context, name string, raw map[string]any, ictx identity.Context) ([]map[string]any, error) {
	s.gotName, s.gotParams, s.gotCaller = name, raw, ictx
	return s.rows, s.err
}

func (s *stubQueries) Introspect(name string, raw map[string]any, ictx identity.Context) (predicate.Query, error) {
	s.gotName, s.gotParams, s.gotCaller = name, raw, ictx
	s.introspect = true
	return s.tree, s.err
}

type stubMutations struct {
	err       error
	gotName   string
	gotCaller identity.Context
	gotLoc    mutation.Location
	calls     int
}

func (s *stubMutations) Execute(_ context.Context, name string, _ map[string]any, ictx identity.Context, loc mutation.Location) error {
	s.gotName, s.gotCaller, s.gotLoc = name, ictx, loc
	s.calls++
	return s.err
}

func TestHandleLogin_Success(t *testing.T) {
	server := &Server{auth: &stubAuth{loginResult: auth.LoginResult{Token: "tok-1"}}}

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"a@b.c","password":"pw"}`))
	rec := httptest.NewRecorder()

	server.handleLogin(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token != "tok-1" {
		t.Fatalf("unexpected token: %q", resp.Token)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	server := &Server{auth: &stubAuth{loginErr: auth.ErrInvalidCredentials}}

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"a@b.c","password":"wrong"}`))
	rec := httptest.NewRecorder()

	server.handleLogin(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleQuery_Success(t *testing.T) {
	queries := &stubQueries{rows: []map[string]any{{"id": float64(1), "title": "printer"}}}
	server := &Server{
		auth:    &stubAuth{resolved: identity.Client("acct-c7", 7)},
		queries: queries,
	}

	req := httptest.NewRequest(http.MethodPost, "/api/query/tickets.recent", strings.NewReader(`{"limit":10}`))
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()

	server.handleQuery(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if queries.gotName != "tickets.recent" {
		t.Fatalf("name not routed: %q", queries.gotName)
	}
	if !queries.gotCaller.IsClient() {
		t.Fatalf("resolved identity not passed through: %+v", queries.gotCaller)
	}
	var rows []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(rows) != 1 || rows[0]["title"] != "printer" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

// A token that fails resolution degrades the query path to anonymous:
// the request succeeds with whatever the deny predicate yields.
func TestHandleQuery_UnresolvableFallsBackToAnonymous(t *testing.T) {
	queries := &stubQueries{rows: []map[string]any{}}
	server := &Server{
		auth:    &stubAuth{resolveErr: auth.ErrUnresolvable},
		queries: queries,
	}

	req := httptest.NewRequest(http.MethodPost, "/api/query/tickets.recent", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer stale")
	rec := httptest.NewRecorder()

	server.handleQuery(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !queries.gotCaller.IsAnon() {
		t.Fatalf("expected anonymous fallback, got %+v", queries.gotCaller)
	}
}

func TestHandleQuery_EmptyBody(t *testing.T) {
	queries := &stubQueries{rows: []map[string]any{}}
	server := &Server{auth: &stubAuth{resolved: identity.Anonymous()}, queries: queries}

	req := httptest.NewRequest(http.MethodPost, "/api/query/tickets.recent", nil)
	rec := httptest.NewRecorder()

	server.handleQuery(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if queries.gotParams == nil || len(queries.gotParams) != 0 {
		t.Fatalf("empty body must decode to an empty object, got %#v", queries.gotParams)
	}
}

func TestHandleQuery_Introspect(t *testing.T) {
	tree := predicate.Query{Table: "tickets", Where: predicate.Eq("client_id", int64(7))}
	queries := &stubQueries{tree: tree}
	server := &Server{auth: &stubAuth{resolved: identity.Client("acct-c7", 7)}, queries: queries}

	req := httptest.NewRequest(http.MethodPost, "/api/query/tickets.recent?introspect=1", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	server.handleQuery(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !queries.introspect {
		t.Fatal("introspect flag must route to Introspect, not Execute")
	}
	var got predicate.Query
	if err := got.UnmarshalJSON(rec.Body.Bytes()); err != nil {
		t.Fatalf("decode tree: %v", err)
	}
	if got.Table != "tickets" {
		t.Fatalf("unexpected tree: %+v", got)
	}
}

func TestHandleQuery_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"not found", authz.ErrNotFound, http.StatusNotFound},
		{"validation", authz.NewValidationError("limit", "must be >= 1"), http.StatusBadRequest},
		{"denied", authz.ErrAccessDenied, http.StatusForbidden},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := &Server{
				auth:    &stubAuth{resolved: identity.Anonymous()},
				queries: &stubQueries{err: tc.err},
			}
			req := httptest.NewRequest(http.MethodPost, "/api/query/x", strings.NewReader(`{}`))
			rec := httptest.NewRecorder()

			server.handleQuery(rec, req)

			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, rec.Code)
			}
		})
	}
}

func TestHandleQuery_WrongMethod(t *testing.T) {
	server := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/api/query/tickets.recent", nil)
	rec := httptest.NewRecorder()

	server.handleQuery(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleMutate_Success(t *testing.T) {
	mutations := &stubMutations{}
	server := &Server{
		auth:      &stubAuth{resolved: identity.Internal("acct-a", identity.RoleManager, 1)},
		mutations: mutations,
	}

	req := httptest.NewRequest(http.MethodPost, "/api/mutate/tickets.updateStatus", strings.NewReader(`{"ticketId":1,"status":"in_progress"}`))
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()

	server.handleMutate(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if mutations.gotName != "tickets.updateStatus" {
		t.Fatalf("name not routed: %q", mutations.gotName)
	}
	if mutations.gotLoc != mutation.LocationServer {
		t.Fatalf("HTTP mutations must run at the server location, got %q", mutations.gotLoc)
	}
}

// Mutations have no anonymous fallback: an unresolvable caller is
// rejected before the executor is touched.
func TestHandleMutate_UnresolvableRejected(t *testing.T) {
	mutations := &stubMutations{}
	server := &Server{
		auth:      &stubAuth{resolveErr: auth.ErrUnresolvable},
		mutations: mutations,
	}

	req := httptest.NewRequest(http.MethodPost, "/api/mutate/tickets.create", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	server.handleMutate(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if mutations.calls != 0 {
		t.Fatal("executor must not run for an unresolved caller")
	}
}

func TestHandleMutate_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"denied", authz.ErrAccessDenied, http.StatusForbidden},
		{"ticket missing", ticket.ErrTicketNotFound, http.StatusNotFound},
		{"bad transition", ticket.ErrInvalidTransition, http.StatusConflict},
		{"validation", authz.NewValidationError("rating", "must be <= 5"), http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := &Server{
				auth:      &stubAuth{resolved: identity.Client("acct-c1", 1)},
				mutations: &stubMutations{err: tc.err},
			}
			req := httptest.NewRequest(http.MethodPost, "/api/mutate/x", strings.NewReader(`{}`))
			rec := httptest.NewRecorder()

			server.handleMutate(rec, req)

			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, rec.Code)
			}
		})
	}
}

func TestHandleMutate_InvalidBody(t *testing.T) {
	server := &Server{auth: &stubAuth{resolved: identity.Anonymous()}}

	req := httptest.NewRequest(http.MethodPost, "/api/mutate/x", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()

	server.handleMutate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
