package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"ticketdesk/auth"
	"ticketdesk/authz"
	"ticketdesk/identity"
	"ticketdesk/mutation"
	"ticketdesk/predicate"
	"ticketdesk/ticket"
)

// queryExecutor abstracts query.Executor for testability.
type queryExecutor interface {
	Execute(ctx context.Context, name string, raw map[string]any, ictx identity.Context) ([]map[string]any, error)
	Introspect(name string, raw map[string]any, ictx identity.Context) (predicate.Query, error)
}

// mutationExecutor abstracts mutation.Executor for testability.
type mutationExecutor interface {
	Execute(ctx context.Context, name string, raw map[string]any, ictx identity.Context, loc mutation.Location) error
}

// authService abstracts auth.Service for testability.
type authService interface {
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	Resolve(ctx context.Context, token string) (identity.Context, error)
}

// Server wires the HTTP surface to the authorization layer.
type Server struct {
	auth      authService
	queries   queryExecutor
	mutations mutationExecutor
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/query/", s.handleQuery)
	mux.HandleFunc("/api/mutate/", s.handleMutate)
	return mux
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	result, err := s.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		log.Printf("login: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: result.Token})
}

// handleQuery serves POST /api/query/<name>. The body is the raw parameter
// object; `?introspect=1` returns the predicate the query would run
// instead of executing it.
//
// Resolution failures fall back to the anonymous context on this path
// only: builders give anonymous callers a never-matching predicate, so UI
// code racing session hydration gets an empty result instead of an error.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/query/")
	raw, ok := decodeParams(w, r)
	if !ok {
		return
	}

	ictx, err := s.auth.Resolve(r.Context(), bearerToken(r))
	if err != nil {
		ictx = identity.Anonymous()
	}

	if r.URL.Query().Get("introspect") != "" {
		q, err := s.queries.Introspect(name, raw, ictx)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
		return
	}

	rows, err := s.queries.Execute(r.Context(), name, raw, ictx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleMutate serves POST /api/mutate/<name>. Unlike queries, a caller
// that cannot be resolved is rejected outright; there is no anonymous
// mutation. Everything arriving over HTTP runs at the server location —
// the client location exists for speculative replica execution and tests.
func (s *Server) handleMutate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/mutate/")
	raw, ok := decodeParams(w, r)
	if !ok {
		return
	}

	ictx, err := s.auth.Resolve(r.Context(), bearerToken(r))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := s.mutations.Execute(r.Context(), name, raw, ictx, mutation.LocationServer); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeParams reads the raw parameter object; an empty body counts as an
// empty object.
func decodeParams(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return nil, false
	}
	raw := map[string]any{}
	if len(bytes.TrimSpace(body)) == 0 {
		return raw, true
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return nil, false
	}
	return raw, true
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

type validationResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

// writeError maps the error taxonomy onto HTTP statuses. Access denials
// stay opaque: the body never says why.
func writeError(w http.ResponseWriter, err error) {
	var ve *authz.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, validationResponse{Error: "validation failed", Fields: ve.Fields})
	case errors.Is(err, authz.ErrNotFound), errors.Is(err, ticket.ErrTicketNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, authz.ErrAccessDenied):
		http.Error(w, "denied", http.StatusForbidden)
	case errors.Is(err, ticket.ErrInvalidTransition):
		http.Error(w, "conflict", http.StatusConflict)
	default:
		log.Printf("request failed: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}
