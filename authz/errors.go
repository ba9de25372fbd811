// Package authz defines the error taxonomy shared by the query and
// mutation executors.
package authz

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound signals a query or mutator name with no registration.
	ErrNotFound = errors.New("authz: not found")
	// ErrAccessDenied signals an authorization failure. It is deliberately
	// opaque: callers learn that they were denied, never why, so denials
	// cannot be used to probe for another tenant's data.
	ErrAccessDenied = errors.New("authz: access denied")
	// ErrInternal wraps unexpected store failures. Safe to retry with
	// backoff at the caller's discretion.
	ErrInternal = errors.New("authz: internal error")
)

// ValidationError reports malformed parameters with field-level detail.
// Requests failing validation are never partially applied.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "authz: validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "authz: validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

// IsValidation reports whether err is a parameter validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Internal wraps a store error into the Internal class while preserving
// the chain for logging.
func Internal(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}
