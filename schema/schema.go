// Package schema validates raw request parameters against closed,
// declarative schemas. Decoding is strict: an unexpected field fails the
// whole request rather than being silently dropped, so a malicious extra
// field can never ride along unnoticed.
package schema

import (
	"fmt"

	"ticketdesk/authz"
)

// Kind is the declared type of a parameter field.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindBool   Kind = "bool"
)

// Field declares one parameter: its type, whether it must be present, an
// optional default applied when absent, optional integer bounds, and an
// optional enum of allowed string values.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
	Default  any
	Min      *int64
	Max      *int64
	Enum     []string
}

// Schema is a closed set of fields. Zero value accepts only empty input.
type Schema struct {
	Fields []Field
}

// Values holds validated, defaulted parameters keyed by field name.
type Values map[string]any

// Validate checks raw input against the schema and returns typed values.
// On any mismatch it returns a *authz.ValidationError carrying every
// offending field; defaults are never applied to invalid input.
func (s Schema) Validate(raw map[string]any) (Values, error) {
	problems := map[string]string{}
	out := make(Values, len(s.Fields))

	declared := make(map[string]Field, len(s.Fields))
	for _, f := range s.Fields {
		declared[f.Name] = f
	}

	for name := range raw {
		if _, ok := declared[name]; !ok {
			problems[name] = "unexpected field"
		}
	}

	for _, f := range s.Fields {
		v, present := raw[f.Name]
		if !present || v == nil {
			if f.Required {
				problems[f.Name] = "required"
				continue
			}
			if f.Default != nil {
				out[f.Name] = f.Default
			}
			continue
		}

		typed, reason := coerce(f, v)
		if reason != "" {
			problems[f.Name] = reason
			continue
		}
		out[f.Name] = typed
	}

	if len(problems) > 0 {
		return nil, &authz.ValidationError{Fields: problems}
	}
	return out, nil
}

func coerce(f Field, v any) (any, string) {
	switch f.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Sprintf("expected string, got %T", v)
		}
		if len(f.Enum) > 0 && !contains(f.Enum, s) {
			return nil, fmt.Sprintf("must be one of %v", f.Enum)
		}
		return s, ""

	case KindInt:
		n, ok := asInt64(v)
		if !ok {
			return nil, fmt.Sprintf("expected integer, got %T", v)
		}
		if f.Min != nil && n < *f.Min {
			return nil, fmt.Sprintf("must be >= %d", *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return nil, fmt.Sprintf("must be <= %d", *f.Max)
		}
		return n, ""

	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Sprintf("expected bool, got %T", v)
		}
		return b, ""

	default:
		return nil, fmt.Sprintf("unknown kind %q", f.Kind)
	}
}

// asInt64 accepts the integer encodings seen in practice: native ints from
// Go callers and float64 from encoding/json, rejecting fractional values.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func contains(set []string, s string) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}

// Int returns the int64 value for name. Panics when the field is absent or
// not an integer; call only for fields the schema guarantees.
func (v Values) Int(name string) int64 {
	n, ok := v[name].(int64)
	if !ok {
		panic(fmt.Sprintf("schema: field %q is not an int64", name))
	}
	return n
}

// String returns the string value for name, panicking like Int.
func (v Values) String(name string) string {
	s, ok := v[name].(string)
	if !ok {
		panic(fmt.Sprintf("schema: field %q is not a string", name))
	}
	return s
}

// Has reports whether name carries a value (set explicitly or defaulted).
func (v Values) Has(name string) bool {
	_, ok := v[name]
	return ok
}

// IntPtr returns a pointer to the int64 value for name, or nil when the
// field is absent.
func (v Values) IntPtr(name string) *int64 {
	if !v.Has(name) {
		return nil
	}
	n := v.Int(name)
	return &n
}

// StringOr returns the string value for name, or fallback when absent.
func (v Values) StringOr(name, fallback string) string {
	if !v.Has(name) {
		return fallback
	}
	return v.String(name)
}

// IntField is a convenience constructor for bounded integer fields.
func IntField(name string, required bool, min, max int64, def any) Field {
	return Field{Name: name, Kind: KindInt, Required: required, Min: &min, Max: &max, Default: def}
}
