package predicate

// Condition is a node in the predicate tree describing which rows a query
// may touch.
//
// This is a sealed interface: only types in this package implement it, so
// backend compilers can type-switch exhaustively.
type Condition interface {
	condNode()
}

// Simple compares a single column against a literal value.
type Simple struct {
	Column string
	Op     string
	Value  any
}

func (Simple) condNode() {}

// And holds when every child condition holds. An empty conjunction is
// always true.
type And struct {
	Conditions []Condition
}

func (And) condNode() {}

// Or holds when any child condition holds. An empty disjunction is always
// false, which makes it a valid deny predicate on its own.
type Or struct {
	Conditions []Condition
}

func (Or) condNode() {}

// CorrelatedSubquery scopes rows through a related table: the outer row
// matches when a row exists in RelatedTable whose ChildColumn equals the
// outer row's ParentColumn and that satisfies Where. Used for tables whose
// tenant-owning column lives on a parent (ticket messages scoped through
// their ticket's client_id).
type CorrelatedSubquery struct {
	RelatedTable string
	ParentColumn string
	ChildColumn  string
	Where        Condition
}

func (CorrelatedSubquery) condNode() {}

// Order is a single ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// Query is the top-level read description produced by query builders:
// a table, an optional predicate tree, ordering, and a row cap.
type Query struct {
	Table   string
	Where   Condition
	OrderBy []Order
	Limit   int
}

// Eq is shorthand for a Simple equality condition.
func Eq(column string, value any) Simple {
	return Simple{Column: column, Op: "=", Value: value}
}

// DenyAll returns a predicate guaranteed never to match a persisted row.
// Builders use it as the default branch so that omitting a scope is
// structurally impossible.
func DenyAll() Condition {
	return Simple{Column: "id", Op: "=", Value: int64(-1)}
}

// IsDenyAll reports whether c is the canonical never-matching predicate.
func IsDenyAll(c Condition) bool {
	s, ok := c.(Simple)
	if !ok {
		return false
	}
	v, ok := s.Value.(int64)
	return ok && s.Column == "id" && s.Op == "=" && v == -1
}
