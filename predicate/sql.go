package predicate

import (
	"fmt"
	"regexp"
	"strings"
)

// identPattern limits table and column names to plain SQL identifiers.
// Builders supply these as constants; the check keeps a malformed tree
// from ever reaching the store as injectable text.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var validOps = map[string]struct{}{
	"=": {}, "!=": {}, "<": {}, "<=": {}, ">": {}, ">=": {},
}

// Compile renders a Query to a single parameterized SELECT. Values are
// always bound through $n placeholders, never interpolated.
func Compile(q Query) (string, []any, error) {
	if err := checkIdent("table", q.Table); err != nil {
		return "", nil, err
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(q.Table)

	if q.Where != nil {
		frag, err := compileCondition(q.Where, q.Table, &args)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(frag)
	}

	if len(q.OrderBy) > 0 {
		terms := make([]string, 0, len(q.OrderBy))
		for _, o := range q.OrderBy {
			if err := checkIdent("order column", o.Column); err != nil {
				return "", nil, err
			}
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			terms = append(terms, o.Column+" "+dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(terms, ", "))
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	return sb.String(), args, nil
}

func compileCondition(c Condition, table string, args *[]any) (string, error) {
	switch n := c.(type) {
	case Simple:
		if err := checkIdent("column", n.Column); err != nil {
			return "", err
		}
		if _, ok := validOps[n.Op]; !ok {
			return "", fmt.Errorf("predicate: unsupported operator %q", n.Op)
		}
		*args = append(*args, n.Value)
		return fmt.Sprintf("%s.%s %s $%d", table, n.Column, n.Op, len(*args)), nil

	case And:
		if len(n.Conditions) == 0 {
			return "TRUE", nil
		}
		return compileBranch(n.Conditions, " AND ", table, args)

	case Or:
		if len(n.Conditions) == 0 {
			return "FALSE", nil
		}
		return compileBranch(n.Conditions, " OR ", table, args)

	case CorrelatedSubquery:
		if err := checkIdent("related table", n.RelatedTable); err != nil {
			return "", err
		}
		if err := checkIdent("parent column", n.ParentColumn); err != nil {
			return "", err
		}
		if err := checkIdent("child column", n.ChildColumn); err != nil {
			return "", err
		}
		inner := fmt.Sprintf("%s.%s = %s.%s", n.RelatedTable, n.ChildColumn, table, n.ParentColumn)
		if n.Where != nil {
			frag, err := compileCondition(n.Where, n.RelatedTable, args)
			if err != nil {
				return "", err
			}
			inner += " AND " + frag
		}
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s)", n.RelatedTable, inner), nil

	default:
		return "", fmt.Errorf("predicate: unsupported condition %T", c)
	}
}

func compileBranch(conds []Condition, sep string, table string, args *[]any) (string, error) {
	frags := make([]string, 0, len(conds))
	for _, child := range conds {
		frag, err := compileCondition(child, table, args)
		if err != nil {
			return "", err
		}
		frags = append(frags, "("+frag+")")
	}
	return strings.Join(frags, sep), nil
}

func checkIdent(what, name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("predicate: invalid %s %q", what, name)
	}
	return nil
}
