package predicate

import (
	"encoding/json"
	"fmt"
)

// The wire shape is a plain tagged union so hosts and tests can inspect
// the predicate a query would run without executing it:
//
//	{"type":"simple","column":"client_id","op":"=","value":7}
//	{"type":"and","conditions":[...]}
//	{"type":"or","conditions":[...]}
//	{"type":"correlatedSubquery","relatedTable":"tickets",
//	 "parentColumn":"ticket_id","childColumn":"id","where":{...}}

type simpleJSON struct {
	Type   string `json:"type"`
	Column string `json:"column"`
	Op     string `json:"op"`
	Value  any    `json:"value"`
}

type branchJSON struct {
	Type       string            `json:"type"`
	Conditions []json.RawMessage `json:"conditions"`
}

type subqueryJSON struct {
	Type         string          `json:"type"`
	RelatedTable string          `json:"relatedTable"`
	ParentColumn string          `json:"parentColumn"`
	ChildColumn  string          `json:"childColumn"`
	Where        json.RawMessage `json:"where,omitempty"`
}

type queryJSON struct {
	Table   string          `json:"table"`
	Where   json.RawMessage `json:"where,omitempty"`
	OrderBy []orderJSON     `json:"orderBy,omitempty"`
	Limit   int             `json:"limit,omitempty"`
}

type orderJSON struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc,omitempty"`
}

// MarshalCondition serializes a predicate tree to its tagged-union JSON.
func MarshalCondition(c Condition) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("predicate: marshal nil condition")
	}
	switch n := c.(type) {
	case Simple:
		return json.Marshal(simpleJSON{Type: "simple", Column: n.Column, Op: n.Op, Value: n.Value})
	case And:
		return marshalBranch("and", n.Conditions)
	case Or:
		return marshalBranch("or", n.Conditions)
	case CorrelatedSubquery:
		out := subqueryJSON{
			Type:         "correlatedSubquery",
			RelatedTable: n.RelatedTable,
			ParentColumn: n.ParentColumn,
			ChildColumn:  n.ChildColumn,
		}
		if n.Where != nil {
			raw, err := MarshalCondition(n.Where)
			if err != nil {
				return nil, err
			}
			out.Where = raw
		}
		return json.Marshal(out)
	default:
		return nil, fmt.Errorf("predicate: marshal unsupported condition %T", c)
	}
}

func marshalBranch(tag string, conds []Condition) ([]byte, error) {
	out := branchJSON{Type: tag, Conditions: make([]json.RawMessage, 0, len(conds))}
	for _, child := range conds {
		raw, err := MarshalCondition(child)
		if err != nil {
			return nil, err
		}
		out.Conditions = append(out.Conditions, raw)
	}
	return json.Marshal(out)
}

// UnmarshalCondition parses the tagged-union JSON back into a tree.
func UnmarshalCondition(data []byte) (Condition, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("predicate: decode condition: %w", err)
	}

	switch tag.Type {
	case "simple":
		var s simpleJSON
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("predicate: decode simple: %w", err)
		}
		return Simple{Column: s.Column, Op: s.Op, Value: normalizeValue(s.Value)}, nil
	case "and", "or":
		var b branchJSON
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("predicate: decode %s: %w", tag.Type, err)
		}
		children := make([]Condition, 0, len(b.Conditions))
		for _, raw := range b.Conditions {
			child, err := UnmarshalCondition(raw)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		if tag.Type == "and" {
			return And{Conditions: children}, nil
		}
		return Or{Conditions: children}, nil
	case "correlatedSubquery":
		var sq subqueryJSON
		if err := json.Unmarshal(data, &sq); err != nil {
			return nil, fmt.Errorf("predicate: decode subquery: %w", err)
		}
		node := CorrelatedSubquery{
			RelatedTable: sq.RelatedTable,
			ParentColumn: sq.ParentColumn,
			ChildColumn:  sq.ChildColumn,
		}
		if len(sq.Where) > 0 {
			where, err := UnmarshalCondition(sq.Where)
			if err != nil {
				return nil, err
			}
			node.Where = where
		}
		return node, nil
	default:
		return nil, fmt.Errorf("predicate: unknown condition type %q", tag.Type)
	}
}

// MarshalJSON implements json.Marshaler for Query.
func (q Query) MarshalJSON() ([]byte, error) {
	out := queryJSON{Table: q.Table, Limit: q.Limit}
	if q.Where != nil {
		raw, err := MarshalCondition(q.Where)
		if err != nil {
			return nil, err
		}
		out.Where = raw
	}
	for _, o := range q.OrderBy {
		out.OrderBy = append(out.OrderBy, orderJSON{Column: o.Column, Desc: o.Desc})
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler for Query.
func (q *Query) UnmarshalJSON(data []byte) error {
	var in queryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("predicate: decode query: %w", err)
	}
	out := Query{Table: in.Table, Limit: in.Limit}
	if len(in.Where) > 0 {
		where, err := UnmarshalCondition(in.Where)
		if err != nil {
			return err
		}
		out.Where = where
	}
	for _, o := range in.OrderBy {
		out.OrderBy = append(out.OrderBy, Order{Column: o.Column, Desc: o.Desc})
	}
	*q = out
	return nil
}

// normalizeValue keeps round-tripped trees structurally comparable:
// encoding/json decodes every number as float64, but builders produce
// int64 for ids. Integral floats come back as int64.
func normalizeValue(v any) any {
	f, ok := v.(float64)
	if !ok {
		return v
	}
	if f == float64(int64(f)) {
		return int64(f)
	}
	return f
}
