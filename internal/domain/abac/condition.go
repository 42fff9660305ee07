package abac

import (
	"encoding/json"
	"strings"
)

// Condition operators. The set is closed: a node with any other operator
// evaluates to non-match rather than erroring, so a policy written against a
// newer evaluator degrades safely on an older one.
const (
	OpEq  = "eq"
	OpAnd = "and"
	OpOr  = "or"
	OpNot = "not"
)

// Condition is one node of a boolean condition tree. Eq nodes carry Path and
// Value; combinator nodes carry Conditions.
type Condition struct {
	Op         string      `json:"op"`
	Path       string      `json:"path,omitempty"`
	Value      interface{} `json:"value,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
}

// ParseCondition decodes a condition tree from its stored JSON form.
func ParseCondition(raw json.RawMessage) (*Condition, error) {
	if len(raw) == 0 {
		return nil, ErrMalformedCondition
	}

	var cond Condition
	if err := json.Unmarshal(raw, &cond); err != nil {
		return nil, ErrMalformedCondition
	}

	return &cond, nil
}

// Evaluate walks the tree against the merged attribute context. Unknown
// operators and missing attribute paths evaluate to non-match (fail closed),
// never to an error.
func (c *Condition) Evaluate(attrs map[string]interface{}) bool {
	switch c.Op {
	case OpEq:
		value, ok := lookupPath(attrs, c.Path)
		if !ok {
			return false
		}
		return literalEquals(value, c.Value)

	case OpAnd:
		if len(c.Conditions) == 0 {
			return false
		}
		for i := range c.Conditions {
			if !c.Conditions[i].Evaluate(attrs) {
				return false
			}
		}
		return true

	case OpOr:
		for i := range c.Conditions {
			if c.Conditions[i].Evaluate(attrs) {
				return true
			}
		}
		return false

	case OpNot:
		if len(c.Conditions) != 1 {
			return false
		}
		return !c.Conditions[0].Evaluate(attrs)

	default:
		return false
	}
}

// lookupPath resolves a dotted attribute path (e.g. "subject.userId") into
// the context map, descending through nested maps.
func lookupPath(attrs map[string]interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}

	segments := strings.Split(path, ".")
	var current interface{} = attrs
	for _, segment := range segments {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// literalEquals compares an attribute value against a condition literal.
// Only scalar values compare equal; numeric values compare across Go numeric
// types since JSON decoding yields float64.
func literalEquals(attr, literal interface{}) bool {
	if attr == nil || literal == nil {
		return attr == nil && literal == nil
	}

	if af, aok := asFloat(attr); aok {
		lf, lok := asFloat(literal)
		return lok && af == lf
	}

	switch a := attr.(type) {
	case string:
		l, ok := literal.(string)
		return ok && a == l
	case bool:
		l, ok := literal.(bool)
		return ok && a == l
	default:
		return false
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
