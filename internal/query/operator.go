// Package query compiles declarative filter clauses against a dataset schema
// and evaluates lazy filter-and-project frames.
package query

import (
	"fmt"
	"strings"
)

// Operator is the closed set of comparisons a clause may use.
type Operator int

const (
	OpEq Operator = iota + 1
	OpNe
	OpGt
	OpGe
	OpLt
	OpLe
	OpIn
	OpNotIn
	OpIsNull
	OpIsNotNull
)

var operatorNames = map[Operator]string{
	OpEq:        "eq",
	OpNe:        "ne",
	OpGt:        "gt",
	OpGe:        "ge",
	OpLt:        "lt",
	OpLe:        "le",
	OpIn:        "in",
	OpNotIn:     "not_in",
	OpIsNull:    "is_null",
	OpIsNotNull: "is_not_null",
}

// operatorAliases maps accepted spellings, including the symbolic forms the
// dashboard sends, to operators.
var operatorAliases = map[string]Operator{
	"eq": OpEq, "==": OpEq, "=": OpEq,
	"ne": OpNe, "!=": OpNe, "<>": OpNe,
	"gt": OpGt, ">": OpGt,
	"ge": OpGe, ">=": OpGe,
	"lt": OpLt, "<": OpLt,
	"le": OpLe, "<=": OpLe,
	"in":     OpIn,
	"not_in": OpNotIn, "not in": OpNotIn,
	"is_null": OpIsNull, "null": OpIsNull,
	"is_not_null": OpIsNotNull, "not_null": OpIsNotNull,
}

// UnsupportedOperatorError is returned for an operator name outside the
// closed set.
type UnsupportedOperatorError struct {
	Op string
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("unsupported filter operator %q", e.Op)
}

// ParseOperator resolves an operator name or alias.
func ParseOperator(s string) (Operator, error) {
	if op, ok := operatorAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return op, nil
	}
	return 0, &UnsupportedOperatorError{Op: s}
}

func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// Valid reports whether o is one of the defined operators.
func (o Operator) Valid() bool {
	_, ok := operatorNames[o]
	return ok
}

// MarshalText encodes the canonical name.
func (o Operator) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, &UnsupportedOperatorError{Op: o.String()}
	}
	return []byte(o.String()), nil
}

// UnmarshalText accepts any alias ParseOperator does.
func (o *Operator) UnmarshalText(b []byte) error {
	op, err := ParseOperator(string(b))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// unary reports whether the operator ignores the clause value.
func (o Operator) unary() bool {
	return o == OpIsNull || o == OpIsNotNull
}

// ordering reports whether the operator compares by order.
func (o Operator) ordering() bool {
	return o == OpGt || o == OpGe || o == OpLt || o == OpLe
}
