package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"moneymoved/internal/dataset"
)

// Clause is one column comparison. A list of clauses is a conjunction.
type Clause struct {
	Column string   `json:"column" yaml:"column"`
	Op     Operator `json:"op" yaml:"op"`
	Value  any      `json:"value,omitempty" yaml:"value,omitempty"`
}

// Eq matches rows whose column equals v.
func Eq(column string, v any) Clause { return Clause{Column: column, Op: OpEq, Value: v} }

// Ne matches rows whose column differs from v.
func Ne(column string, v any) Clause { return Clause{Column: column, Op: OpNe, Value: v} }

// Gt matches rows whose column is greater than v.
func Gt(column string, v any) Clause { return Clause{Column: column, Op: OpGt, Value: v} }

// Ge matches rows whose column is at least v.
func Ge(column string, v any) Clause { return Clause{Column: column, Op: OpGe, Value: v} }

// Lt matches rows whose column is less than v.
func Lt(column string, v any) Clause { return Clause{Column: column, Op: OpLt, Value: v} }

// Le matches rows whose column is at most v.
func Le(column string, v any) Clause { return Clause{Column: column, Op: OpLe, Value: v} }

// In matches rows whose column is one of values. Unlike a raw Clause with
// OpIn, the value is always a collection, even for a single element.
func In(column string, values ...any) Clause {
	return Clause{Column: column, Op: OpIn, Value: values}
}

// NotIn matches rows whose column is none of values.
func NotIn(column string, values ...any) Clause {
	return Clause{Column: column, Op: OpNotIn, Value: values}
}

// IsNull matches rows where the column holds no value.
func IsNull(column string) Clause { return Clause{Column: column, Op: OpIsNull} }

// IsNotNull matches rows where the column holds a value.
func IsNotNull(column string) Clause { return Clause{Column: column, Op: OpIsNotNull} }

// Strings converts a string slice for use with In and NotIn.
func Strings(values ...string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// ParseValue converts a textual parameter to the Go type matching the kind
// of column in schema, so values from query strings can be used in clauses.
func ParseValue(schema *dataset.Schema, column, raw string) (any, error) {
	field, err := schema.Lookup(column)
	if err != nil {
		return nil, err
	}
	switch field.Kind {
	case dataset.KindNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, &dataset.SchemaError{Column: column, Reason: fmt.Sprintf("%q is not a number", raw)}
		}
		return n, nil
	case dataset.KindDate:
		t, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
		if err != nil {
			return nil, &dataset.SchemaError{Column: column, Reason: fmt.Sprintf("%q is not a date", raw)}
		}
		return t, nil
	default:
		return raw, nil
	}
}

// ErrMalformedFilter is returned for filter text not of the form
// column:op[:value].
var ErrMalformedFilter = errors.New("want column:op[:value]")

// ParseFilter parses column:op[:value] into a clause typed against schema.
// The values of in and not_in are separated by "|".
func ParseFilter(schema *dataset.Schema, raw string) (Clause, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 2 || parts[0] == "" {
		return Clause{}, ErrMalformedFilter
	}
	op, err := ParseOperator(parts[1])
	if err != nil {
		return Clause{}, err
	}
	c := Clause{Column: parts[0], Op: op}
	if len(parts) < 3 {
		return c, nil
	}

	switch op {
	case OpIn, OpNotIn:
		var values []any
		for _, v := range strings.Split(parts[2], "|") {
			pv, err := ParseValue(schema, c.Column, v)
			if err != nil {
				return Clause{}, err
			}
			values = append(values, pv)
		}
		c.Value = values
	default:
		pv, err := ParseValue(schema, c.Column, parts[2])
		if err != nil {
			return Clause{}, err
		}
		c.Value = pv
	}
	return c, nil
}
