package query

import (
	"cmp"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"moneymoved/internal/dataset"
)

// Predicate is a compiled conjunction of clauses. The zero value matches
// every row.
type Predicate struct {
	terms []term
}

type term struct {
	column string
	op     Operator
	kind   dataset.Kind

	str  string
	num  float64
	date time.Time

	strs  map[string]struct{}
	nums  map[float64]struct{}
	dates map[int64]struct{}
}

// RowFunc reports whether a row index satisfies a predicate.
type RowFunc func(row int) bool

// Compile validates one clause against schema. Unknown columns and values
// that cannot be compared with the column kind produce a SchemaError.
//
// OpIn and OpNotIn given a single non-collection value behave as OpEq and
// OpNe against that value.
func Compile(schema *dataset.Schema, c Clause) (Predicate, error) {
	t, err := compileTerm(schema, c)
	if err != nil {
		return Predicate{}, err
	}
	return Predicate{terms: []term{t}}, nil
}

// CompileAll compiles clauses into their conjunction. An empty list matches
// every row. Any invalid clause fails the whole list.
func CompileAll(schema *dataset.Schema, clauses []Clause) (Predicate, error) {
	p := Predicate{terms: make([]term, 0, len(clauses))}
	for _, c := range clauses {
		t, err := compileTerm(schema, c)
		if err != nil {
			return Predicate{}, err
		}
		p.terms = append(p.terms, t)
	}
	return p, nil
}

// And returns the conjunction of p and o.
func (p Predicate) And(o Predicate) Predicate {
	terms := make([]term, 0, len(p.terms)+len(o.terms))
	terms = append(terms, p.terms...)
	terms = append(terms, o.terms...)
	return Predicate{terms: terms}
}

// Len returns the number of compiled clauses.
func (p Predicate) Len() int { return len(p.terms) }

// Bind resolves the predicate's columns in ds.
func (p Predicate) Bind(ds *dataset.Dataset) (RowFunc, error) {
	if len(p.terms) == 0 {
		return func(int) bool { return true }, nil
	}
	cols := make([]*dataset.Column, len(p.terms))
	for i, t := range p.terms {
		c, ok := ds.Column(t.column)
		if !ok {
			return nil, &dataset.SchemaError{Column: t.column, Reason: "unknown column"}
		}
		if c.Kind() != t.kind {
			return nil, &dataset.SchemaError{Column: t.column, Reason: fmt.Sprintf("compiled for %s, dataset has %s", t.kind, c.Kind())}
		}
		cols[i] = c
	}
	return func(row int) bool {
		for i := range p.terms {
			if !p.terms[i].match(cols[i], row) {
				return false
			}
		}
		return true
	}, nil
}

func compileTerm(schema *dataset.Schema, c Clause) (term, error) {
	if !c.Op.Valid() {
		return term{}, &UnsupportedOperatorError{Op: c.Op.String()}
	}
	field, err := schema.Lookup(c.Column)
	if err != nil {
		return term{}, err
	}

	t := term{column: c.Column, op: c.Op, kind: field.Kind}
	if c.Op.unary() {
		return t, nil
	}

	if c.Op == OpIn || c.Op == OpNotIn {
		values, isList := asList(c.Value)
		if isList {
			return t, t.fillSet(values)
		}
		if c.Op == OpIn {
			t.op = OpEq
		} else {
			t.op = OpNe
		}
	}

	if c.Value == nil {
		return term{}, &dataset.SchemaError{Column: c.Column, Reason: fmt.Sprintf("operator %s needs a value", c.Op)}
	}
	t.str, t.num, t.date, err = coerce(field, c.Value)
	return t, err
}

func (t *term) fillSet(values []any) error {
	field := dataset.Field{Name: t.column, Kind: t.kind}
	switch t.kind {
	case dataset.KindNumber:
		t.nums = make(map[float64]struct{}, len(values))
	case dataset.KindDate:
		t.dates = make(map[int64]struct{}, len(values))
	default:
		t.strs = make(map[string]struct{}, len(values))
	}
	for _, v := range values {
		if v == nil {
			continue
		}
		s, n, d, err := coerce(field, v)
		if err != nil {
			return err
		}
		switch t.kind {
		case dataset.KindNumber:
			t.nums[n] = struct{}{}
		case dataset.KindDate:
			t.dates[d.UnixNano()] = struct{}{}
		default:
			t.strs[s] = struct{}{}
		}
	}
	return nil
}

func (t *term) match(col *dataset.Column, row int) bool {
	if col.IsNull(row) {
		return t.op == OpIsNull
	}

	switch t.op {
	case OpIsNull:
		return false
	case OpIsNotNull:
		return true
	case OpIn:
		return t.member(col, row)
	case OpNotIn:
		return !t.member(col, row)
	}

	var c int
	switch t.kind {
	case dataset.KindNumber:
		v, _ := col.Num(row)
		c = cmp.Compare(v, t.num)
	case dataset.KindDate:
		v, _ := col.Date(row)
		c = v.Compare(t.date)
	default:
		v, _ := col.Str(row)
		c = strings.Compare(v, t.str)
	}

	switch t.op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	default:
		return false
	}
}

func (t *term) member(col *dataset.Column, row int) bool {
	var ok bool
	switch t.kind {
	case dataset.KindNumber:
		v, _ := col.Num(row)
		_, ok = t.nums[v]
	case dataset.KindDate:
		v, _ := col.Date(row)
		_, ok = t.dates[v.UnixNano()]
	default:
		v, _ := col.Str(row)
		_, ok = t.strs[v]
	}
	return ok
}

// coerce converts a clause value to the representation of field's kind.
func coerce(field dataset.Field, v any) (string, float64, time.Time, error) {
	mismatch := func() error {
		return &dataset.SchemaError{
			Column: field.Name,
			Reason: fmt.Sprintf("value type %T is not comparable with %s column", v, field.Kind),
		}
	}

	switch field.Kind {
	case dataset.KindNumber:
		if n, ok := dataset.ToFloat(v); ok {
			return "", n, time.Time{}, nil
		}
		if jn, ok := v.(json.Number); ok {
			if n, err := jn.Float64(); err == nil {
				return "", n, time.Time{}, nil
			}
		}
		return "", 0, time.Time{}, mismatch()
	case dataset.KindDate:
		switch d := v.(type) {
		case time.Time:
			return "", 0, d, nil
		case string:
			for _, layout := range []string{"2006-01-02", time.RFC3339} {
				if parsed, err := time.Parse(layout, d); err == nil {
					return "", 0, parsed, nil
				}
			}
		}
		return "", 0, time.Time{}, mismatch()
	default:
		if s, ok := v.(string); ok {
			return s, 0, time.Time{}, nil
		}
		return "", 0, time.Time{}, mismatch()
	}
}

// asList unpacks slice and array values. Strings and byte slices are scalars.
func asList(v any) ([]any, bool) {
	switch x := v.(type) {
	case nil, string, []byte:
		return nil, false
	case []any:
		return x, true
	case []string:
		return Strings(x...), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
