package query

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"moneymoved/internal/dataset"
)

// Service answers queries against datasets held by a registry.
type Service struct {
	registry *dataset.Registry
}

// NewService creates a query service.
func NewService(registry *dataset.Registry) *Service {
	return &Service{registry: registry}
}

// Query returns a lazy frame over the named dataset, filtered by the
// conjunction of filters and projected onto columns in order. An empty
// column list keeps every column. Errors surface here, not at Collect.
func (s *Service) Query(name string, filters []Clause, columns []string) (*Frame, error) {
	ds, err := s.registry.Get(name)
	if err != nil {
		return nil, err
	}
	pred, err := CompileAll(ds.Schema(), filters)
	if err != nil {
		return nil, err
	}
	return newFrame(ds, pred, columns)
}

// UniqueValues returns the distinct non-null values of a column, sorted
// ascending or, with desc, descending.
func (s *Service) UniqueValues(name, column string, desc bool) ([]any, error) {
	col, err := s.column(name, column)
	if err != nil {
		return nil, err
	}

	var out []any
	switch col.Kind() {
	case dataset.KindNumber:
		out = distinct(col, col.Num, cmp.Compare[float64], desc)
	case dataset.KindDate:
		out = distinct(col, col.Date, func(a, b time.Time) int { return a.Compare(b) }, desc)
	default:
		out = distinct(col, col.Str, strings.Compare, desc)
	}
	return out, nil
}

// UniqueCount returns the number of distinct values of a column, counting
// null as one value when present.
func (s *Service) UniqueCount(name, column string) (int, error) {
	col, err := s.column(name, column)
	if err != nil {
		return 0, err
	}

	seen := make(map[any]struct{})
	hasNull := false
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			hasNull = true
			continue
		}
		v := col.Value(i)
		if t, ok := v.(time.Time); ok {
			v = t.UnixNano()
		}
		seen[v] = struct{}{}
	}
	n := len(seen)
	if hasNull {
		n++
	}
	return n, nil
}

func (s *Service) column(name, column string) (*dataset.Column, error) {
	ds, err := s.registry.Get(name)
	if err != nil {
		return nil, err
	}
	if _, err := ds.Schema().Lookup(column); err != nil {
		return nil, err
	}
	col, _ := ds.Column(column)
	return col, nil
}

func distinct[T comparable](col *dataset.Column, get func(int) (T, bool), compare func(a, b T) int, desc bool) []any {
	seen := make(map[T]struct{})
	var vals []T
	for i := 0; i < col.Len(); i++ {
		v, ok := get(i)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		vals = append(vals, v)
	}
	slices.SortFunc(vals, func(a, b T) int {
		if desc {
			return compare(b, a)
		}
		return compare(a, b)
	})
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}
