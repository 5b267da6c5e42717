// Package dataset holds named, immutable columnar tables and the registry
// that loads each of them once.
package dataset

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Dataset is an immutable table. Handles are shared read-only between
// requests for the life of the process.
type Dataset struct {
	ID       uuid.UUID
	Name     string
	Source   Source
	LoadedAt time.Time

	schema  *Schema
	columns []*Column
	byName  map[string]*Column
	rows    int
}

// New assembles a dataset from equal-length columns.
func New(name string, columns ...*Column) (*Dataset, error) {
	fields := make([]Field, 0, len(columns))
	byName := make(map[string]*Column, len(columns))
	rows := -1
	kept := make([]*Column, 0, len(columns))
	for _, c := range columns {
		if _, dup := byName[c.Name()]; dup {
			continue
		}
		if rows >= 0 && c.Len() != rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name(), c.Len(), rows)
		}
		rows = c.Len()
		byName[c.Name()] = c
		fields = append(fields, c.Field())
		kept = append(kept, c)
	}
	if rows < 0 {
		rows = 0
	}
	return &Dataset{
		ID:      uuid.New(),
		Name:    name,
		schema:  NewSchema(fields...),
		columns: kept,
		byName:  byName,
		rows:    rows,
	}, nil
}

// Schema returns the dataset schema.
func (d *Dataset) Schema() *Schema { return d.schema }

// Len returns the row count.
func (d *Dataset) Len() int { return d.rows }

// Column returns the named column.
func (d *Dataset) Column(name string) (*Column, bool) {
	c, ok := d.byName[name]
	return c, ok
}

// Columns returns the columns in schema order.
func (d *Dataset) Columns() []*Column {
	out := make([]*Column, len(d.columns))
	copy(out, d.columns)
	return out
}

// FromRecords builds a dataset from row-major values. A nil cell is null;
// numeric Go types become float64.
func FromRecords(name string, fields []Field, rows [][]any) (*Dataset, error) {
	cols := make([]*Column, len(fields))
	for j, f := range fields {
		present := make([]bool, len(rows))
		switch f.Kind {
		case KindNumber:
			vals := make([]float64, len(rows))
			for i, r := range rows {
				if j >= len(r) || r[j] == nil {
					continue
				}
				v, ok := ToFloat(r[j])
				if !ok {
					return nil, &SchemaError{Column: f.Name, Reason: fmt.Sprintf("row %d: %T is not a number", i, r[j])}
				}
				vals[i], present[i] = v, true
			}
			cols[j] = NewNumberColumn(f.Name, vals, present)
		case KindDate:
			vals := make([]time.Time, len(rows))
			for i, r := range rows {
				if j >= len(r) || r[j] == nil {
					continue
				}
				v, ok := r[j].(time.Time)
				if !ok {
					return nil, &SchemaError{Column: f.Name, Reason: fmt.Sprintf("row %d: %T is not a date", i, r[j])}
				}
				vals[i], present[i] = v, true
			}
			cols[j] = NewDateColumn(f.Name, vals, present)
		default:
			vals := make([]string, len(rows))
			for i, r := range rows {
				if j >= len(r) || r[j] == nil {
					continue
				}
				v, ok := r[j].(string)
				if !ok {
					return nil, &SchemaError{Column: f.Name, Reason: fmt.Sprintf("row %d: %T is not a string", i, r[j])}
				}
				vals[i], present[i] = v, true
			}
			cols[j] = NewStringColumn(f.Name, vals, present)
		}
	}
	return New(name, cols...)
}

// ToFloat converts a Go numeric value to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
