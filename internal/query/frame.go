package query

import (
	"time"

	"moneymoved/internal/dataset"
)

// Frame is a lazy filter-and-project plan over one dataset. Building or
// extending a frame validates it; rows are only visited by Collect.
type Frame struct {
	ds     *dataset.Dataset
	pred   Predicate
	fields []dataset.Field
}

func newFrame(ds *dataset.Dataset, pred Predicate, columns []string) (*Frame, error) {
	schema := ds.Schema()
	if len(columns) == 0 {
		columns = schema.Names()
	}
	fields, err := schema.Project(columns)
	if err != nil {
		return nil, err
	}
	return &Frame{ds: ds, pred: pred, fields: fields}, nil
}

// From returns an unfiltered frame over every column of ds.
func From(ds *dataset.Dataset) *Frame {
	return &Frame{ds: ds, fields: ds.Schema().Fields()}
}

// Dataset returns the source dataset.
func (f *Frame) Dataset() *dataset.Dataset { return f.ds }

// Fields returns the projected schema in order.
func (f *Frame) Fields() []dataset.Field {
	out := make([]dataset.Field, len(f.fields))
	copy(out, f.fields)
	return out
}

// Filter narrows the frame with more clauses, compiled against the full
// source schema so filters may use columns that are not projected.
func (f *Frame) Filter(clauses ...Clause) (*Frame, error) {
	p, err := CompileAll(f.ds.Schema(), clauses)
	if err != nil {
		return nil, err
	}
	return &Frame{ds: f.ds, pred: f.pred.And(p), fields: f.fields}, nil
}

// Select re-projects the frame onto columns of the source dataset.
func (f *Frame) Select(columns ...string) (*Frame, error) {
	return newFrame(f.ds, f.pred, columns)
}

// Collect evaluates the plan.
func (f *Frame) Collect() (*View, error) {
	match, err := f.pred.Bind(f.ds)
	if err != nil {
		return nil, err
	}
	rows := make([]int, 0, f.ds.Len())
	for i := 0; i < f.ds.Len(); i++ {
		if match(i) {
			rows = append(rows, i)
		}
	}

	cols := make(map[string]*dataset.Column, len(f.fields))
	for _, fd := range f.fields {
		c, _ := f.ds.Column(fd.Name)
		cols[fd.Name] = c
	}
	return &View{fields: f.Fields(), cols: cols, rows: rows}, nil
}

// View is the materialized result of a frame: an index list into the source
// columns, restricted to the projected fields.
type View struct {
	fields []dataset.Field
	cols   map[string]*dataset.Column
	rows   []int
}

// Len returns the number of matching rows.
func (v *View) Len() int { return len(v.rows) }

// Fields returns the projected schema.
func (v *View) Fields() []dataset.Field {
	out := make([]dataset.Field, len(v.fields))
	copy(out, v.fields)
	return out
}

// Kind returns the kind of a projected column.
func (v *View) Kind(column string) (dataset.Kind, bool) {
	c, ok := v.cols[column]
	if !ok {
		return 0, false
	}
	return c.Kind(), true
}

// Number returns a numeric cell. Null cells and non-numeric columns report false.
func (v *View) Number(row int, column string) (float64, bool) {
	c, ok := v.cols[column]
	if !ok || row < 0 || row >= len(v.rows) {
		return 0, false
	}
	return c.Num(v.rows[row])
}

// Text returns a cell rendered as a string.
func (v *View) Text(row int, column string) (string, bool) {
	c, ok := v.cols[column]
	if !ok || row < 0 || row >= len(v.rows) {
		return "", false
	}
	return c.Text(v.rows[row])
}

// Date returns a date cell.
func (v *View) Date(row int, column string) (time.Time, bool) {
	c, ok := v.cols[column]
	if !ok || row < 0 || row >= len(v.rows) {
		return time.Time{}, false
	}
	return c.Date(v.rows[row])
}

// Value returns the raw cell, nil when null.
func (v *View) Value(row int, column string) any {
	c, ok := v.cols[column]
	if !ok || row < 0 || row >= len(v.rows) {
		return nil
	}
	return c.Value(v.rows[row])
}

// Records returns the rows as column-name maps, for transport.
func (v *View) Records() []map[string]any {
	out := make([]map[string]any, len(v.rows))
	for i := range v.rows {
		rec := make(map[string]any, len(v.fields))
		for _, f := range v.fields {
			rec[f.Name] = v.Value(i, f.Name)
		}
		out[i] = rec
	}
	return out
}
