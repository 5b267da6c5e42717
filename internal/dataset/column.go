package dataset

import (
	"strconv"
	"time"
)

// Column is a typed, immutable vector of cells with a null mask. Only the
// slice matching Kind is populated.
type Column struct {
	name    string
	kind    Kind
	strs    []string
	nums    []float64
	dates   []time.Time
	present []bool
}

// NewStringColumn builds a string column. A nil present mask means every
// cell is present.
func NewStringColumn(name string, values []string, present []bool) *Column {
	return &Column{name: name, kind: KindString, strs: values, present: mask(present, len(values))}
}

// NewNumberColumn builds a numeric column.
func NewNumberColumn(name string, values []float64, present []bool) *Column {
	return &Column{name: name, kind: KindNumber, nums: values, present: mask(present, len(values))}
}

// NewDateColumn builds a date column.
func NewDateColumn(name string, values []time.Time, present []bool) *Column {
	return &Column{name: name, kind: KindDate, dates: values, present: mask(present, len(values))}
}

func mask(present []bool, n int) []bool {
	if present != nil {
		return present
	}
	all := make([]bool, n)
	for i := range all {
		all[i] = true
	}
	return all
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Kind returns the column kind.
func (c *Column) Kind() Kind { return c.kind }

// Field returns the schema field of the column.
func (c *Column) Field() Field { return Field{Name: c.name, Kind: c.kind} }

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.present) }

// IsNull reports whether row i holds no value.
func (c *Column) IsNull(i int) bool {
	return i < 0 || i >= len(c.present) || !c.present[i]
}

// Str returns the string cell at row i.
func (c *Column) Str(i int) (string, bool) {
	if c.kind != KindString || c.IsNull(i) {
		return "", false
	}
	return c.strs[i], true
}

// Num returns the numeric cell at row i.
func (c *Column) Num(i int) (float64, bool) {
	if c.kind != KindNumber || c.IsNull(i) {
		return 0, false
	}
	return c.nums[i], true
}

// Date returns the date cell at row i.
func (c *Column) Date(i int) (time.Time, bool) {
	if c.kind != KindDate || c.IsNull(i) {
		return time.Time{}, false
	}
	return c.dates[i], true
}

// Text renders the cell at row i as a string regardless of kind.
func (c *Column) Text(i int) (string, bool) {
	if c.IsNull(i) {
		return "", false
	}
	switch c.kind {
	case KindNumber:
		return strconv.FormatFloat(c.nums[i], 'f', -1, 64), true
	case KindDate:
		return c.dates[i].Format("2006-01-02"), true
	default:
		return c.strs[i], true
	}
}

// Value returns the cell as string, float64 or time.Time, or nil when null.
func (c *Column) Value(i int) any {
	if c.IsNull(i) {
		return nil
	}
	switch c.kind {
	case KindNumber:
		return c.nums[i]
	case KindDate:
		return c.dates[i]
	default:
		return c.strs[i]
	}
}
