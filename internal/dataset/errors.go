package dataset

import "fmt"

// UnknownDatasetError is returned when a name was never registered.
type UnknownDatasetError struct {
	Name string
}

func (e *UnknownDatasetError) Error() string {
	return fmt.Sprintf("dataset %q is not registered", e.Name)
}

// LoadError wraps a failure to read or decode a dataset source.
type LoadError struct {
	Name string
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load dataset %q: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("load dataset %q from %s: %v", e.Name, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SchemaError reports a reference to a column that does not exist or a value
// whose type does not fit the column.
type SchemaError struct {
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("column %q: %s", e.Column, e.Reason)
}
