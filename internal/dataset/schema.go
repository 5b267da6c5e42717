package dataset

import "fmt"

// Kind is the value type of a column.
type Kind int

const (
	KindString Kind = iota + 1
	KindNumber
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText lets kinds appear by name in JSON and YAML.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "string":
		*k = KindString
	case "number":
		*k = KindNumber
	case "date":
		*k = KindDate
	default:
		return fmt.Errorf("unknown column kind %q", text)
	}
	return nil
}

// Field is one named, typed column of a schema.
type Field struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Schema is the ordered list of fields of a dataset.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema builds a schema. Duplicate names keep the first occurrence.
func NewSchema(fields ...Field) *Schema {
	s := &Schema{index: make(map[string]int, len(fields))}
	for _, f := range fields {
		if _, exists := s.index[f.Name]; exists {
			continue
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s
}

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.fields) }

// Fields returns a copy of the fields in order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Names returns the field names in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Lookup is Field with a SchemaError for unknown names.
func (s *Schema) Lookup(name string) (Field, error) {
	f, ok := s.Field(name)
	if !ok {
		return Field{}, &SchemaError{Column: name, Reason: "unknown column"}
	}
	return f, nil
}

// Project returns the fields for names in the given order.
func (s *Schema) Project(names []string) ([]Field, error) {
	out := make([]Field, 0, len(names))
	for _, n := range names {
		f, err := s.Lookup(n)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
