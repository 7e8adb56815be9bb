package sql

import "fmt"

// PrimitiveType is the logical type of a column or a bound parameter.
type PrimitiveType int

const (
	TypeString PrimitiveType = iota
	TypeInteger
	TypeBoolean
)

func (t PrimitiveType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInteger:
		return "integer"
	case TypeBoolean:
		return "boolean"
	default:
		return fmt.Sprintf("PrimitiveType(%d)", int(t))
	}
}

// SQLType returns the canonical DDL spelling of t.
func (t PrimitiveType) SQLType() string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeBoolean:
		return "BOOLEAN"
	default:
		return "VARCHAR"
	}
}

// MarshalText lets shapes and schemas serialize with readable type names.
func (t PrimitiveType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *PrimitiveType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "string":
		*t = TypeString
	case "integer":
		*t = TypeInteger
	case "boolean":
		*t = TypeBoolean
	default:
		return fmt.Errorf("unknown primitive type %q", string(b))
	}
	return nil
}

// Column describes metadata for a single column in a table.
type Column struct {
	Name string        `json:"name"`
	Type PrimitiveType `json:"type"`
}

// Table is one CREATE TABLE declaration. Columns keep declaration order.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Column looks up a column by exact name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Schema is an immutable set of tables keyed by name.
type Schema struct {
	tables  []Table
	index   map[string]int
	skipped []string
}

// NewSchema builds a Schema. Duplicate table names are rejected.
func NewSchema(tables ...Table) (*Schema, error) {
	s := &Schema{
		tables: make([]Table, 0, len(tables)),
		index:  make(map[string]int, len(tables)),
	}
	for _, t := range tables {
		if _, dup := s.index[t.Name]; dup {
			return nil, &SchemaError{Fragment: t.Name, Reason: "duplicate table name"}
		}
		s.index[t.Name] = len(s.tables)
		s.tables = append(s.tables, t)
	}
	return s, nil
}

// Table returns the table with the given name.
func (s *Schema) Table(name string) (*Table, bool) {
	if s == nil {
		return nil, false
	}
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return &s.tables[i], true
}

// Tables returns a copy of all tables in declaration order.
func (s *Schema) Tables() []Table {
	if s == nil {
		return nil
	}
	out := make([]Table, len(s.tables))
	copy(out, s.tables)
	return out
}

// Skipped lists tables that the schema parser recognised but did not parse
// (CREATE TABLE IF NOT EXISTS fragments under the default options).
func (s *Schema) Skipped() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.skipped...)
}

// Param is one inferred input or output of a statement.
type Param struct {
	Name string        `json:"name"`
	Type PrimitiveType `json:"type"`
}

// QueryShape is the input/output signature of one SQL statement.
// Inputs follow the order of the '?' placeholders.
type QueryShape struct {
	Inputs  []Param `json:"inputs"`
	Outputs []Param `json:"outputs"`
}
