package sql

import (
	"strings"
)

// ParseStatement parses a single SELECT or INSERT statement and resolves its
// input and output columns against schema.
func ParseStatement(query string, schema *Schema) (*QueryShape, error) {
	toks, err := TokenizeAll(query)
	if err != nil {
		return nil, err
	}
	ts := &tokenStream{toks: toks}

	first, ok := ts.peek()
	if !ok {
		return nil, &SyntaxError{Got: "end of input", Expected: "SELECT or INSERT", Offset: -1}
	}
	if first.Kind != TokenWord {
		return nil, &UnsupportedStatementError{Keyword: first.Text}
	}

	switch strings.ToUpper(first.Text) {
	case "SELECT":
		return parseSelect(ts, schema)
	case "INSERT":
		return parseInsert(ts, schema)
	default:
		return nil, &UnsupportedStatementError{Keyword: first.Text}
	}
}

// lookupTable resolves a table name against the schema.
func lookupTable(schema *Schema, name string) (*Table, error) {
	t, ok := schema.Table(name)
	if !ok {
		return nil, &UnknownTableError{Table: name}
	}
	return t, nil
}
