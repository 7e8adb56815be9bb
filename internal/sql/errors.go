package sql

import "fmt"

// LexError reports a character the tokenizer cannot classify.
type LexError struct {
	Char   rune
	Offset int
}

func (e *LexError) Error() string {
	return fmt.Sprintf("tokenize: invalid character %q at offset %d", e.Char, e.Offset)
}

// SchemaError reports a DDL fragment that is not a CREATE TABLE statement
// the schema parser understands.
type SchemaError struct {
	Fragment string
	Reason   string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: %s in %q", e.Reason, e.Fragment)
}

// UnknownTypeError reports a column type with no primitive mapping.
type UnknownTypeError struct {
	Column string
	Type   string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("schema: unknown column type %q for column %q", e.Type, e.Column)
}

// SyntaxError reports an unexpected token in a SQL statement.
type SyntaxError struct {
	Got      string
	Expected string
	Offset   int
}

func (e *SyntaxError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("syntax error: expected %s, got %s", e.Expected, e.Got)
	}
	return fmt.Sprintf("syntax error at offset %d: expected %s, got %s", e.Offset, e.Expected, e.Got)
}

// UnknownTableError reports a table missing from the schema.
type UnknownTableError struct {
	Table string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("no such table %q in the schema", e.Table)
}

// UnknownColumnError reports a column missing from its table.
type UnknownColumnError struct {
	Table  string
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("no such column %q on table %q", e.Column, e.Table)
}

// ArityError reports an INSERT whose column and value lists differ in length.
type ArityError struct {
	Columns int
	Values  int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("INSERT: %d columns but %d values", e.Columns, e.Values)
}

// UnsupportedStatementError reports a statement kind outside SELECT/INSERT,
// or a join, subquery or set operation inside a SELECT.
type UnsupportedStatementError struct {
	Keyword string
}

func (e *UnsupportedStatementError) Error() string {
	return fmt.Sprintf("unsupported SQL %q (supported: single-table SELECT, INSERT)", e.Keyword)
}
