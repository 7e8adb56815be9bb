package sql

import (
	"fmt"
	"strings"
)

// parseSelect parses the projection and table of a SELECT statement.
// Supported forms (case-insensitive keywords):
//
//	SELECT * FROM users;
//	SELECT email, nickname FROM users WHERE id = ?;
//
// The only clause allowed after the table name is a flat WHERE condition.
// Joins, extra tables and subqueries are rejected. Placeholders become
// untyped string inputs in1..inN.
func parseSelect(ts *tokenStream, schema *Schema) (*QueryShape, error) {
	if _, err := ts.expect("SELECT"); err != nil {
		return nil, err
	}

	allColumns := false
	var names []string

	if tok, ok := ts.peek(); ok && tok.Is("*") {
		ts.next()
		allColumns = true
	} else {
		for {
			name, err := ts.name("column name")
			if err != nil {
				return nil, err
			}
			names = append(names, name)
			if tok, ok := ts.peek(); !ok || !tok.Is(",") {
				break
			}
			ts.next()
		}
	}

	if _, err := ts.expect("FROM"); err != nil {
		return nil, err
	}
	tableName, err := ts.name("table name after FROM")
	if err != nil {
		return nil, err
	}
	table, err := lookupTable(schema, tableName)
	if err != nil {
		return nil, err
	}
	if tok, ok := ts.peek(); ok && tok.Is("WHERE") {
		ts.next()
		if err := ts.condition(); err != nil {
			return nil, err
		}
	}
	if err := ts.end(); err != nil {
		if tok, ok := ts.peek(); ok && isUnsupportedClause(tok) {
			return nil, &UnsupportedStatementError{Keyword: tok.Text}
		}
		return nil, err
	}

	var outputs []Param
	if allColumns {
		outputs = make([]Param, 0, len(table.Columns))
		for _, c := range table.Columns {
			outputs = append(outputs, Param{Name: c.Name, Type: c.Type})
		}
	} else {
		outputs = make([]Param, 0, len(names))
		for _, n := range names {
			c, ok := table.Column(n)
			if !ok {
				return nil, &UnknownColumnError{Table: table.Name, Column: n}
			}
			outputs = append(outputs, Param{Name: c.Name, Type: c.Type})
		}
	}

	// Placeholder types are not back-propagated from the compared column.
	inputs := []Param{}
	for _, tok := range ts.toks {
		if tok.Is("?") {
			inputs = append(inputs, Param{Name: fmt.Sprintf("in%d", len(inputs)+1), Type: TypeString})
		}
	}

	return &QueryShape{Inputs: inputs, Outputs: outputs}, nil
}

// condition consumes a WHERE condition built from operands, comparisons,
// arithmetic and AND/OR/NOT. It stops before ';' or the end of input.
func (ts *tokenStream) condition() error {
	operand := false
	for {
		tok, ok := ts.peek()
		if !ok || tok.Is(";") {
			break
		}
		switch {
		case isUnsupportedClause(tok):
			return &UnsupportedStatementError{Keyword: tok.Text}
		case tok.Kind == TokenWord, tok.Kind == TokenInteger, tok.Is("?"):
			ts.next()
			operand = true
		case tok.Is("'"):
			if _, err := ts.value(); err != nil {
				return err
			}
			operand = true
		case isConditionOperator(tok.Text):
			ts.next()
		default:
			return ts.syntaxErr("condition")
		}
	}
	if !operand {
		return ts.syntaxErr("condition after WHERE")
	}
	return nil
}

func isConditionOperator(op string) bool {
	switch op {
	case "=", "<>", "!=", "<", "<=", ">", ">=", "+", "-", "*", "/", ".":
		return true
	}
	return false
}

// isUnsupportedClause reports tokens that start joins, subqueries or
// set operations.
func isUnsupportedClause(tok Token) bool {
	if tok.Kind != TokenWord {
		return tok.Is("(")
	}
	switch strings.ToUpper(tok.Text) {
	case "SELECT", "JOIN", "INNER", "LEFT", "RIGHT", "FULL", "OUTER", "CROSS", "NATURAL",
		"ON", "USING", "IN", "EXISTS", "UNION", "INTERSECT", "EXCEPT", "FROM", "WHERE":
		return true
	}
	return false
}
