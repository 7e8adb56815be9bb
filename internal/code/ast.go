package code

import (
	"encoding/json"

	"plainapi/internal/sql"
)

// Statement is the common interface for all pseudo-code statements.
type Statement interface {
	stmtNode()
	// SourceLine is the 1-based absolute line the statement starts on.
	SourceLine() int
}

// RHS is the right-hand side of an assignment or the value of an output.
type RHS interface {
	rhsNode()
}

// Block is an ordered sequence of statements sharing one indentation level.
type Block []Statement

// ConditionExpr is the unresolved condition text of an if statement.
type ConditionExpr struct {
	Original string `json:"original"`
}

// IfStmt is "if <condition>" with a non-empty then block and an optional
// else block. Else is nil when there is no else branch.
type IfStmt struct {
	Condition ConditionExpr `json:"condition"`
	Then      Block         `json:"then"`
	Else      Block         `json:"else,omitempty"`
	Line      int           `json:"line"`
}

// AssignmentStmt binds Target to the value of Value.
type AssignmentStmt struct {
	Target   string `json:"target"`
	Value    RHS    `json:"value"`
	Original string `json:"original"`
	Line     int    `json:"line"`
}

// OutputStmt returns Value from the enclosing endpoint.
type OutputStmt struct {
	Value    RHS    `json:"value"`
	Original string `json:"original"`
	Line     int    `json:"line"`
}

// ExceptionStmt aborts with an optional status code and message.
type ExceptionStmt struct {
	Code     *int    `json:"code"`
	Message  *string `json:"message"`
	Original string  `json:"original"`
	Line     int     `json:"line"`
}

// FunctionCallStmt calls a named function. It is both a statement and a
// right-hand side.
type FunctionCallStmt struct {
	Function string   `json:"function"`
	Args     []string `json:"args"`
	Original string   `json:"original"`
	Line     int      `json:"line"`
}

// SQLExpr is a right-hand side resolved to a SQL statement and its shape.
type SQLExpr struct {
	Original string          `json:"original"`
	SQL      string          `json:"sql"`
	Shape    *sql.QueryShape `json:"shape"`
}

// NativeExpr is an opaque resolved expression in the target language.
type NativeExpr struct {
	Original   string  `json:"original"`
	Code       string  `json:"code"`
	ReturnType VarType `json:"returnType"`
}

func (*IfStmt) stmtNode()           {}
func (*AssignmentStmt) stmtNode()   {}
func (*OutputStmt) stmtNode()       {}
func (*ExceptionStmt) stmtNode()    {}
func (*FunctionCallStmt) stmtNode() {}

func (s *IfStmt) SourceLine() int           { return s.Line }
func (s *AssignmentStmt) SourceLine() int   { return s.Line }
func (s *OutputStmt) SourceLine() int       { return s.Line }
func (s *ExceptionStmt) SourceLine() int    { return s.Line }
func (s *FunctionCallStmt) SourceLine() int { return s.Line }

func (*SQLExpr) rhsNode()          {}
func (*NativeExpr) rhsNode()       {}
func (*FunctionCallStmt) rhsNode() {}

// The MarshalJSON methods tag every node with its variant so the tree can be
// handed to a code generator as plain JSON.

func (s *IfStmt) MarshalJSON() ([]byte, error) {
	type alias IfStmt
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"if", (*alias)(s)})
}

func (s *AssignmentStmt) MarshalJSON() ([]byte, error) {
	type alias AssignmentStmt
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"assignment", (*alias)(s)})
}

func (s *OutputStmt) MarshalJSON() ([]byte, error) {
	type alias OutputStmt
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"output", (*alias)(s)})
}

func (s *ExceptionStmt) MarshalJSON() ([]byte, error) {
	type alias ExceptionStmt
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"exception", (*alias)(s)})
}

func (s *FunctionCallStmt) MarshalJSON() ([]byte, error) {
	type alias FunctionCallStmt
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"function_call", (*alias)(s)})
}

func (e *SQLExpr) MarshalJSON() ([]byte, error) {
	type alias SQLExpr
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"sql", (*alias)(e)})
}

func (e *NativeExpr) MarshalJSON() ([]byte, error) {
	type alias NativeExpr
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"native", (*alias)(e)})
}

// Walk visits every statement in b depth-first, then blocks before else
// blocks. Returning false from fn skips the children of that statement.
func Walk(b Block, fn func(Statement) bool) {
	for _, s := range b {
		if !fn(s) {
			continue
		}
		if is, ok := s.(*IfStmt); ok {
			Walk(is.Then, fn)
			Walk(is.Else, fn)
		}
	}
}
