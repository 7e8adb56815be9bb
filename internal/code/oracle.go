package code

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// StatementKind is the classification of one pseudo-code line.
type StatementKind string

const (
	KindIf           StatementKind = "if"
	KindException    StatementKind = "exception"
	KindAssignment   StatementKind = "assignment"
	KindOutput       StatementKind = "output"
	KindFunctionCall StatementKind = "function_call"
)

// Valid reports whether k is one of the known kinds.
func (k StatementKind) Valid() bool {
	switch k {
	case KindIf, KindException, KindAssignment, KindOutput, KindFunctionCall:
		return true
	}
	return false
}

// ElseKind classifies a line that follows an if block at the if's depth.
type ElseKind int

const (
	// ElseNone means the line is an ordinary sibling statement.
	ElseNone ElseKind = iota
	Else
	ElseIf
)

func (k ElseKind) String() string {
	switch k {
	case Else:
		return "else"
	case ElseIf:
		return "else-if"
	default:
		return "none"
	}
}

// ElseClause is the result of Oracle.ClassifyElse. Condition is set for ElseIf.
type ElseClause struct {
	Kind      ElseKind
	Condition string
}

// Scope is what an oracle may consult while answering: the variables bound
// so far and the raw schema text.
type Scope struct {
	Vars       Context
	SchemaText string
}

// Record is a structured extraction result. The keys expected per kind are:
//
//	exception:  "code" (integer or nil), "message" (string or nil)
//	assignment: "name" (string), "value" (string)
//	output:     "value" (string)
type Record map[string]any

// Oracle answers the questions the block parser cannot decide from the text
// alone. Implementations may be backed by a language model, a rule engine or a
// test double; the parser only relies on the documented return shapes.
type Oracle interface {
	ClassifyStatement(ctx context.Context, line string) (StatementKind, error)
	ClassifyElse(ctx context.Context, line string) (ElseClause, error)
	ExtractFields(ctx context.Context, kind StatementKind, line string, scope Scope) (Record, error)
	// TranslateSQL turns an English description into one SQL statement.
	TranslateSQL(ctx context.Context, english string, scope Scope) (string, error)
	// ResolveExpression turns a non-SQL value description into a native
	// expression with a declared return type.
	ResolveExpression(ctx context.Context, text string, scope Scope) (*NativeExpr, error)
}

// RequireString returns the string stored under key. A missing key or a non-string
// value is an error.
func (r Record) RequireString(key string) (string, error) {
	v, ok := r[key]
	if !ok {
		return "", fmt.Errorf("missing field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q: expected string, got %T", key, v)
	}
	return s, nil
}

// OptionalString is like RequireString but allows an explicit nil. The key itself
// must be present.
func (r Record) OptionalString(key string) (*string, error) {
	v, ok := r[key]
	if !ok {
		return nil, fmt.Errorf("missing field %q", key)
	}
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("field %q: expected string or nil, got %T", key, v)
	}
	return &s, nil
}

// OptionalInt returns the integer stored under key, accepting the numeric
// types produced by JSON, YAML and msgpack decoders as well as digit strings.
func (r Record) OptionalInt(key string) (*int, error) {
	v, ok := r[key]
	if !ok {
		return nil, fmt.Errorf("missing field %q", key)
	}
	var n int
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int:
		n = x
	case int8:
		n = int(x)
	case int16:
		n = int(x)
	case int32:
		n = int(x)
	case int64:
		n = int(x)
	case uint8:
		n = int(x)
	case uint16:
		n = int(x)
	case uint32:
		n = int(x)
	case uint:
		n = int(x)
	case uint64:
		if x > math.MaxInt {
			return nil, fmt.Errorf("field %q: %d out of range", key, x)
		}
		n = int(x)
	case float64:
		if x != math.Trunc(x) {
			return nil, fmt.Errorf("field %q: %v is not an integer", key, x)
		}
		n = int(x)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return nil, fmt.Errorf("field %q: %q is not an integer", key, x)
		}
		n = i
	default:
		return nil, fmt.Errorf("field %q: expected integer or nil, got %T", key, v)
	}
	return &n, nil
}
