package code

import (
	"errors"
	"fmt"
)

// IndentationError reports a line whose indentation does not fit the block
// structure.
type IndentationError struct {
	Line int
	Msg  string
}

func (e *IndentationError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// NotImplementedError reports a construct the parser recognises but does
// not support (else-if chains, function-call statements).
type NotImplementedError struct {
	Line    int
	Feature string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("line %d: %s is not implemented", e.Line, e.Feature)
}

// OracleContractError reports an oracle answer that does not have the
// documented shape.
type OracleContractError struct {
	Line   int
	Call   string
	Reason string
}

func (e *OracleContractError) Error() string {
	return fmt.Sprintf("line %d: %s returned an invalid answer: %s", e.Line, e.Call, e.Reason)
}

// LineError attaches a source line to an error raised below the block
// parser: an oracle call failure or a SQL parse error.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// LineOf returns the source line carried by err, or 0 when err does not come
// from the block parser.
func LineOf(err error) int {
	var (
		ie *IndentationError
		ni *NotImplementedError
		ce *OracleContractError
		le *LineError
	)
	switch {
	case errors.As(err, &ie):
		return ie.Line
	case errors.As(err, &ni):
		return ni.Line
	case errors.As(err, &ce):
		return ce.Line
	case errors.As(err, &le):
		return le.Line
	}
	return 0
}
