package code

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"plainapi/internal/logging"
	"plainapi/internal/sql"
)

var errEmptyCondition = errors.New("if statement without a condition")

// Parser turns indented pseudo-code lines into a statement tree. A Parser
// holds no per-parse state and may be reused; oracle calls are made strictly
// in source order.
type Parser struct {
	oracle     Oracle
	schema     *sql.Schema
	schemaText string
	logger     *slog.Logger
	lineOffset int
}

// Option configures a Parser.
type Option func(*Parser)

// WithSchema sets the schema used to resolve SQL right-hand sides. ddl is
// the raw text the schema was parsed from; it is passed to the oracle.
func WithSchema(schema *sql.Schema, ddl string) Option {
	return func(p *Parser) {
		p.schema = schema
		p.schemaText = ddl
	}
}

// WithLogger sets the logger used for debug tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithLineOffset sets the number of source lines that precede the lines
// handed to ParseBlock, so errors report absolute positions.
func WithLineOffset(offset int) Option {
	return func(p *Parser) {
		p.lineOffset = offset
	}
}

func NewParser(oracle Oracle, opts ...Option) *Parser {
	p := &Parser{
		oracle: oracle,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseBlock parses lines into a block. The first non-blank line sets the
// reference indentation; scope holds variables declared before the block.
// The returned Context is scope extended by every assignment in the block.
func (p *Parser) ParseBlock(ctx context.Context, lines []string, scope Context) (Block, Context, error) {
	return p.parseLines(ctx, lines, p.lineOffset, scope)
}

func (p *Parser) parseLines(ctx context.Context, lines []string, offset int, scope Context) (Block, Context, error) {
	st := &blockState{p: p, ctx: ctx, lines: lines, offset: offset}

	first := st.skipBlank(0)
	if first >= len(lines) {
		return Block{}, scope, nil
	}
	ref, err := st.indent(first)
	if err != nil {
		return nil, scope, err
	}

	block, next, scope, err := st.parseBlock(first, ref, scope)
	if err != nil {
		return nil, scope, err
	}
	if next < len(lines) {
		return nil, scope, &IndentationError{
			Line: st.lineNo(next),
			Msg:  "unindent does not match the indentation of the first line",
		}
	}
	return block, scope, nil
}

// blockState is the cursor for one ParseBlock call.
type blockState struct {
	p      *Parser
	ctx    context.Context
	lines  []string
	offset int
}

// lineNo converts a local index into a 1-based absolute line number.
func (st *blockState) lineNo(i int) int {
	return st.offset + i + 1
}

func (st *blockState) skipBlank(i int) int {
	for i < len(st.lines) && strings.TrimSpace(st.lines[i]) == "" {
		i++
	}
	return i
}

// indent counts leading spaces. Tabs in the indentation are rejected.
func (st *blockState) indent(i int) (int, error) {
	n := 0
	for _, r := range st.lines[i] {
		switch r {
		case ' ':
			n++
		case '\t':
			return 0, &IndentationError{Line: st.lineNo(i), Msg: "tab in indentation"}
		default:
			return n, nil
		}
	}
	return n, nil
}

func (st *blockState) scope(vars Context) Scope {
	return Scope{Vars: vars, SchemaText: st.p.schemaText}
}

// parseBlock parses statements at exactly indentation ref starting at line
// i. It stops at the first line indented less than ref or at end of input,
// returning the index of that line.
func (st *blockState) parseBlock(i, ref int, vars Context) (Block, int, Context, error) {
	block := Block{}
	for {
		i = st.skipBlank(i)
		if i >= len(st.lines) {
			return block, i, vars, nil
		}
		ind, err := st.indent(i)
		if err != nil {
			return nil, i, vars, err
		}
		if ind < ref {
			return block, i, vars, nil
		}
		if ind > ref {
			return nil, i, vars, &IndentationError{Line: st.lineNo(i), Msg: "unexpected indent"}
		}

		var stmt Statement
		stmt, i, vars, err = st.parseStatement(i, ref, vars)
		if err != nil {
			return nil, i, vars, err
		}
		block = append(block, stmt)
	}
}

func (st *blockState) parseStatement(i, ref int, vars Context) (Statement, int, Context, error) {
	text := strings.TrimSpace(st.lines[i])
	line := st.lineNo(i)

	var kind StatementKind
	if startsWithWord(text, "if") {
		kind = KindIf
	} else {
		k, err := st.p.oracle.ClassifyStatement(st.ctx, text)
		if err != nil {
			return nil, i, vars, &LineError{Line: line, Err: err}
		}
		if !k.Valid() {
			return nil, i, vars, &OracleContractError{
				Line: line, Call: "ClassifyStatement", Reason: fmt.Sprintf("unknown statement kind %q", k),
			}
		}
		kind = k
	}
	st.p.logger.Debug("classified statement", "line", line, "kind", kind)

	switch kind {
	case KindIf:
		return st.parseIf(i, ref, vars)

	case KindException:
		stmt, err := st.parseException(text, line, vars)
		if err != nil {
			return nil, i, vars, err
		}
		return stmt, i + 1, vars, nil

	case KindAssignment:
		stmt, err := st.parseAssignment(text, line, vars)
		if err != nil {
			return nil, i, vars, err
		}
		return stmt.AssignmentStmt, i + 1, vars.With(stmt.Target, stmt.boundType), nil

	case KindOutput:
		stmt, err := st.parseOutput(text, line, vars)
		if err != nil {
			return nil, i, vars, err
		}
		return stmt, i + 1, vars, nil

	default:
		return nil, i, vars, &NotImplementedError{Line: line, Feature: "function-call statement"}
	}
}

// parseIf parses the if line at i, its then block and an optional else block.
func (st *blockState) parseIf(i, ref int, vars Context) (Statement, int, Context, error) {
	text := strings.TrimSpace(st.lines[i])
	line := st.lineNo(i)
	stmt := &IfStmt{
		Condition: ConditionExpr{Original: strings.TrimSpace(trimWord(text, "if"))},
		Line:      line,
	}
	if stmt.Condition.Original == "" {
		return nil, i, vars, &LineError{Line: line, Err: errEmptyCondition}
	}

	then, next, vars, err := st.childBlock(i, ref, vars, "if")
	if err != nil {
		return nil, next, vars, err
	}
	stmt.Then = then

	if next >= len(st.lines) {
		return stmt, next, vars, nil
	}
	ind, err := st.indent(next)
	if err != nil {
		return nil, next, vars, err
	}
	if ind < ref {
		return stmt, next, vars, nil
	}
	if ind > ref {
		return nil, next, vars, &IndentationError{
			Line: st.lineNo(next),
			Msg:  "indentation does not match the if statement or its block",
		}
	}

	elseText := strings.TrimSpace(st.lines[next])
	clause, err := st.p.oracle.ClassifyElse(st.ctx, elseText)
	if err != nil {
		return nil, next, vars, &LineError{Line: st.lineNo(next), Err: err}
	}
	st.p.logger.Debug("classified else", "line", st.lineNo(next), "kind", clause.Kind)

	switch clause.Kind {
	case ElseNone:
		return stmt, next, vars, nil
	case ElseIf:
		return nil, next, vars, &NotImplementedError{Line: st.lineNo(next), Feature: "else-if chain"}
	case Else:
		elseBlock, after, vars, err := st.childBlock(next, ref, vars, "else")
		if err != nil {
			return nil, after, vars, err
		}
		stmt.Else = elseBlock
		if after < len(st.lines) {
			ind, err := st.indent(after)
			if err != nil {
				return nil, after, vars, err
			}
			if ind > ref {
				return nil, after, vars, &IndentationError{
					Line: st.lineNo(after),
					Msg:  "indentation does not match the else statement or its block",
				}
			}
		}
		return stmt, after, vars, nil
	default:
		return nil, next, vars, &OracleContractError{
			Line: st.lineNo(next), Call: "ClassifyElse", Reason: fmt.Sprintf("unknown else kind %d", clause.Kind),
		}
	}
}

// childBlock parses the block owned by the header line at i. Its first line
// must be indented deeper than ref.
func (st *blockState) childBlock(i, ref int, vars Context, owner string) (Block, int, Context, error) {
	j := st.skipBlank(i + 1)
	if j >= len(st.lines) {
		return nil, j, vars, &IndentationError{Line: st.lineNo(i), Msg: "expected an indented block after " + owner}
	}
	ind, err := st.indent(j)
	if err != nil {
		return nil, j, vars, err
	}
	if ind <= ref {
		return nil, j, vars, &IndentationError{Line: st.lineNo(j), Msg: "expected an indented block after " + owner}
	}
	return st.parseBlock(j, ind, vars)
}

func (st *blockState) extract(kind StatementKind, text string, line int, vars Context) (Record, error) {
	rec, err := st.p.oracle.ExtractFields(st.ctx, kind, text, st.scope(vars))
	if err != nil {
		return nil, &LineError{Line: line, Err: err}
	}
	if rec == nil {
		return nil, &OracleContractError{Line: line, Call: "ExtractFields", Reason: "nil record"}
	}
	return rec, nil
}

func (st *blockState) parseException(text string, line int, vars Context) (*ExceptionStmt, error) {
	rec, err := st.extract(KindException, text, line, vars)
	if err != nil {
		return nil, err
	}
	code, err := rec.OptionalInt("code")
	if err != nil {
		return nil, &OracleContractError{Line: line, Call: "ExtractFields", Reason: err.Error()}
	}
	msg, err := rec.OptionalString("message")
	if err != nil {
		return nil, &OracleContractError{Line: line, Call: "ExtractFields", Reason: err.Error()}
	}
	return &ExceptionStmt{Code: code, Message: msg, Original: text, Line: line}, nil
}

// assignment carries the bound type next to the node so the caller can
// extend the context without re-deriving it.
type assignment struct {
	*AssignmentStmt
	boundType VarType
}

func (st *blockState) parseAssignment(text string, line int, vars Context) (assignment, error) {
	rec, err := st.extract(KindAssignment, text, line, vars)
	if err != nil {
		return assignment{}, err
	}
	name, err := rec.RequireString("name")
	if err != nil {
		return assignment{}, &OracleContractError{Line: line, Call: "ExtractFields", Reason: err.Error()}
	}
	name = strings.TrimSpace(name)
	if !isIdentifier(name) {
		return assignment{}, &OracleContractError{
			Line: line, Call: "ExtractFields", Reason: fmt.Sprintf("%q is not a variable name", name),
		}
	}
	value, err := rec.RequireString("value")
	if err != nil {
		return assignment{}, &OracleContractError{Line: line, Call: "ExtractFields", Reason: err.Error()}
	}

	rhs, typ, err := st.resolveRHS(value, line, vars)
	if err != nil {
		return assignment{}, err
	}
	return assignment{
		AssignmentStmt: &AssignmentStmt{Target: name, Value: rhs, Original: text, Line: line},
		boundType:      typ,
	}, nil
}

func (st *blockState) parseOutput(text string, line int, vars Context) (*OutputStmt, error) {
	rec, err := st.extract(KindOutput, text, line, vars)
	if err != nil {
		return nil, err
	}
	value, err := rec.RequireString("value")
	if err != nil {
		return nil, &OracleContractError{Line: line, Call: "ExtractFields", Reason: err.Error()}
	}
	rhs, _, err := st.resolveRHS(value, line, vars)
	if err != nil {
		return nil, err
	}
	return &OutputStmt{Value: rhs, Original: text, Line: line}, nil
}

// resolveRHS resolves a value description. Text starting with the word "sql"
// is translated to SQL and shaped against the schema; anything else becomes
// a native expression.
func (st *blockState) resolveRHS(text string, line int, vars Context) (RHS, VarType, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, "", &OracleContractError{Line: line, Call: "ExtractFields", Reason: "empty value"}
	}

	if startsWithWord(text, "sql") {
		english := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(trimWord(text, "sql")), ":"))
		query, err := st.p.oracle.TranslateSQL(st.ctx, english, st.scope(vars))
		if err != nil {
			return nil, "", &LineError{Line: line, Err: err}
		}
		shape, err := sql.ParseStatement(query, st.p.schema)
		if err != nil {
			return nil, "", &LineError{Line: line, Err: err}
		}
		typ := VarAny
		if len(shape.Outputs) > 0 {
			typ = VarRows
		}
		return &SQLExpr{Original: text, SQL: strings.TrimSpace(query), Shape: shape}, typ, nil
	}

	expr, err := st.p.oracle.ResolveExpression(st.ctx, text, st.scope(vars))
	if err != nil {
		return nil, "", &LineError{Line: line, Err: err}
	}
	if expr == nil || strings.TrimSpace(expr.Code) == "" {
		return nil, "", &OracleContractError{Line: line, Call: "ResolveExpression", Reason: "empty expression"}
	}
	typ, err := ParseVarType(string(expr.ReturnType))
	if err != nil {
		return nil, "", &OracleContractError{Line: line, Call: "ResolveExpression", Reason: err.Error()}
	}
	out := *expr
	out.ReturnType = typ
	if out.Original == "" {
		out.Original = text
	}
	return &out, typ, nil
}

// startsWithWord reports whether text begins with word (case-insensitive)
// followed by a non-identifier character or the end of text.
func startsWithWord(text, word string) bool {
	if len(text) < len(word) || !strings.EqualFold(text[:len(word)], word) {
		return false
	}
	if len(text) == len(word) {
		return true
	}
	r := rune(text[len(word)])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
}

func trimWord(text, word string) string {
	if startsWithWord(text, word) {
		return text[len(word):]
	}
	return text
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
