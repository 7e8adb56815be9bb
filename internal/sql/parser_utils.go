package sql

import (
	"fmt"
	"strings"
)

// splitCommaSeparated splits s on commas that are not nested inside
// parentheses, so "a VARCHAR(10,2), b INTEGER" yields two parts.
// Empty parts are dropped.
func splitCommaSeparated(s string) []string {
	var out []string
	depth := 0
	start := 0
	flush := func(end int) {
		p := strings.TrimSpace(s[start:end])
		if p != "" {
			out = append(out, p)
		}
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(s))
	return out
}

// unquoteIdent strips one layer of identifier quoting as written by
// sqlite's .schema dump ("users", `users`, [users]).
func unquoteIdent(s string) string {
	if len(s) >= 2 {
		switch {
		case s[0] == '"' && s[len(s)-1] == '"',
			s[0] == '`' && s[len(s)-1] == '`',
			s[0] == '[' && s[len(s)-1] == ']':
			return s[1 : len(s)-1]
		}
	}
	return s
}

// tokenStream is a cursor over a tokenized statement.
type tokenStream struct {
	toks []Token
	pos  int
}

func (ts *tokenStream) done() bool {
	return ts.pos >= len(ts.toks)
}

func (ts *tokenStream) peek() (Token, bool) {
	if ts.done() {
		return Token{}, false
	}
	return ts.toks[ts.pos], true
}

func (ts *tokenStream) next() (Token, bool) {
	tok, ok := ts.peek()
	if ok {
		ts.pos++
	}
	return tok, ok
}

// expect consumes the next token if it matches want (case-insensitive for
// words) and fails with a *SyntaxError otherwise.
func (ts *tokenStream) expect(want string) (Token, error) {
	tok, ok := ts.next()
	if !ok {
		return Token{}, ts.syntaxErr(fmt.Sprintf("%q", want))
	}
	if !tok.Is(want) {
		ts.pos--
		return Token{}, ts.syntaxErr(fmt.Sprintf("%q", want))
	}
	return tok, nil
}

// name consumes a bare identifier.
func (ts *tokenStream) name(what string) (string, error) {
	tok, ok := ts.next()
	if !ok || tok.Kind != TokenWord {
		if ok {
			ts.pos--
		}
		return "", ts.syntaxErr(what)
	}
	return tok.Text, nil
}

// syntaxErr describes the token at the cursor.
func (ts *tokenStream) syntaxErr(expected string) *SyntaxError {
	tok, ok := ts.peek()
	if !ok {
		return &SyntaxError{Got: "end of input", Expected: expected, Offset: -1}
	}
	return &SyntaxError{Got: fmt.Sprintf("%q", tok.Text), Expected: expected, Offset: tok.Offset}
}

// end accepts an optional ';' and then requires the end of input, so a
// second statement or trailing clause is never silently dropped.
func (ts *tokenStream) end() error {
	if tok, ok := ts.peek(); ok && tok.Is(";") {
		ts.next()
	}
	if !ts.done() {
		return ts.syntaxErr("end of statement")
	}
	return nil
}

// parenList parses "( item , item ... )" where each item is produced by
// item. The opening parenthesis must be the next token.
func (ts *tokenStream) parenList(item func() (string, error)) ([]string, error) {
	if _, err := ts.expect("("); err != nil {
		return nil, err
	}
	var out []string
	for {
		v, err := item()
		if err != nil {
			return nil, err
		}
		out = append(out, v)

		tok, ok := ts.next()
		if !ok {
			return nil, ts.syntaxErr(`"," or ")"`)
		}
		if tok.Is(")") {
			return out, nil
		}
		if !tok.Is(",") {
			ts.pos--
			return nil, ts.syntaxErr(`"," or ")"`)
		}
	}
}

// value consumes one INSERT value: a placeholder, word, integer, signed
// integer or single-quoted string run. It returns the value's source form.
func (ts *tokenStream) value() (string, error) {
	tok, ok := ts.next()
	if !ok {
		return "", ts.syntaxErr("value")
	}
	switch {
	case tok.Is("?"), tok.Kind == TokenWord, tok.Kind == TokenInteger:
		return tok.Text, nil
	case tok.Is("-"):
		num, ok := ts.next()
		if !ok || num.Kind != TokenInteger {
			if ok {
				ts.pos--
			}
			return "", ts.syntaxErr("integer after '-'")
		}
		return "-" + num.Text, nil
	case tok.Is("'"):
		parts := []string{}
		for {
			t, ok := ts.next()
			if !ok {
				return "", ts.syntaxErr("closing quote")
			}
			if t.Is("'") {
				return "'" + strings.Join(parts, " ") + "'", nil
			}
			parts = append(parts, t.Text)
		}
	default:
		ts.pos--
		return "", ts.syntaxErr("value")
	}
}
