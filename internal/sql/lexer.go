package sql

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind classifies a lexeme. Quoted strings have no kind of their own:
// the quote is an operator and the statement parser folds a quoted run into
// one value.
type TokenKind int

const (
	TokenWord TokenKind = iota
	TokenInteger
	TokenOperator
)

func (k TokenKind) String() string {
	switch k {
	case TokenWord:
		return "word"
	case TokenInteger:
		return "integer"
	case TokenOperator:
		return "operator"
	default:
		return "unknown"
	}
}

func (k TokenKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Token is one lexeme. Offset is the byte offset of its first character.
type Token struct {
	Kind   TokenKind `json:"kind"`
	Text   string    `json:"text"`
	Offset int       `json:"offset"`
}

// Is reports whether the token is the given keyword or operator,
// ignoring case for words.
func (t Token) Is(s string) bool {
	if t.Kind == TokenWord {
		return strings.EqualFold(t.Text, s)
	}
	return t.Text == s
}

// operators is scanned in order; multi-character entries come before
// their single-character prefixes.
var operators = []string{
	"<>", "<=", ">=", "=", "<", ">", "!=",
	"(", ")", ";", "+", "-", "*", "/", "'",
	".", ",", "?",
}

// Tokenize returns a lazy token sequence over text. Each call returns a fresh
// sequence. On an unrecognised character the sequence yields a *LexError and
// stops.
func Tokenize(text string) iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		pos := 0
		for {
			tok, next, err := scan(text, pos)
			if err != nil {
				yield(Token{}, err)
				return
			}
			if next < 0 {
				return
			}
			pos = next
			if !yield(tok, nil) {
				return
			}
		}
	}
}

// TokenizeAll collects Tokenize into a slice.
func TokenizeAll(text string) ([]Token, error) {
	var out []Token
	for tok, err := range Tokenize(text) {
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	return out, nil
}

// scan reads one token starting at pos. next is -1 at end of input.
func scan(text string, pos int) (Token, int, error) {
	for pos < len(text) {
		r, size := utf8.DecodeRuneInString(text[pos:])
		if !unicode.IsSpace(r) {
			break
		}
		pos += size
	}
	if pos >= len(text) {
		return Token{}, -1, nil
	}

	start := pos
	r, size := utf8.DecodeRuneInString(text[pos:])
	switch {
	case unicode.IsLetter(r) || r == '_':
		pos += size
		for pos < len(text) {
			r, size = utf8.DecodeRuneInString(text[pos:])
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
				break
			}
			pos += size
		}
		return Token{Kind: TokenWord, Text: text[start:pos], Offset: start}, pos, nil

	case isDigit(r):
		pos += size
		for pos < len(text) && isDigit(rune(text[pos])) {
			pos++
		}
		return Token{Kind: TokenInteger, Text: text[start:pos], Offset: start}, pos, nil
	}

	for _, op := range operators {
		if strings.HasPrefix(text[pos:], op) {
			return Token{Kind: TokenOperator, Text: op, Offset: start}, pos + len(op), nil
		}
	}
	return Token{}, -1, &LexError{Char: r, Offset: start}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
