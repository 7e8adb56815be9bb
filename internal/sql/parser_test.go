package sql

import (
	"errors"
	"testing"
)

func testSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := ParseSchema("CREATE TABLE users (id INTEGER, email VARCHAR, is_admin BOOLEAN);")
	if err != nil {
		t.Fatalf("ParseSchema failed: %v", err)
	}
	return s
}

func assertParams(t *testing.T, what string, got, want []Param) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: expected %d params %+v, got %d %+v", what, len(want), want, len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s[%d]: expected %+v, got %+v", what, i, want[i], got[i])
		}
	}
}

func TestParseSelect_Star(t *testing.T) {
	shape, err := ParseStatement("SELECT * FROM users;", testSchema(t))
	if err != nil {
		t.Fatalf("ParseStatement failed: %v", err)
	}
	assertParams(t, "outputs", shape.Outputs, []Param{
		{Name: "id", Type: TypeInteger},
		{Name: "email", Type: TypeString},
		{Name: "is_admin", Type: TypeBoolean},
	})
	assertParams(t, "inputs", shape.Inputs, nil)
}

func TestParseSelect_ColumnsWithPlaceholder(t *testing.T) {
	shape, err := ParseStatement("SELECT email FROM users WHERE id = ?;", testSchema(t))
	if err != nil {
		t.Fatalf("ParseStatement failed: %v", err)
	}
	assertParams(t, "outputs", shape.Outputs, []Param{{Name: "email", Type: TypeString}})
	assertParams(t, "inputs", shape.Inputs, []Param{{Name: "in1", Type: TypeString}})
}

func TestParseSelect_RequestedOrderAndManyPlaceholders(t *testing.T) {
	shape, err := ParseStatement(
		"  select is_admin , id  from users where id = ? and is_admin = ? ",
		testSchema(t),
	)
	if err != nil {
		t.Fatalf("ParseStatement failed: %v", err)
	}
	assertParams(t, "outputs", shape.Outputs, []Param{
		{Name: "is_admin", Type: TypeBoolean},
		{Name: "id", Type: TypeInteger},
	})
	// Placeholders compared against integer/boolean columns still come out as strings.
	assertParams(t, "inputs", shape.Inputs, []Param{
		{Name: "in1", Type: TypeString},
		{Name: "in2", Type: TypeString},
	})
}

func TestParseSelect_UnknownColumn(t *testing.T) {
	_, err := ParseStatement("SELECT bogus FROM users;", testSchema(t))
	var colErr *UnknownColumnError
	if !errors.As(err, &colErr) {
		t.Fatalf("expected *UnknownColumnError, got %v", err)
	}
	if colErr.Column != "bogus" || colErr.Table != "users" {
		t.Fatalf("unexpected error: %+v", colErr)
	}
}

func TestParseSelect_UnknownTable(t *testing.T) {
	_, err := ParseStatement("SELECT * FROM posts;", testSchema(t))
	var tblErr *UnknownTableError
	if !errors.As(err, &tblErr) {
		t.Fatalf("expected *UnknownTableError, got %v", err)
	}
	if tblErr.Table != "posts" {
		t.Fatalf("unexpected table in error: %q", tblErr.Table)
	}
}

func TestParseSelect_SyntaxErrors(t *testing.T) {
	for _, q := range []string{
		"SELECT",
		"SELECT * users",
		"SELECT email, FROM users",
		"SELECT email FROM",
		"SELECT * FROM ;",
		"SELECT 1 FROM users",
	} {
		_, err := ParseStatement(q, testSchema(t))
		var synErr *SyntaxError
		if !errors.As(err, &synErr) {
			t.Fatalf("%q: expected *SyntaxError, got %v", q, err)
		}
	}
}

func joinSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := ParseSchema("CREATE TABLE users (id INTEGER, email VARCHAR); CREATE TABLE posts (id INTEGER, user_id INTEGER);")
	if err != nil {
		t.Fatalf("ParseSchema failed: %v", err)
	}
	return s
}

func TestParseSelect_WhereClause(t *testing.T) {
	shape, err := ParseStatement("SELECT email FROM users WHERE id >= ? AND email <> 'x y' OR users.id = -3", joinSchema(t))
	if err != nil {
		t.Fatalf("ParseStatement failed: %v", err)
	}
	assertParams(t, "inputs", shape.Inputs, []Param{{Name: "in1", Type: TypeString}})
}

func TestParseSelect_RejectsJoinsAndSubqueries(t *testing.T) {
	for _, q := range []string{
		"SELECT email FROM users JOIN posts ON posts.user_id = users.id WHERE posts.id = ?;",
		"SELECT email FROM users LEFT JOIN posts ON posts.user_id = users.id",
		"SELECT email FROM users WHERE id IN (SELECT user_id FROM posts WHERE id = ?);",
		"SELECT email FROM users WHERE (id = ?)",
		"SELECT * FROM users UNION SELECT * FROM posts",
	} {
		_, err := ParseStatement(q, joinSchema(t))
		var unsupported *UnsupportedStatementError
		if !errors.As(err, &unsupported) {
			t.Fatalf("%q: expected *UnsupportedStatementError, got %v", q, err)
		}
	}
}

func TestParseSelect_RejectsTrailingTokens(t *testing.T) {
	for _, q := range []string{
		"SELECT email FROM users, posts;",
		"SELECT * FROM users; DELETE FROM users",
		"SELECT * FROM users WHERE",
		"SELECT * FROM users WHERE id = ?; garbage",
		"SELECT * FROM users ;;",
	} {
		_, err := ParseStatement(q, joinSchema(t))
		var synErr *SyntaxError
		if !errors.As(err, &synErr) {
			t.Fatalf("%q: expected *SyntaxError, got %v", q, err)
		}
	}
}

func TestParseInsert_TypedInputs(t *testing.T) {
	shape, err := ParseStatement("INSERT INTO users (email, is_admin) VALUES (?, ?);", testSchema(t))
	if err != nil {
		t.Fatalf("ParseStatement failed: %v", err)
	}
	assertParams(t, "inputs", shape.Inputs, []Param{
		{Name: "email", Type: TypeString},
		{Name: "is_admin", Type: TypeBoolean},
	})
	if len(shape.Outputs) != 0 {
		t.Fatalf("expected no outputs, got %+v", shape.Outputs)
	}
}

func TestParseInsert_MixedLiterals(t *testing.T) {
	shape, err := ParseStatement(
		"insert into users (id, email, is_admin) values (-7, 'a b', ?)",
		testSchema(t),
	)
	if err != nil {
		t.Fatalf("ParseStatement failed: %v", err)
	}
	assertParams(t, "inputs", shape.Inputs, []Param{{Name: "is_admin", Type: TypeBoolean}})
}

func TestParseInsert_LiteralsOnly(t *testing.T) {
	shape, err := ParseStatement("INSERT INTO users (id, is_admin) VALUES (1, false);", testSchema(t))
	if err != nil {
		t.Fatalf("ParseStatement failed: %v", err)
	}
	if len(shape.Inputs) != 0 {
		t.Fatalf("expected no inputs, got %+v", shape.Inputs)
	}
}

func TestParseInsert_Arity(t *testing.T) {
	_, err := ParseStatement("INSERT INTO users (email, is_admin) VALUES (?);", testSchema(t))
	var arityErr *ArityError
	if !errors.As(err, &arityErr) {
		t.Fatalf("expected *ArityError, got %v", err)
	}
	if arityErr.Columns != 2 || arityErr.Values != 1 {
		t.Fatalf("unexpected arity error: %+v", arityErr)
	}
}

func TestParseInsert_UnknownColumn(t *testing.T) {
	_, err := ParseStatement("INSERT INTO users (nickname) VALUES (?);", testSchema(t))
	var colErr *UnknownColumnError
	if !errors.As(err, &colErr) {
		t.Fatalf("expected *UnknownColumnError, got %v", err)
	}
}

func TestParseInsert_UnknownTable(t *testing.T) {
	_, err := ParseStatement("INSERT INTO posts (id) VALUES (?);", testSchema(t))
	var tblErr *UnknownTableError
	if !errors.As(err, &tblErr) {
		t.Fatalf("expected *UnknownTableError, got %v", err)
	}
}

func TestParseInsert_SyntaxErrors(t *testing.T) {
	for _, q := range []string{
		"INSERT users (id) VALUES (?)",
		"INSERT INTO users id VALUES (?)",
		"INSERT INTO users (id) (?)",
		"INSERT INTO users (id VALUES (?)",
		"INSERT INTO users (id) VALUES (?",
		"INSERT INTO users (id) VALUES ('unterminated)",
		"INSERT INTO users (id) VALUES (- x)",
		"INSERT INTO users VALUES (1, 'a', true)",
		"INSERT INTO users (email) VALUES (?), (?);",
		"INSERT INTO users (email) VALUES (?) garbage here",
		"INSERT INTO users (email) VALUES (?); INSERT INTO users (email) VALUES (?)",
	} {
		_, err := ParseStatement(q, testSchema(t))
		var synErr *SyntaxError
		if !errors.As(err, &synErr) {
			t.Fatalf("%q: expected *SyntaxError, got %v", q, err)
		}
	}
}

func TestParseStatement_Unsupported(t *testing.T) {
	for _, q := range []string{
		"UPDATE users SET email = ? WHERE id = ?",
		"DELETE FROM users WHERE id = ?",
		"CREATE TABLE x (id INTEGER)",
		"(SELECT * FROM users)",
	} {
		_, err := ParseStatement(q, testSchema(t))
		var unsupported *UnsupportedStatementError
		if !errors.As(err, &unsupported) {
			t.Fatalf("%q: expected *UnsupportedStatementError, got %v", q, err)
		}
	}
}

func TestParseStatement_Empty(t *testing.T) {
	_, err := ParseStatement("   ", testSchema(t))
	var synErr *SyntaxError
	if !errors.As(err, &synErr) {
		t.Fatalf("expected *SyntaxError, got %v", err)
	}
}

func TestParseStatement_LexErrorPropagates(t *testing.T) {
	_, err := ParseStatement("SELECT * FROM users WHERE email = \"x\"", testSchema(t))
	var lexErr *LexError
	if !errors.As(err, &lexErr) {
		t.Fatalf("expected *LexError, got %v", err)
	}
}
