package sql

import (
	"errors"
	"reflect"
	"testing"
)

const usersAndTweets = `
CREATE TABLE users (
    id INTEGER NOT NULL,
    email VARCHAR(200) NOT NULL,
    nickname VARCHAR(200) NOT NULL,
    bio TEXT,
    is_admin BOOLEAN NOT NULL
);
CREATE TABLE tweets (
    id INTEGER NOT NULL,
    body VARCHAR(280) NOT NULL,
    created_by INTEGER NOT NULL,
    FOREIGN KEY (created_by) REFERENCES users (id)
);
`

func TestParseSchema_Basic(t *testing.T) {
	s, err := ParseSchema(usersAndTweets)
	if err != nil {
		t.Fatalf("ParseSchema failed: %v", err)
	}

	tables := s.Tables()
	if len(tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(tables))
	}
	if tables[0].Name != "users" || tables[1].Name != "tweets" {
		t.Fatalf("unexpected table order: %q, %q", tables[0].Name, tables[1].Name)
	}

	want := []Column{
		{Name: "id", Type: TypeInteger},
		{Name: "email", Type: TypeString},
		{Name: "nickname", Type: TypeString},
		{Name: "bio", Type: TypeString},
		{Name: "is_admin", Type: TypeBoolean},
	}
	if !reflect.DeepEqual(tables[0].Columns, want) {
		t.Fatalf("unexpected users columns: %+v", tables[0].Columns)
	}

	tweets, ok := s.Table("tweets")
	if !ok {
		t.Fatalf("expected tweets table")
	}
	if len(tweets.Columns) != 3 {
		t.Fatalf("expected FOREIGN KEY clause to be skipped, got columns %+v", tweets.Columns)
	}
}

func TestParseSchema_CaseAndSpaces(t *testing.T) {
	s, err := ParseSchema("  create   table   Accounts(  balance   integer ,  owner  text )  ")
	if err != nil {
		t.Fatalf("ParseSchema failed: %v", err)
	}
	acc, ok := s.Table("Accounts")
	if !ok {
		t.Fatalf("expected table %q", "Accounts")
	}
	if len(acc.Columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(acc.Columns))
	}
	if acc.Columns[0].Name != "balance" || acc.Columns[0].Type != TypeInteger {
		t.Fatalf("unexpected first column: %+v", acc.Columns[0])
	}
	if acc.Columns[1].Name != "owner" || acc.Columns[1].Type != TypeString {
		t.Fatalf("unexpected second column: %+v", acc.Columns[1])
	}
}

func TestParseSchema_QuotedIdentifiers(t *testing.T) {
	s, err := ParseSchema(`CREATE TABLE "users" ("id" INTEGER, "name" VARCHAR(10,2))`)
	if err != nil {
		t.Fatalf("ParseSchema failed: %v", err)
	}
	u, ok := s.Table("users")
	if !ok {
		t.Fatalf("expected unquoted table name")
	}
	if len(u.Columns) != 2 || u.Columns[1].Name != "name" || u.Columns[1].Type != TypeString {
		t.Fatalf("unexpected columns: %+v", u.Columns)
	}
}

func TestParseSchema_SkipsIfNotExistsByDefault(t *testing.T) {
	ddl := "CREATE TABLE IF NOT EXISTS logs (id INTEGER); CREATE TABLE users (id INTEGER);"

	s, err := ParseSchema(ddl)
	if err != nil {
		t.Fatalf("ParseSchema failed: %v", err)
	}
	if _, ok := s.Table("logs"); ok {
		t.Fatalf("expected logs to be skipped")
	}
	if got := s.Skipped(); len(got) != 1 || got[0] != "logs" {
		t.Fatalf("expected skipped [logs], got %q", got)
	}

	s, err = ParseSchemaWithOptions(ddl, SchemaOptions{IncludeIfNotExists: true})
	if err != nil {
		t.Fatalf("ParseSchemaWithOptions failed: %v", err)
	}
	if _, ok := s.Table("logs"); !ok {
		t.Fatalf("expected logs to be parsed with IncludeIfNotExists")
	}
	if len(s.Skipped()) != 0 {
		t.Fatalf("expected nothing skipped, got %q", s.Skipped())
	}
}

func TestParseSchema_SkippedTableColumnsAreNotRead(t *testing.T) {
	s, err := ParseSchema("CREATE TABLE IF NOT EXISTS logs (at DATETIME, PRIMARY); CREATE TABLE users (id INTEGER);")
	if err != nil {
		t.Fatalf("ParseSchema failed: %v", err)
	}
	if got := s.Skipped(); len(got) != 1 || got[0] != "logs" {
		t.Fatalf("expected skipped [logs], got %q", got)
	}
	if len(s.Tables()) != 1 {
		t.Fatalf("expected 1 table, got %d", len(s.Tables()))
	}

	_, err = ParseSchemaWithOptions("CREATE TABLE IF NOT EXISTS logs (at DATETIME);", SchemaOptions{IncludeIfNotExists: true})
	var typeErr *UnknownTypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("expected *UnknownTypeError when including, got %v", err)
	}
}

func TestParseSchema_UnknownType(t *testing.T) {
	_, err := ParseSchema("CREATE TABLE t (price REAL)")
	var typeErr *UnknownTypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("expected *UnknownTypeError, got %v", err)
	}
	if typeErr.Column != "price" || typeErr.Type != "REAL" {
		t.Fatalf("unexpected error: %+v", typeErr)
	}
}

func TestParseSchema_NotCreateTable(t *testing.T) {
	for _, ddl := range []string{
		"CREATE INDEX idx ON users (id)",
		"DROP TABLE users",
		"CREATE TABLE (id INTEGER)",
		"CREATE TABLE users id INTEGER",
		"CREATE TABLE users (id)",
		"CREATE TABLE users ()",
	} {
		_, err := ParseSchema(ddl)
		var schemaErr *SchemaError
		if !errors.As(err, &schemaErr) {
			t.Fatalf("%q: expected *SchemaError, got %v", ddl, err)
		}
	}
}

func TestParseSchema_DuplicateTable(t *testing.T) {
	_, err := ParseSchema("CREATE TABLE a (id INTEGER); CREATE TABLE a (x TEXT);")
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected *SchemaError for duplicate table, got %v", err)
	}
}

func TestParseSchema_EmptyInput(t *testing.T) {
	s, err := ParseSchema(" ; ;\n")
	if err != nil {
		t.Fatalf("ParseSchema failed: %v", err)
	}
	if len(s.Tables()) != 0 {
		t.Fatalf("expected no tables, got %+v", s.Tables())
	}
}

func TestRenderSchema_RoundTrip(t *testing.T) {
	s, err := ParseSchema(usersAndTweets)
	if err != nil {
		t.Fatalf("ParseSchema failed: %v", err)
	}
	again, err := ParseSchema(RenderSchema(s))
	if err != nil {
		t.Fatalf("ParseSchema(RenderSchema) failed: %v", err)
	}
	if !reflect.DeepEqual(s.Tables(), again.Tables()) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", s.Tables(), again.Tables())
	}
	if RenderSchema(again) != RenderSchema(s) {
		t.Fatalf("rendering is not stable")
	}
}
