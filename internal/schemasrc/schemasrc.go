// Package schemasrc produces the DDL text that the schema parser consumes:
// from a file, a SQLite database or a live MySQL schema.
package schemasrc

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Options selects a source. At most one field may be set.
type Options struct {
	Path   string `yaml:"path" toml:"path" ini:"path"`
	SQLite string `yaml:"sqlite" toml:"sqlite" ini:"sqlite"`
	MySQL  string `yaml:"mysql" toml:"mysql" ini:"mysql"`
}

// Empty reports whether no source is configured.
func (o Options) Empty() bool {
	return o.Path == "" && o.SQLite == "" && o.MySQL == ""
}

// Load returns DDL text from the configured source.
func Load(ctx context.Context, o Options) (string, error) {
	set := 0
	for _, v := range []string{o.Path, o.SQLite, o.MySQL} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return "", errors.New("more than one schema source configured")
	}
	switch {
	case o.Path != "":
		return ReadFile(o.Path)
	case o.SQLite != "":
		return DumpSQLite(ctx, o.SQLite)
	case o.MySQL != "":
		return DumpMySQL(ctx, o.MySQL)
	}
	return "", errors.New("no schema source configured")
}

// ReadFile reads DDL text from disk.
func ReadFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "read schema")
	}
	return string(b), nil
}

// DumpSQLite returns the CREATE TABLE statements stored in the database at
// path, like the sqlite3 shell's .schema command restricted to tables. The
// database is opened read-only and must exist.
func DumpSQLite(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", errors.Wrap(err, "open sqlite database")
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return "", errors.Wrap(err, "open sqlite database")
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT sql FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND sql IS NOT NULL
		 ORDER BY rowid`)
	if err != nil {
		return "", errors.Wrap(err, "query sqlite_master")
	}
	defer rows.Close()

	var stmts []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return "", errors.Wrap(err, "scan sqlite_master")
		}
		stmts = append(stmts, strings.TrimSuffix(strings.TrimSpace(s), ";")+";")
	}
	if err := rows.Err(); err != nil {
		return "", errors.Wrap(err, "read sqlite_master")
	}
	return strings.Join(stmts, "\n"), nil
}

// DumpMySQL rebuilds CREATE TABLE statements for the current database of dsn
// from information_schema. Column types are normalised to the spellings the
// schema parser understands; anything else is passed through upper-cased so
// the parser reports it.
func DumpMySQL(ctx context.Context, dsn string) (string, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return "", errors.Wrap(err, "open mysql")
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT table_name, column_name, data_type, column_type
		 FROM information_schema.columns
		 WHERE table_schema = DATABASE()
		 ORDER BY table_name, ordinal_position`)
	if err != nil {
		return "", errors.Wrap(err, "query information_schema")
	}
	defer rows.Close()

	var cols []mysqlColumn
	for rows.Next() {
		var c mysqlColumn
		if err := rows.Scan(&c.Table, &c.Name, &c.DataType, &c.ColumnType); err != nil {
			return "", errors.Wrap(err, "scan information_schema")
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return "", errors.Wrap(err, "read information_schema")
	}
	return renderMySQL(cols), nil
}

type mysqlColumn struct {
	Table, Name, DataType, ColumnType string
}

// renderMySQL groups consecutive columns by table.
func renderMySQL(cols []mysqlColumn) string {
	var sb strings.Builder
	for i := 0; i < len(cols); {
		j := i
		var defs []string
		for j < len(cols) && cols[j].Table == cols[i].Table {
			defs = append(defs, fmt.Sprintf("%s %s", cols[j].Name, mysqlType(cols[j].DataType, cols[j].ColumnType)))
			j++
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "CREATE TABLE %s (%s);", cols[i].Table, strings.Join(defs, ", "))
		i = j
	}
	return sb.String()
}

func mysqlType(dataType, columnType string) string {
	switch strings.ToLower(dataType) {
	case "tinyint":
		if strings.HasPrefix(strings.ToLower(columnType), "tinyint(1)") {
			return "BOOLEAN"
		}
		return "INTEGER"
	case "smallint", "mediumint", "int", "integer", "bigint":
		return "INTEGER"
	case "bool", "boolean":
		return "BOOLEAN"
	case "char", "varchar", "tinytext", "text", "mediumtext", "longtext", "enum":
		return "VARCHAR"
	}
	return strings.ToUpper(dataType)
}
