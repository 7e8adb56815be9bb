package sql

import (
	"strings"
)

// SchemaOptions tunes ParseSchemaWithOptions.
type SchemaOptions struct {
	// IncludeIfNotExists parses CREATE TABLE IF NOT EXISTS fragments instead
	// of recording them in Schema.Skipped.
	IncludeIfNotExists bool
}

// ParseSchema parses ';'-separated CREATE TABLE statements with the default
// options.
func ParseSchema(ddl string) (*Schema, error) {
	return ParseSchemaWithOptions(ddl, SchemaOptions{})
}

// ParseSchemaWithOptions parses ';'-separated CREATE TABLE statements.
//
// The grammar is deliberately small: "CREATE TABLE name ( col TYPE ..., ... )".
// Column attributes after the type are ignored and table constraints such as
// FOREIGN KEY are skipped.
func ParseSchemaWithOptions(ddl string, opts SchemaOptions) (*Schema, error) {
	var tables []Table
	var skipped []string

	for _, frag := range strings.Split(ddl, ";") {
		frag = strings.TrimSpace(frag)
		if frag == "" {
			continue
		}

		t, skip, err := parseCreateTable(frag, opts)
		if err != nil {
			return nil, err
		}
		if skip {
			skipped = append(skipped, t.Name)
			continue
		}
		tables = append(tables, *t)
	}

	s, err := NewSchema(tables...)
	if err != nil {
		return nil, err
	}
	s.skipped = skipped
	return s, nil
}

// parseCreateTable parses one fragment with the trailing ';' already removed.
// Unless opts.IncludeIfNotExists is set, a CREATE TABLE IF NOT EXISTS fragment
// reports skip and its column list is never read.
func parseCreateTable(frag string, opts SchemaOptions) (*Table, bool, error) {
	openIdx := strings.Index(frag, "(")
	if openIdx == -1 {
		return nil, false, &SchemaError{Fragment: frag, Reason: "missing '('"}
	}
	closeIdx := strings.LastIndex(frag, ")")
	if closeIdx <= openIdx || strings.TrimSpace(frag[closeIdx+1:]) != "" {
		return nil, false, &SchemaError{Fragment: frag, Reason: "missing or misplaced ')'"}
	}

	// "head" contains: CREATE TABLE [IF NOT EXISTS] name
	headTokens := strings.Fields(frag[:openIdx])
	if len(headTokens) < 3 ||
		!strings.EqualFold(headTokens[0], "CREATE") ||
		!strings.EqualFold(headTokens[1], "TABLE") {
		return nil, false, &SchemaError{Fragment: frag, Reason: "expected CREATE TABLE <name>"}
	}

	ifNotExists := false
	nameTokens := headTokens[2:]
	if len(nameTokens) == 4 &&
		strings.EqualFold(nameTokens[0], "IF") &&
		strings.EqualFold(nameTokens[1], "NOT") &&
		strings.EqualFold(nameTokens[2], "EXISTS") {
		ifNotExists = true
		nameTokens = nameTokens[3:]
	}
	if len(nameTokens) != 1 {
		return nil, false, &SchemaError{Fragment: frag, Reason: "expected a single table name"}
	}
	tableName := unquoteIdent(nameTokens[0])
	if ifNotExists && !opts.IncludeIfNotExists {
		return &Table{Name: tableName}, true, nil
	}

	colsPart := strings.TrimSpace(frag[openIdx+1 : closeIdx])
	if colsPart == "" {
		return nil, false, &SchemaError{Fragment: frag, Reason: "no column definitions"}
	}

	var columns []Column
	for _, def := range splitCommaSeparated(colsPart) {
		parts := strings.Fields(def)
		if isTableConstraint(parts[0]) {
			continue
		}
		if len(parts) < 2 {
			return nil, false, &SchemaError{Fragment: def, Reason: "column definition needs a name and a type"}
		}

		colName := unquoteIdent(parts[0])
		dt, err := mapType(parts[1])
		if err != nil {
			return nil, false, &UnknownTypeError{Column: colName, Type: parts[1]}
		}
		columns = append(columns, Column{Name: colName, Type: dt})
	}

	if len(columns) == 0 {
		return nil, false, &SchemaError{Fragment: frag, Reason: "no columns"}
	}

	return &Table{Name: tableName, Columns: columns}, false, nil
}

func isTableConstraint(word string) bool {
	switch strings.ToUpper(word) {
	case "FOREIGN", "PRIMARY", "UNIQUE", "CHECK", "CONSTRAINT":
		return true
	}
	return false
}

// mapType maps a raw SQL type such as VARCHAR(200) to a PrimitiveType.
func mapType(raw string) (PrimitiveType, error) {
	upper := strings.ToUpper(raw)
	if strings.HasPrefix(upper, "VARCHAR") {
		return TypeString, nil
	}
	switch upper {
	case "TEXT":
		return TypeString, nil
	case "INTEGER":
		return TypeInteger, nil
	case "BOOLEAN":
		return TypeBoolean, nil
	}
	return 0, &UnknownTypeError{Type: raw}
}

// RenderSchema renders s as canonical DDL accepted by ParseSchema.
func RenderSchema(s *Schema) string {
	var b strings.Builder
	for i, t := range s.Tables() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("CREATE TABLE ")
		b.WriteString(t.Name)
		b.WriteString(" (\n")
		for j, c := range t.Columns {
			b.WriteString("    ")
			b.WriteString(c.Name)
			b.WriteString(" ")
			b.WriteString(c.Type.SQLType())
			if j < len(t.Columns)-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
		b.WriteString(");\n")
	}
	return b.String()
}
