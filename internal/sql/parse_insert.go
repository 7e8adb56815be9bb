package sql

// parseInsert parses an INSERT INTO ... VALUES (...) statement.
// Example supported syntax:
//
//	INSERT INTO users (email, is_admin) VALUES (?, false);
//
// Each '?' value becomes an input carrying its column's name and type.
// INSERT has no outputs.
func parseInsert(ts *tokenStream, schema *Schema) (*QueryShape, error) {
	if _, err := ts.expect("INSERT"); err != nil {
		return nil, err
	}
	if _, err := ts.expect("INTO"); err != nil {
		return nil, err
	}
	tableName, err := ts.name("table name after INTO")
	if err != nil {
		return nil, err
	}
	table, err := lookupTable(schema, tableName)
	if err != nil {
		return nil, err
	}

	columns, err := ts.parenList(func() (string, error) { return ts.name("column name") })
	if err != nil {
		return nil, err
	}
	if _, err := ts.expect("VALUES"); err != nil {
		return nil, err
	}
	values, err := ts.parenList(ts.value)
	if err != nil {
		return nil, err
	}
	if err := ts.end(); err != nil {
		return nil, err
	}
	if len(columns) != len(values) {
		return nil, &ArityError{Columns: len(columns), Values: len(values)}
	}

	inputs := []Param{}
	for i, name := range columns {
		c, ok := table.Column(name)
		if !ok {
			return nil, &UnknownColumnError{Table: table.Name, Column: name}
		}
		if values[i] == "?" {
			inputs = append(inputs, Param{Name: c.Name, Type: c.Type})
		}
	}

	return &QueryShape{Inputs: inputs, Outputs: []Param{}}, nil
}
