package code

import (
	"encoding/json"
	"fmt"
	"strings"

	"plainapi/internal/sql"
)

// VarType is the declared type of a variable in a Context.
type VarType string

const (
	VarString  VarType = "string"
	VarInteger VarType = "integer"
	VarBoolean VarType = "boolean"
	VarRows    VarType = "rows"
	VarAny     VarType = "any"
)

// ParseVarType accepts the canonical names plus the short type hints
// str/int/bool.
func ParseVarType(s string) (VarType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "str":
		return VarString, nil
	case "integer", "int":
		return VarInteger, nil
	case "boolean", "bool":
		return VarBoolean, nil
	case "rows":
		return VarRows, nil
	case "any", "":
		return VarAny, nil
	}
	return "", fmt.Errorf("unknown variable type %q", s)
}

// VarTypeOf maps a column type to a variable type.
func VarTypeOf(t sql.PrimitiveType) VarType {
	switch t {
	case sql.TypeInteger:
		return VarInteger
	case sql.TypeBoolean:
		return VarBoolean
	default:
		return VarString
	}
}

// Variable is one name/type binding.
type Variable struct {
	Name string  `json:"name"`
	Type VarType `json:"type"`
}

// Context maps variable names to declared types. It is an immutable value:
// With returns an extended copy and never changes the receiver, so a nested
// parse can hold on to the snapshot it was given. The zero value is empty.
type Context struct {
	head *binding
}

type binding struct {
	v    Variable
	prev *binding
}

// NewContext returns a context holding vars in order.
func NewContext(vars ...Variable) Context {
	var c Context
	for _, v := range vars {
		c = c.With(v.Name, v.Type)
	}
	return c
}

// With returns a context where name has type t.
func (c Context) With(name string, t VarType) Context {
	return Context{head: &binding{v: Variable{Name: name, Type: t}, prev: c.head}}
}

// Lookup returns the most recent type bound to name.
func (c Context) Lookup(name string) (VarType, bool) {
	for b := c.head; b != nil; b = b.prev {
		if b.v.Name == name {
			return b.v.Type, true
		}
	}
	return "", false
}

// Vars lists the bound variables in first-declaration order, each with its
// latest type.
func (c Context) Vars() []Variable {
	var chrono []Variable
	for b := c.head; b != nil; b = b.prev {
		chrono = append(chrono, b.v)
	}

	out := make([]Variable, 0, len(chrono))
	pos := make(map[string]int, len(chrono))
	for i := len(chrono) - 1; i >= 0; i-- {
		v := chrono[i]
		if j, ok := pos[v.Name]; ok {
			out[j].Type = v.Type
			continue
		}
		pos[v.Name] = len(out)
		out = append(out, v)
	}
	return out
}

func (c Context) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Vars())
}
