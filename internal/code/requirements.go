package code

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	reqReturns = regexp.MustCompile(`(?i)[.;,]?\s*\b(?:and\s+)?(?:returns?|returning|outputs?)\b.*$`)
	reqPrefix  = regexp.MustCompile(`(?i)^(?:requires?|needs?|takes?|accepts?|expects?|inputs?|params?)\b\s*:?\s*`)
	reqSplit   = regexp.MustCompile(`(?i)\s*(?:,|\band\b)\s*`)
	reqArticle = regexp.MustCompile(`(?i)^(?:an?|the)\s+`)
	reqItem    = regexp.MustCompile(`^([A-Za-z_]\w*)\s*(?:\(\s*(\w+)\s*\)|:\s*(\w+))?$`)
)

// ParseRequirements reads an endpoint requirements line such as
//
//	requires auth, an id (integer) and email
//
// into the endpoint's inputs. Untyped names are strings; "auth" and
// "authentication" bind auth of type any. "nothing" and "none" declare no
// inputs, and a trailing "returns ..." clause is ignored.
func ParseRequirements(line string) ([]Variable, error) {
	s := strings.Trim(strings.TrimSpace(line), "*")
	s = reqReturns.ReplaceAllString(s, "")
	s = reqPrefix.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.TrimSpace(strings.TrimRight(s, ". "))

	switch strings.ToLower(s) {
	case "", "nothing", "none", "no inputs", "no input":
		return []Variable{}, nil
	}

	vars := []Variable{}
	seen := map[string]bool{}
	for _, item := range reqSplit.Split(s, -1) {
		item = reqArticle.ReplaceAllString(strings.TrimSpace(item), "")
		if item == "" {
			continue
		}
		v, err := parseRequirement(item)
		if err != nil {
			return nil, err
		}
		if seen[v.Name] {
			return nil, fmt.Errorf("requirement %q declared twice", v.Name)
		}
		seen[v.Name] = true
		vars = append(vars, v)
	}
	return vars, nil
}

func parseRequirement(item string) (Variable, error) {
	switch strings.ToLower(item) {
	case "auth", "authentication", "authorization":
		return Variable{Name: "auth", Type: VarAny}, nil
	}
	m := reqItem.FindStringSubmatch(item)
	if m == nil {
		return Variable{}, fmt.Errorf("requirement %q: expected a name with an optional (type)", item)
	}
	hint := m[2] + m[3]
	if hint == "" {
		return Variable{Name: m[1], Type: VarString}, nil
	}
	t, err := ParseVarType(hint)
	if err != nil {
		return Variable{}, fmt.Errorf("requirement %q: %w", item, err)
	}
	return Variable{Name: m[1], Type: t}, nil
}
