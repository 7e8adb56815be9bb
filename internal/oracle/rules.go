package oracle

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"plainapi/internal/code"
)

//go:embed rules.yaml
var defaultRules []byte

// ErrNoMatch is returned when no rule covers a line.
var ErrNoMatch = errors.New("no rule matches")

// StatementRule maps a line pattern to a statement kind. Named groups become
// the extracted fields.
type StatementRule struct {
	Kind    string `yaml:"kind" validate:"required,oneof=exception assignment output function_call"`
	Pattern string `yaml:"pattern" validate:"required"`
	re      *regexp.Regexp
}

type ElseRule struct {
	Kind    string `yaml:"kind" validate:"required,oneof=else else-if"`
	Pattern string `yaml:"pattern" validate:"required"`
	re      *regexp.Regexp
}

// SQLRule rewrites an English request into SQL. Template uses ${group}
// references to the named groups of Pattern.
type SQLRule struct {
	Pattern  string `yaml:"pattern" validate:"required"`
	Template string `yaml:"template" validate:"required"`
	re       *regexp.Regexp
}

// ExpressionRule types a value description. Type "var" resolves the
// expanded Code as a variable name in scope.
type ExpressionRule struct {
	Pattern string `yaml:"pattern" validate:"required"`
	Type    string `yaml:"type" validate:"required,oneof=string integer boolean rows any var"`
	Code    string `yaml:"code"`
	re      *regexp.Regexp
}

// RuleSet is a validated, compiled set of rules.
type RuleSet struct {
	Statements  []StatementRule  `yaml:"statements" validate:"required,min=1,dive"`
	Else        []ElseRule       `yaml:"else" validate:"dive"`
	SQL         []SQLRule        `yaml:"sql" validate:"dive"`
	Expressions []ExpressionRule `yaml:"expressions" validate:"dive"`

	version string
}

// Version identifies the rule set's content: the sha256 of the source it
// was parsed from.
func (rs *RuleSet) Version() string {
	return rs.version
}

var validate = validator.New()

// ParseRules decodes, validates and compiles a YAML rule set.
func ParseRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, errors.Wrap(err, "decode rules")
	}
	if err := validate.Struct(&rs); err != nil {
		return nil, errors.Wrap(err, "validate rules")
	}

	compile := func(section string, i int, pattern string) (*regexp.Regexp, error) {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "%s[%d]", section, i)
		}
		return re, nil
	}
	var err error
	for i := range rs.Statements {
		if rs.Statements[i].re, err = compile("statements", i, rs.Statements[i].Pattern); err != nil {
			return nil, err
		}
	}
	for i := range rs.Else {
		if rs.Else[i].re, err = compile("else", i, rs.Else[i].Pattern); err != nil {
			return nil, err
		}
	}
	for i := range rs.SQL {
		if rs.SQL[i].re, err = compile("sql", i, rs.SQL[i].Pattern); err != nil {
			return nil, err
		}
	}
	for i := range rs.Expressions {
		if rs.Expressions[i].re, err = compile("expressions", i, rs.Expressions[i].Pattern); err != nil {
			return nil, err
		}
	}
	sum := sha256.Sum256(data)
	rs.version = hex.EncodeToString(sum[:])
	return &rs, nil
}

// LoadRules reads a rule file from disk.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read rules %s", path)
	}
	rs, err := ParseRules(data)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return rs, nil
}

// DefaultRules returns the built-in rule set.
func DefaultRules() *RuleSet {
	rs, err := ParseRules(defaultRules)
	if err != nil {
		panic(err)
	}
	return rs
}

// Rules is a deterministic code.Oracle driven by regular expressions. The
// rule set can be swapped at runtime; each call sees one consistent set.
type Rules struct {
	set    atomic.Pointer[RuleSet]
	logger *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

func NewRules(rs *RuleSet, logger *slog.Logger) *Rules {
	if rs == nil {
		rs = DefaultRules()
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Rules{logger: logger}
	r.set.Store(rs)
	return r
}

// Version reports the active rule set's version. Cached keys on it so that
// a reload never serves answers of the old rules.
func (r *Rules) Version() string {
	return r.set.Load().Version()
}

// Replace installs a new rule set.
func (r *Rules) Replace(rs *RuleSet) {
	r.set.Store(rs)
}

// Watch reloads the rule file at path whenever it is written. A file that
// fails to load is logged and the previous rules stay active.
func (r *Rules) Watch(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher != nil {
		return errors.New("rules are already being watched")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "invalid rules path")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create rules watcher")
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return errors.Wrap(err, "watch rules directory")
	}
	r.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				rs, err := LoadRules(abs)
				if err != nil {
					r.logger.Warn("rules reload failed", "path", abs, "error", err)
					continue
				}
				r.Replace(rs)
				r.logger.Info("rules reloaded", "path", abs)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				r.logger.Warn("rules watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (r *Rules) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher == nil {
		return nil
	}
	err := r.watcher.Close()
	r.watcher = nil
	return err
}

func (r *Rules) ClassifyStatement(_ context.Context, line string) (code.StatementKind, error) {
	for _, rule := range r.set.Load().Statements {
		if rule.re.MatchString(line) {
			return code.StatementKind(rule.Kind), nil
		}
	}
	return "", errors.Wrapf(ErrNoMatch, "classify %q", line)
}

func (r *Rules) ClassifyElse(_ context.Context, line string) (code.ElseClause, error) {
	for _, rule := range r.set.Load().Else {
		m := rule.re.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		if rule.Kind == "else" {
			return code.ElseClause{Kind: code.Else}, nil
		}
		cond, _ := group(rule.re, line, m, "condition")
		return code.ElseClause{Kind: code.ElseIf, Condition: strings.TrimSpace(cond)}, nil
	}
	return code.ElseClause{Kind: code.ElseNone}, nil
}

func (r *Rules) ExtractFields(_ context.Context, kind code.StatementKind, line string, _ code.Scope) (code.Record, error) {
	for _, rule := range r.set.Load().Statements {
		if rule.Kind != string(kind) {
			continue
		}
		m := rule.re.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		rec := code.Record{}
		for _, name := range rule.re.SubexpNames() {
			if name == "" {
				continue
			}
			v, ok := group(rule.re, line, m, name)
			if !ok || v == "" {
				rec[name] = nil
				continue
			}
			rec[name] = strings.TrimSpace(v)
		}
		if kind == code.KindException {
			return exceptionRecord(rec)
		}
		return rec, nil
	}
	return nil, errors.Wrapf(ErrNoMatch, "extract %s from %q", kind, line)
}

// exceptionRecord always carries code and message, with code as an integer.
func exceptionRecord(rec code.Record) (code.Record, error) {
	out := code.Record{"code": nil, "message": rec["message"]}
	if s, ok := rec["code"].(string); ok {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, errors.Wrapf(err, "exception code %q", s)
		}
		out["code"] = n
	}
	return out, nil
}

func (r *Rules) TranslateSQL(_ context.Context, english string, _ code.Scope) (string, error) {
	english = strings.TrimSpace(english)
	if looksLikeSQL(english) {
		return english, nil
	}
	for _, rule := range r.set.Load().SQL {
		m := rule.re.FindStringSubmatchIndex(english)
		if m == nil {
			continue
		}
		return string(rule.re.ExpandString(nil, rule.Template, english, m)), nil
	}
	return "", errors.Wrapf(ErrNoMatch, "translate %q", english)
}

func (r *Rules) ResolveExpression(_ context.Context, text string, scope code.Scope) (*code.NativeExpr, error) {
	text = strings.TrimSpace(text)
	for _, rule := range r.set.Load().Expressions {
		m := rule.re.FindStringSubmatchIndex(text)
		if m == nil {
			continue
		}
		expr := text
		if rule.Code != "" {
			expr = string(rule.re.ExpandString(nil, rule.Code, text, m))
		}
		if rule.Type != "var" {
			return &code.NativeExpr{Original: text, Code: expr, ReturnType: code.VarType(rule.Type)}, nil
		}
		typ, ok := scope.Vars.Lookup(expr)
		if !ok {
			return nil, errors.Errorf("unknown variable %q", expr)
		}
		return &code.NativeExpr{Original: text, Code: expr, ReturnType: typ}, nil
	}
	return nil, errors.Wrapf(ErrNoMatch, "resolve %q", text)
}

func looksLikeSQL(s string) bool {
	first, _, _ := strings.Cut(s, " ")
	switch strings.ToUpper(first) {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return true
	}
	return false
}

// group returns the text of a named group and whether it took part in the
// match.
func group(re *regexp.Regexp, s string, m []int, name string) (string, bool) {
	i := re.SubexpIndex(name)
	if i < 0 || m[2*i] < 0 {
		return "", false
	}
	return s[m[2*i]:m[2*i+1]], true
}
