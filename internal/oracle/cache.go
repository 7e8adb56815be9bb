package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"plainapi/internal/code"
)

// Cached memoises every successful answer of the wrapped oracle. Failed
// calls are never cached. Keys cover the call name, its arguments, the
// scope and, when the wrapped oracle is Versioned, its version, so the same
// line under a different schema, variable set or rule set is asked again.
type Cached struct {
	next   code.Oracle
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

// Versioned is implemented by oracles whose answers change when they are
// reconfigured, such as *Rules after a reload.
type Versioned interface {
	Version() string
}

type CachedOption func(*Cached)

func WithTTL(ttl time.Duration) CachedOption {
	return func(c *Cached) { c.ttl = ttl }
}

func WithCacheLogger(logger *slog.Logger) CachedOption {
	return func(c *Cached) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewCached(next code.Oracle, store Store, opts ...CachedOption) *Cached {
	c := &Cached{next: next, store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type scopeKey struct {
	Vars   []code.Variable
	Schema string
}

func cacheKey(parts ...any) ([]byte, error) {
	b, err := msgpack.Marshal(parts)
	if err != nil {
		return nil, errors.Wrap(err, "encode cache key")
	}
	sum := sha256.Sum256(b)
	return []byte(hex.EncodeToString(sum[:])), nil
}

func scopeOf(s code.Scope) scopeKey {
	return scopeKey{Vars: s.Vars.Vars(), Schema: s.SchemaText}
}

// through answers from the store when possible and otherwise calls fn and
// stores its result.
func through[T any](ctx context.Context, c *Cached, call string, fn func() (T, error), parts ...any) (T, error) {
	version := ""
	if v, ok := c.next.(Versioned); ok {
		version = v.Version()
	}
	key, err := cacheKey(append([]any{call, version}, parts...)...)
	if err != nil {
		var zero T
		return zero, err
	}

	if b, err := c.store.Get(ctx, key); err == nil {
		var v T
		err := msgpack.Unmarshal(b, &v)
		if err == nil {
			c.logger.Debug("oracle cache hit", "call", call)
			return v, nil
		}
		c.logger.Warn("oracle cache entry unreadable", "call", call, "error", err)
	} else if !errors.Is(err, ErrKeyNotFound) {
		c.logger.Warn("oracle cache get failed", "call", call, "error", err)
	}

	v, err := fn()
	if err != nil {
		return v, err
	}
	b, err := msgpack.Marshal(v)
	if err != nil {
		c.logger.Warn("oracle cache encode failed", "call", call, "error", err)
		return v, nil
	}
	if err := c.store.Set(ctx, key, b, c.ttl); err != nil {
		c.logger.Warn("oracle cache set failed", "call", call, "error", err)
	}
	return v, nil
}

func (c *Cached) ClassifyStatement(ctx context.Context, line string) (code.StatementKind, error) {
	return through(ctx, c, "ClassifyStatement", func() (code.StatementKind, error) {
		return c.next.ClassifyStatement(ctx, line)
	}, line)
}

type elseEntry struct {
	Kind      int
	Condition string
}

func (c *Cached) ClassifyElse(ctx context.Context, line string) (code.ElseClause, error) {
	e, err := through(ctx, c, "ClassifyElse", func() (elseEntry, error) {
		clause, err := c.next.ClassifyElse(ctx, line)
		return elseEntry{Kind: int(clause.Kind), Condition: clause.Condition}, err
	}, line)
	if err != nil {
		return code.ElseClause{}, err
	}
	return code.ElseClause{Kind: code.ElseKind(e.Kind), Condition: e.Condition}, nil
}

func (c *Cached) ExtractFields(ctx context.Context, kind code.StatementKind, line string, scope code.Scope) (code.Record, error) {
	m, err := through(ctx, c, "ExtractFields", func() (map[string]any, error) {
		rec, err := c.next.ExtractFields(ctx, kind, line, scope)
		return map[string]any(rec), err
	}, string(kind), line, scopeOf(scope))
	if err != nil {
		return nil, err
	}
	return code.Record(m), nil
}

func (c *Cached) TranslateSQL(ctx context.Context, english string, scope code.Scope) (string, error) {
	return through(ctx, c, "TranslateSQL", func() (string, error) {
		return c.next.TranslateSQL(ctx, english, scope)
	}, english, scopeOf(scope))
}

func (c *Cached) ResolveExpression(ctx context.Context, text string, scope code.Scope) (*code.NativeExpr, error) {
	return through(ctx, c, "ResolveExpression", func() (*code.NativeExpr, error) {
		return c.next.ResolveExpression(ctx, text, scope)
	}, text, scopeOf(scope))
}
