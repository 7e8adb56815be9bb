package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	"plainapi/internal/code"
)

// countingOracle delegates to the default rules and counts calls.
type countingOracle struct {
	*Rules
	calls map[string]int
	fail  bool
}

func newCountingOracle() *countingOracle {
	return &countingOracle{Rules: NewRules(nil, nil), calls: map[string]int{}}
}

func (o *countingOracle) ClassifyStatement(ctx context.Context, line string) (code.StatementKind, error) {
	o.calls["ClassifyStatement"]++
	if o.fail {
		return "", errors.New("boom")
	}
	return o.Rules.ClassifyStatement(ctx, line)
}

func (o *countingOracle) ClassifyElse(ctx context.Context, line string) (code.ElseClause, error) {
	o.calls["ClassifyElse"]++
	return o.Rules.ClassifyElse(ctx, line)
}

func (o *countingOracle) ExtractFields(ctx context.Context, kind code.StatementKind, line string, scope code.Scope) (code.Record, error) {
	o.calls["ExtractFields"]++
	return o.Rules.ExtractFields(ctx, kind, line, scope)
}

func (o *countingOracle) ResolveExpression(ctx context.Context, text string, scope code.Scope) (*code.NativeExpr, error) {
	o.calls["ResolveExpression"]++
	return o.Rules.ResolveExpression(ctx, text, scope)
}

func TestCached_RuleReloadChangesKeys(t *testing.T) {
	Convey("answers cached under old rules are not served after a reload", t, func() {
		ctx := context.Background()
		asOutput, err := ParseRules([]byte("statements:\n  - kind: output\n    pattern: '^ping$'\n"))
		So(err, ShouldBeNil)
		asException, err := ParseRules([]byte("statements:\n  - kind: exception\n    pattern: '^ping$'\n"))
		So(err, ShouldBeNil)
		So(asOutput.Version(), ShouldNotEqual, asException.Version())

		rules := NewRules(asOutput, nil)
		c := NewCached(rules, NewFreeCacheStore(1024*1024), WithTTL(time.Hour))

		k, err := c.ClassifyStatement(ctx, "ping")
		So(err, ShouldBeNil)
		So(k, ShouldEqual, code.KindOutput)

		rules.Replace(asException)
		k, err = c.ClassifyStatement(ctx, "ping")
		So(err, ShouldBeNil)
		So(k, ShouldEqual, code.KindException)

		rules.Replace(asOutput)
		k, err = c.ClassifyStatement(ctx, "ping")
		So(err, ShouldBeNil)
		So(k, ShouldEqual, code.KindOutput)
	})
}

func exerciseCache(store Store) {
	ctx := context.Background()
	next := newCountingOracle()
	c := NewCached(next, store, WithTTL(time.Minute))

	Convey("repeated calls hit the cache", func() {
		for i := 0; i < 3; i++ {
			k, err := c.ClassifyStatement(ctx, "return 1")
			So(err, ShouldBeNil)
			So(k, ShouldEqual, code.KindOutput)
		}
		So(next.calls["ClassifyStatement"], ShouldEqual, 1)
	})

	Convey("else clauses survive the round trip", func() {
		for i := 0; i < 2; i++ {
			clause, err := c.ClassifyElse(ctx, "otherwise, if x")
			So(err, ShouldBeNil)
			So(clause.Kind, ShouldEqual, code.ElseIf)
			So(clause.Condition, ShouldEqual, "x")
		}
		So(next.calls["ClassifyElse"], ShouldEqual, 1)
	})

	Convey("cached records still satisfy the record accessors", func() {
		var rec code.Record
		for i := 0; i < 2; i++ {
			var err error
			rec, err = c.ExtractFields(ctx, code.KindException, `raise 404 "gone"`, code.Scope{})
			So(err, ShouldBeNil)
		}
		So(next.calls["ExtractFields"], ShouldEqual, 1)
		n, err := rec.OptionalInt("code")
		So(err, ShouldBeNil)
		So(*n, ShouldEqual, 404)
		msg, err := rec.OptionalString("message")
		So(err, ShouldBeNil)
		So(*msg, ShouldEqual, "gone")
	})

	Convey("scope is part of the key", func() {
		a := code.Scope{Vars: code.NewContext(code.Variable{Name: "x", Type: code.VarInteger})}
		b := code.Scope{Vars: code.NewContext(code.Variable{Name: "x", Type: code.VarString})}

		e1, err := c.ResolveExpression(ctx, "x", a)
		So(err, ShouldBeNil)
		e2, err := c.ResolveExpression(ctx, "x", b)
		So(err, ShouldBeNil)
		e3, err := c.ResolveExpression(ctx, "x", a)
		So(err, ShouldBeNil)

		So(e1.ReturnType, ShouldEqual, code.VarInteger)
		So(e2.ReturnType, ShouldEqual, code.VarString)
		So(e3.ReturnType, ShouldEqual, code.VarInteger)
		So(next.calls["ResolveExpression"], ShouldEqual, 2)
	})

	Convey("errors are not cached", func() {
		next.fail = true
		_, err := c.ClassifyStatement(ctx, "return 2")
		So(err, ShouldNotBeNil)
		next.fail = false
		k, err := c.ClassifyStatement(ctx, "return 2")
		So(err, ShouldBeNil)
		So(k, ShouldEqual, code.KindOutput)
		So(next.calls["ClassifyStatement"], ShouldEqual, 2)
	})
}

func TestCached(t *testing.T) {
	Convey("Cached", t, func() {
		Convey("with freecache", func() {
			store := NewFreeCacheStore(1024 * 1024)
			defer store.Close()
			exerciseCache(store)
		})

		Convey("with redis", func() {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			store := NewRedisStore(client, "")
			defer store.Close()
			exerciseCache(store)

			Convey("entries are namespaced and expire", func() {
				_, err := NewCached(newCountingOracle(), store, WithTTL(time.Second)).
					ClassifyStatement(context.Background(), "return 3")
				So(err, ShouldBeNil)
				keys := mr.Keys()
				So(len(keys), ShouldBeGreaterThan, 0)
				for _, k := range keys {
					So(k, ShouldStartWith, "plainapi:oracle:")
				}
				mr.FastForward(2 * time.Second)
				So(len(mr.Keys()), ShouldEqual, 0)
			})
		})
	})
}

func TestStores(t *testing.T) {
	Convey("missing keys report ErrKeyNotFound", t, func() {
		ctx := context.Background()
		_, err := NewFreeCacheStore(1024*1024).Get(ctx, []byte("nope"))
		So(errors.Is(err, ErrKeyNotFound), ShouldBeTrue)

		mr := miniredis.RunT(t)
		_, err = NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "p:").Get(ctx, []byte("nope"))
		So(errors.Is(err, ErrKeyNotFound), ShouldBeTrue)
	})

	Convey("NewRedisStoreWithOptions pings the server", t, func() {
		mr := miniredis.RunT(t)
		store, err := NewRedisStoreWithOptions(context.Background(), &RedisStoreOptions{Addr: mr.Addr()})
		So(err, ShouldBeNil)
		So(store.Close(), ShouldBeNil)

		mr.Close()
		_, err = NewRedisStoreWithOptions(context.Background(), &RedisStoreOptions{Addr: mr.Addr()})
		So(err, ShouldNotBeNil)
	})
}
