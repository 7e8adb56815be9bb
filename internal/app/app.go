// Package app wires configuration into the long-lived parts shared by the
// CLI and the parse service: logger, schema, oracle stack and metrics.
package app

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"plainapi/internal/code"
	"plainapi/internal/config"
	"plainapi/internal/logging"
	"plainapi/internal/oracle"
	"plainapi/internal/schemasrc"
	"plainapi/internal/sql"
)

type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry

	// Schema is nil when no schema source is configured.
	Schema    *sql.Schema
	SchemaDDL string

	Oracle code.Oracle
	rules  *oracle.Rules
	store  oracle.Store
}

// New builds an App. Callers must Close it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if src := cfg.Schema.Source(); !src.Empty() {
		ddl, err := schemasrc.Load(ctx, src)
		if err != nil {
			return nil, err
		}
		schema, err := sql.ParseSchemaWithOptions(ddl, sql.SchemaOptions{IncludeIfNotExists: cfg.Schema.IncludeIfNotExists})
		if err != nil {
			return nil, errors.WithMessage(err, "parse schema")
		}
		for _, name := range schema.Skipped() {
			logger.Warn("skipped CREATE TABLE IF NOT EXISTS", "table", name)
		}
		a.Schema, a.SchemaDDL = schema, ddl
		logger.Info("schema loaded", "tables", len(schema.Tables()))
	}

	if err := a.buildOracle(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) buildOracle(ctx context.Context) error {
	cfg := a.Config.Oracle

	rs := oracle.DefaultRules()
	if cfg.Rules != "" {
		var err error
		if rs, err = oracle.LoadRules(cfg.Rules); err != nil {
			return err
		}
	}
	a.rules = oracle.NewRules(rs, a.Logger)
	if cfg.Watch && cfg.Rules != "" {
		if err := a.rules.Watch(cfg.Rules); err != nil {
			return err
		}
	}

	var o code.Oracle = a.rules
	switch cfg.Cache.Backend {
	case "freecache":
		a.store = oracle.NewFreeCacheStore(cfg.Cache.Size)
	case "redis":
		store, err := oracle.NewRedisStoreWithOptions(ctx, cfg.Cache.Redis)
		if err != nil {
			return err
		}
		a.store = store
	}
	if a.store != nil {
		o = oracle.NewCached(o, a.store, oracle.WithTTL(cfg.Cache.TTL), oracle.WithCacheLogger(a.Logger))
	}

	metrics, err := oracle.NewMetrics(a.Registry, "plainapi")
	if err != nil {
		return err
	}
	a.Oracle = oracle.NewObserved(o, oracle.ObservedOptions{
		Timeout: cfg.Timeout,
		Logger:  a.Logger,
		Metrics: metrics,
	})
	return nil
}

// Parser returns a block parser bound to the App's oracle, schema and
// logger. Extra options are applied last.
func (a *App) Parser(opts ...code.Option) *code.Parser {
	base := []code.Option{code.WithSchema(a.Schema, a.SchemaDDL), code.WithLogger(a.Logger)}
	return code.NewParser(a.Oracle, append(base, opts...)...)
}

func (a *App) Close() error {
	var errs []error
	if a.rules != nil {
		errs = append(errs, a.rules.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
