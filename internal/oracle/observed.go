package oracle

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"plainapi/internal/code"
)

// Metrics are the Prometheus collectors of an Observed oracle.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "oracle_calls_total",
				Help:      "Total number of oracle calls",
			},
			[]string{"call", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "oracle_call_duration_seconds",
				Help:      "Duration of oracle calls in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"call"},
		),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "oracle_inflight_calls",
			Help:      "Number of oracle calls in progress",
		}),
	}
	for _, c := range []prometheus.Collector{m.calls, m.duration, m.inflight} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register oracle metrics")
		}
	}
	return m, nil
}

type ObservedOptions struct {
	// Timeout bounds each call; zero leaves the caller's deadline alone.
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics *Metrics
}

// Observed decorates an oracle with a per-call timeout, debug logging,
// metrics and a tracing span per call.
type Observed struct {
	next    code.Oracle
	timeout time.Duration
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

func NewObserved(next code.Oracle, options ObservedOptions) *Observed {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Observed{
		next:    next,
		timeout: options.Timeout,
		logger:  logger.WithGroup("oracle"),
		metrics: options.Metrics,
		tracer:  otel.Tracer("plainapi/oracle"),
	}
}

func (o *Observed) observe(ctx context.Context, call, input string, fn func(context.Context) error) error {
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, "oracle."+call,
		trace.WithAttributes(attribute.String("oracle.call", call)))
	defer span.End()

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	if o.metrics != nil {
		o.metrics.inflight.Inc()
		defer o.metrics.inflight.Dec()
	}

	err := fn(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if o.metrics != nil {
		o.metrics.calls.WithLabelValues(call, status).Inc()
		o.metrics.duration.WithLabelValues(call).Observe(elapsed.Seconds())
	}
	if err != nil {
		o.logger.Debug("oracle call failed", "call", call, "input", input, "elapsed", elapsed, "error", err)
		return errors.WithMessage(err, call)
	}
	o.logger.Debug("oracle call", "call", call, "input", input, "elapsed", elapsed)
	return nil
}

func (o *Observed) ClassifyStatement(ctx context.Context, line string) (code.StatementKind, error) {
	var kind code.StatementKind
	err := o.observe(ctx, "ClassifyStatement", line, func(ctx context.Context) error {
		var err error
		kind, err = o.next.ClassifyStatement(ctx, line)
		return err
	})
	return kind, err
}

func (o *Observed) ClassifyElse(ctx context.Context, line string) (code.ElseClause, error) {
	var clause code.ElseClause
	err := o.observe(ctx, "ClassifyElse", line, func(ctx context.Context) error {
		var err error
		clause, err = o.next.ClassifyElse(ctx, line)
		return err
	})
	return clause, err
}

func (o *Observed) ExtractFields(ctx context.Context, kind code.StatementKind, line string, scope code.Scope) (code.Record, error) {
	var rec code.Record
	err := o.observe(ctx, "ExtractFields", line, func(ctx context.Context) error {
		var err error
		rec, err = o.next.ExtractFields(ctx, kind, line, scope)
		return err
	})
	return rec, err
}

func (o *Observed) TranslateSQL(ctx context.Context, english string, scope code.Scope) (string, error) {
	var q string
	err := o.observe(ctx, "TranslateSQL", english, func(ctx context.Context) error {
		var err error
		q, err = o.next.TranslateSQL(ctx, english, scope)
		return err
	})
	return q, err
}

func (o *Observed) ResolveExpression(ctx context.Context, text string, scope code.Scope) (*code.NativeExpr, error) {
	var expr *code.NativeExpr
	err := o.observe(ctx, "ResolveExpression", text, func(ctx context.Context) error {
		var err error
		expr, err = o.next.ResolveExpression(ctx, text, scope)
		return err
	})
	return expr, err
}
