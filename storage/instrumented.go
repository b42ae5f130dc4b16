package storage

import (
	"context"
	"time"

	"trafficslice/core"
	"trafficslice/metrics"
	"trafficslice/search"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// InstrumentedStore decorates a Store with a per-query deadline, a span and
// Prometheus metrics. Backend is the metric label, usually the driver name.
type InstrumentedStore struct {
	next    Store
	backend string
	tracer  trace.Tracer
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// InstrumentOption configures an InstrumentedStore
type InstrumentOption func(*InstrumentedStore)

// WithTracer sets the tracer spans are started on
func WithTracer(t trace.Tracer) InstrumentOption {
	return func(s *InstrumentedStore) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithQueryTimeout bounds each query. Zero disables the deadline.
func WithQueryTimeout(d time.Duration) InstrumentOption {
	return func(s *InstrumentedStore) {
		s.timeout = d
	}
}

// NewInstrumentedStore wraps next
func NewInstrumentedStore(next Store, backend string, logger *zap.SugaredLogger, opts ...InstrumentOption) *InstrumentedStore {
	if next == nil {
		panic("next store is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &InstrumentedStore{
		next:    next,
		backend: backend,
		tracer:  noop.NewTracerProvider().Tracer("trafficslice/storage"),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// observe runs fn inside a span and records its outcome
func (s *InstrumentedStore) observe(ctx context.Context, kind, query string, fn func(context.Context) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ctx, span := s.tracer.Start(ctx, "store."+kind,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", s.backend),
			attribute.String("db.statement", query),
		))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	metrics.QueriesExecuted.WithLabelValues(s.backend, kind).Inc()
	metrics.QueryDuration.WithLabelValues(s.backend, kind).Observe(elapsed.Seconds())

	if err != nil {
		metrics.QueryErrors.WithLabelValues(s.backend, kind).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warnw("Store query failed",
			"backend", s.backend,
			"kind", kind,
			"duration", elapsed,
			"error", err)
		return err
	}

	s.logger.Debugw("Store query executed",
		"backend", s.backend,
		"kind", kind,
		"duration", elapsed)
	return nil
}

// Dialect returns the wrapped store's dialect
func (s *InstrumentedStore) Dialect() search.Dialect {
	return s.next.Dialect()
}

// QueryAlerts implements Store
func (s *InstrumentedStore) QueryAlerts(ctx context.Context, query string, args []interface{}) ([]core.Alert, error) {
	var out []core.Alert
	err := s.observe(ctx, KindAlerts, query, func(ctx context.Context) error {
		var err error
		out, err = s.next.QueryAlerts(ctx, query, args)
		return err
	})
	return out, err
}

// QueryDataPoints implements Store
func (s *InstrumentedStore) QueryDataPoints(ctx context.Context, query string, args []interface{}) ([]core.AnalyticsDataPoint, error) {
	var out []core.AnalyticsDataPoint
	err := s.observe(ctx, KindDataPoints, query, func(ctx context.Context) error {
		var err error
		out, err = s.next.QueryDataPoints(ctx, query, args)
		return err
	})
	return out, err
}

// QueryCount implements Store
func (s *InstrumentedStore) QueryCount(ctx context.Context, query string, args []interface{}) (int64, error) {
	var out int64
	err := s.observe(ctx, KindCount, query, func(ctx context.Context) error {
		var err error
		out, err = s.next.QueryCount(ctx, query, args)
		return err
	})
	return out, err
}

// QueryStrings implements Store
func (s *InstrumentedStore) QueryStrings(ctx context.Context, query string, args []interface{}) ([]string, error) {
	var out []string
	err := s.observe(ctx, KindStrings, query, func(ctx context.Context) error {
		var err error
		out, err = s.next.QueryStrings(ctx, query, args)
		return err
	})
	return out, err
}

// Ping implements Store
func (s *InstrumentedStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

// Close closes the wrapped store
func (s *InstrumentedStore) Close() error {
	return s.next.Close()
}

// Unwrap returns the wrapped store
func (s *InstrumentedStore) Unwrap() Store {
	return s.next
}
