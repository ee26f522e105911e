package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records execution and governance metrics for operations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordOperation records an operation execution with duration and error status.
	RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error)

	// RecordRateLimited records a rejected request for an identity.
	RecordRateLimited(ctx context.Context, meta OpMeta)

	// RecordValidationRejected records a rejected path or command with the rejection reason.
	RecordValidationRejected(ctx context.Context, meta OpMeta, reason string)

	// RecordCacheAccess records a cache lookup outcome for an operation.
	RecordCacheAccess(ctx context.Context, op string, hit bool)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter         metric.Meter
	totalCount    metric.Int64Counter
	errorCount    metric.Int64Counter
	durationHist  metric.Float64Histogram
	rateLimited   metric.Int64Counter
	valRejected   metric.Int64Counter
	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"op.exec.total",
		metric.WithDescription("Total number of operation executions"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"op.exec.errors",
		metric.WithDescription("Total number of operation execution errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"op.exec.duration_ms",
		metric.WithDescription("Operation execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	rateLimited, err := meter.Int64Counter(
		"op.ratelimit.rejected",
		metric.WithDescription("Requests rejected by the rate limiter"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	valRejected, err := meter.Int64Counter(
		"op.validate.rejected",
		metric.WithDescription("Paths and commands rejected by validation"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"op.cache.hits",
		metric.WithDescription("Cache lookups that returned a live entry"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"op.cache.misses",
		metric.WithDescription("Cache lookups that missed or hit an expired entry"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		rateLimited:  rateLimited,
		valRejected:  valRejected,
		cacheHits:    cacheHits,
		cacheMisses:  cacheMisses,
	}, nil
}

func opAttrs(meta OpMeta) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("op.name", meta.Name),
	}
	if meta.Category != "" {
		attrs = append(attrs, attribute.String("op.category", meta.Category))
	}
	return attrs
}

// RecordOperation records metrics for an operation execution.
func (m *metricsImpl) RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(opAttrs(meta)...)

	m.totalCount.Add(ctx, 1, opt)

	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}

	durationMs := float64(duration.Milliseconds())
	m.durationHist.Record(ctx, durationMs, opt)
}

// RecordRateLimited records a request rejected by the rate limiter.
func (m *metricsImpl) RecordRateLimited(ctx context.Context, meta OpMeta) {
	m.rateLimited.Add(ctx, 1, metric.WithAttributes(opAttrs(meta)...))
}

// RecordValidationRejected records a validation rejection with its reason.
func (m *metricsImpl) RecordValidationRejected(ctx context.Context, meta OpMeta, reason string) {
	attrs := append(opAttrs(meta), attribute.String("reject.reason", reason))
	m.valRejected.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheAccess records a cache lookup outcome.
func (m *metricsImpl) RecordCacheAccess(ctx context.Context, op string, hit bool) {
	opt := metric.WithAttributes(attribute.String("op.name", op))
	if hit {
		m.cacheHits.Add(ctx, 1, opt)
	} else {
		m.cacheMisses.Add(ctx, 1, opt)
	}
}

// NoopMetrics returns a Metrics implementation that does nothing.
func NoopMetrics() Metrics {
	return &noopMetrics{}
}

type noopMetrics struct{}

func (m *noopMetrics) RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
}
func (m *noopMetrics) RecordRateLimited(ctx context.Context, meta OpMeta)                    {}
func (m *noopMetrics) RecordValidationRejected(ctx context.Context, meta OpMeta, r string)   {}
func (m *noopMetrics) RecordCacheAccess(ctx context.Context, op string, hit bool)            {}
