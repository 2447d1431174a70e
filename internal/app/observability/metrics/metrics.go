package metrics

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	UpstreamRequestsTotal   metric.Int64Counter
	UpstreamRequestDuration metric.Float64Histogram
	TokenRefreshTotal       metric.Int64Counter
	AuthRequestsTotal       metric.Int64Counter
	CartOperationsTotal     metric.Int64Counter
	ActiveSessionsGauge     metric.Int64Gauge
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments exactly once,
// using the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("feastly-web")
		var err error
		m := &AppMetrics{}

		m.UpstreamRequestsTotal, err = meter.Int64Counter(
			"upstream_requests_total",
			metric.WithDescription("Total number of upstream API requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create upstream_requests_total: %v", err)
		}

		m.UpstreamRequestDuration, err = meter.Float64Histogram(
			"upstream_request_duration_seconds",
			metric.WithDescription("Duration of upstream API requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create upstream_request_duration_seconds: %v", err)
		}

		m.TokenRefreshTotal, err = meter.Int64Counter(
			"token_refresh_total",
			metric.WithDescription("Total number of access-token refresh attempts"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create token_refresh_total: %v", err)
		}

		m.AuthRequestsTotal, err = meter.Int64Counter(
			"auth_requests_total",
			metric.WithDescription("Total number of authentication form submissions"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_requests_total: %v", err)
		}

		m.CartOperationsTotal, err = meter.Int64Counter(
			"cart_operations_total",
			metric.WithDescription("Total number of cart mutations"),
			metric.WithUnit("{operation}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create cart_operations_total: %v", err)
		}

		m.ActiveSessionsGauge, err = meter.Int64Gauge(
			"active_sessions_current",
			metric.WithDescription("Current number of sessions with a cached identity"),
			metric.WithUnit("{session}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create active_sessions_current: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the global metrics instance, or nil when InitAppMetrics has not
// run (tests).
func Get() *AppMetrics {
	return appMetrics
}

// RecordUpstreamRequest records one completed upstream call.
func RecordUpstreamRequest(ctx context.Context, method, path string, status int, elapsed time.Duration) {
	m := Get()
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)
	m.UpstreamRequestsTotal.Add(ctx, 1, attrs)
	m.UpstreamRequestDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordTokenRefresh records one refresh attempt.
func RecordTokenRefresh(ctx context.Context, ok bool) {
	m := Get()
	if m == nil {
		return
	}
	m.TokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("ok", ok)))
}

// RecordAuthRequest records one auth form submission by operation name.
func RecordAuthRequest(ctx context.Context, operation string, ok bool) {
	m := Get()
	if m == nil {
		return
	}
	m.AuthRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("ok", ok),
	))
}

// RecordCartOperation records one cart mutation by operation name.
func RecordCartOperation(ctx context.Context, operation string) {
	m := Get()
	if m == nil {
		return
	}
	m.CartOperationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// SetActiveSessions records the current number of hydrated sessions.
func SetActiveSessions(ctx context.Context, count int64) {
	m := Get()
	if m == nil {
		return
	}
	m.ActiveSessionsGauge.Record(ctx, count)
}
