// Package observe provides application-wide observability primitives for
// MindMate: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all MindMate metrics.
const meterName = "github.com/mindmate-app/mindmate"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ModelDuration tracks model completion latency.
	ModelDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts model provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// AnalyzeResults counts normalizer outcomes. Use with attribute:
	//   attribute.String("outcome", ...) — one of "parsed", "salvaged", "fallback"
	AnalyzeResults metric.Int64Counter

	// FallbackReplies counts canned replies by matched rule. Use with attribute:
	//   attribute.String("rule", ...)
	FallbackReplies metric.Int64Counter

	// CrisisEvents counts crisis policy activations.
	CrisisEvents metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts model provider errors. Use with attribute:
	//   attribute.String("provider", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of open chat connections.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// remote model inference latencies.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ModelDuration, err = m.Float64Histogram("mindmate.model.duration",
		metric.WithDescription("Latency of model completions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("mindmate.provider.requests",
		metric.WithDescription("Total model provider API requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.AnalyzeResults, err = m.Int64Counter("mindmate.analyze.results",
		metric.WithDescription("Total response normalizations by outcome."),
	); err != nil {
		return nil, err
	}
	if met.FallbackReplies, err = m.Int64Counter("mindmate.fallback.replies",
		metric.WithDescription("Total canned fallback replies by matched rule."),
	); err != nil {
		return nil, err
	}
	if met.CrisisEvents, err = m.Int64Counter("mindmate.crisis.events",
		metric.WithDescription("Total crisis policy activations."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("mindmate.provider.errors",
		metric.WithDescription("Total model provider errors by provider."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("mindmate.active_sessions",
		metric.WithDescription("Number of open chat connections."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("mindmate.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// RecordAnalyzeResult is a convenience method that records a normalizer
// outcome counter increment.
func (m *Metrics) RecordAnalyzeResult(ctx context.Context, outcome string) {
	m.AnalyzeResults.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordFallbackReply is a convenience method that records a canned reply
// counter increment with the matched rule name.
func (m *Metrics) RecordFallbackReply(ctx context.Context, rule string) {
	m.FallbackReplies.Add(ctx, 1,
		metric.WithAttributes(attribute.String("rule", rule)),
	)
}

// RecordCrisisEvent is a convenience method that records a crisis policy
// activation.
func (m *Metrics) RecordCrisisEvent(ctx context.Context) {
	m.CrisisEvents.Add(ctx, 1)
}
