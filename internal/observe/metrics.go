// Package observe provides application-wide observability primitives for
// voxportal: OpenTelemetry metrics, tracing, trace-aware structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is set up by [InitProvider] so that metrics can be scraped
// via /metrics. A package-level default [Metrics] instance ([DefaultMetrics])
// is provided for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxportal metrics.
const meterName = "github.com/MrWong99/voxportal"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// CommandDuration tracks the time from a final command transcript to the
	// dispatched result. Use with attribute.String("kind", ...).
	CommandDuration metric.Float64Histogram

	// SpeechDuration tracks how long utterances were spoken. Use with
	// attribute.String("outcome", ...).
	SpeechDuration metric.Float64Histogram

	// --- Counters ---

	// Intents counts dispatched intents. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("outcome", ...)
	Intents metric.Int64Counter

	// RecognitionErrors counts recognition errors. Use with attributes:
	//   attribute.String("code", ...), attribute.String("mode", ...)
	RecognitionErrors metric.Int64Counter

	// RecognitionRestarts counts scheduled recognition restarts by mode.
	RecognitionRestarts metric.Int64Counter

	// BreakerTransitions counts recognition circuit breaker state changes.
	// Use with attribute.String("to", ...).
	BreakerTransitions metric.Int64Counter

	// SpeechUtterances counts finished utterances by outcome.
	SpeechUtterances metric.Int64Counter

	// ConfigReloads counts configuration hot reloads by status.
	ConfigReloads metric.Int64Counter

	// --- Gauges ---

	// ActivePages tracks the number of connected browser pages.
	ActivePages metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for command
// handling, which is dominated by page round trips.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// speechBuckets covers spoken feedback from a one-word confirmation to the
// full command guide.
var speechBuckets = []float64{
	0.5, 1, 2, 3, 5, 8, 13, 21, 34, 55,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CommandDuration, err = m.Float64Histogram("voxportal.command.duration",
		metric.WithDescription("Latency from final command transcript to dispatched intent."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SpeechDuration, err = m.Float64Histogram("voxportal.speech.duration",
		metric.WithDescription("Duration of spoken feedback utterances."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(speechBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Intents, err = m.Int64Counter("voxportal.intents",
		metric.WithDescription("Total dispatched voice intents by kind and outcome."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionErrors, err = m.Int64Counter("voxportal.recognition.errors",
		metric.WithDescription("Total speech recognition errors by code and mode."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionRestarts, err = m.Int64Counter("voxportal.recognition.restarts",
		metric.WithDescription("Total scheduled speech recognition restarts by mode."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("voxportal.recognition.breaker.transitions",
		metric.WithDescription("Total recognition circuit breaker state changes by target state."),
	); err != nil {
		return nil, err
	}
	if met.SpeechUtterances, err = m.Int64Counter("voxportal.speech.utterances",
		metric.WithDescription("Total finished utterances by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ConfigReloads, err = m.Int64Counter("voxportal.config.reloads",
		metric.WithDescription("Total configuration hot reloads by status."),
	); err != nil {
		return nil, err
	}

	if met.ActivePages, err = m.Int64UpDownCounter("voxportal.active_pages",
		metric.WithDescription("Number of connected browser pages."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("voxportal.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails, which does not happen with the global provider.
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordIntent records one dispatched intent and how long it took.
func (m *Metrics) RecordIntent(ctx context.Context, kind, outcome string, took time.Duration) {
	m.Intents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
	m.CommandDuration.Record(ctx, took.Seconds(), metric.WithAttributes(
		attribute.String("kind", kind),
	))
}

// RecordRecognitionError records a recognition error.
func (m *Metrics) RecordRecognitionError(ctx context.Context, code, mode string) {
	m.RecognitionErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", code),
		attribute.String("mode", mode),
	))
}

// RecordRecognitionRestart records a scheduled recognition restart.
func (m *Metrics) RecordRecognitionRestart(ctx context.Context, mode string) {
	m.RecognitionRestarts.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordBreakerTransition records a circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, to string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("to", to)))
}

// RecordUtterance records a finished utterance.
func (m *Metrics) RecordUtterance(ctx context.Context, outcome string, spoken time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.SpeechUtterances.Add(ctx, 1, attrs)
	m.SpeechDuration.Record(ctx, spoken.Seconds(), attrs)
}

// RecordConfigReload records a configuration reload attempt.
func (m *Metrics) RecordConfigReload(ctx context.Context, status string) {
	m.ConfigReloads.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
