// Package observe provides application-wide observability primitives for
// Vocalis: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all Vocalis metrics.
const meterName = "github.com/MrWong99/vocalis"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ASRDuration tracks transcription latency per engine call.
	ASRDuration metric.Float64Histogram

	// TTSDuration tracks synthesis latency per engine call.
	TTSDuration metric.Float64Histogram

	// ModelLoadDuration tracks how long a model or voice load takes.
	// Loads are multi-second on the slow path, so this histogram uses
	// wider buckets than the per-call ones.
	ModelLoadDuration metric.Float64Histogram

	// --- Counters ---

	// ModelLoads counts load attempts. Use with attributes:
	//   attribute.String("capability", ...), attribute.String("engine", ...),
	//   attribute.String("language", ...), attribute.String("status", ...)
	ModelLoads metric.Int64Counter

	// EngineErrors counts failed transcription/synthesis calls. Use with attributes:
	//   attribute.String("capability", ...), attribute.String("engine", ...),
	//   attribute.String("language", ...)
	EngineErrors metric.Int64Counter

	// ArtifactsCreated counts audio files written to the artifact store.
	// Use with attribute: attribute.String("kind", ...)
	ArtifactsCreated metric.Int64Counter

	// ArtifactsSwept counts audio files removed by the startup sweep.
	ArtifactsSwept metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live practice sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// per-call speech latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// loadBuckets defines histogram bucket boundaries (in seconds) for model
// loads, which routinely take tens of seconds for large ASR models.
var loadBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ASRDuration, err = m.Float64Histogram("vocalis.asr.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("vocalis.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ModelLoadDuration, err = m.Float64Histogram("vocalis.model_load.duration",
		metric.WithDescription("Latency of speech model and voice loads."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(loadBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ModelLoads, err = m.Int64Counter("vocalis.model.loads",
		metric.WithDescription("Total model load attempts by capability, engine, language, and status."),
	); err != nil {
		return nil, err
	}
	if met.EngineErrors, err = m.Int64Counter("vocalis.engine.errors",
		metric.WithDescription("Total failed engine calls by capability, engine, and language."),
	); err != nil {
		return nil, err
	}
	if met.ArtifactsCreated, err = m.Int64Counter("vocalis.artifacts.created",
		metric.WithDescription("Total audio artifacts written by kind."),
	); err != nil {
		return nil, err
	}
	if met.ArtifactsSwept, err = m.Int64Counter("vocalis.artifacts.swept",
		metric.WithDescription("Total audio artifacts removed by the startup sweep."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("vocalis.active_sessions",
		metric.WithDescription("Number of live practice sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("vocalis.http.request.duration",
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

// RecordModelLoad records one load attempt: its duration histogram sample and
// the counter increment with the standard attribute set. status is "ok" or
// "error".
func (m *Metrics) RecordModelLoad(ctx context.Context, capability, engine, language, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("capability", capability),
		attribute.String("engine", engine),
		attribute.String("language", language),
		attribute.String("status", status),
	)
	m.ModelLoadDuration.Record(ctx, seconds, attrs)
	m.ModelLoads.Add(ctx, 1, attrs)
}

// RecordEngineError records a failed transcription or synthesis call.
func (m *Metrics) RecordEngineError(ctx context.Context, capability, engine, language string) {
	m.EngineErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("capability", capability),
			attribute.String("engine", engine),
			attribute.String("language", language),
		),
	)
}

// RecordArtifact records one artifact written to the store.
func (m *Metrics) RecordArtifact(ctx context.Context, kind string) {
	m.ArtifactsCreated.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordSweep records the result of a startup sweep.
func (m *Metrics) RecordSweep(ctx context.Context, removed int) {
	m.ArtifactsSwept.Add(ctx, int64(removed))
}
