// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, tracing helpers, and HTTP middleware for the
// metrics endpoint.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported
// through the Prometheus bridge set up by [InitProvider], so they remain
// scrapeable via the standard /metrics endpoint. A package-level default
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

	"github.com/perchfield/sidequest/internal/stage"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/perchfield/sidequest"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// CaptureDuration tracks screenshot capture latency.
	CaptureDuration metric.Float64Histogram

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// RetrievalDuration tracks knowledge retrieval latency.
	RetrievalDuration metric.Float64Histogram

	// LLMDuration tracks LLM generation latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// PlaybackDuration tracks audio playback time.
	PlaybackDuration metric.Float64Histogram

	// TurnDuration tracks end-to-end voice turn latency, from key release
	// to the end of playback.
	TurnDuration metric.Float64Histogram

	// --- Counters ---

	// Turns counts completed voice turns. Use with attribute:
	//   attribute.String("status", "ok"|"failed"|"empty"|"cached")
	Turns metric.Int64Counter

	// CacheLookups counts response cache lookups. Use with attribute:
	//   attribute.String("result", "hit"|"miss")
	CacheLookups metric.Int64Counter

	// TrackerCycles counts game-state tracker refresh cycles. Use with
	// attribute: attribute.String("status", "ok"|"failed")
	TrackerCycles metric.Int64Counter

	// StageErrors counts pipeline stage failures. Use with attribute:
	//   attribute.String("stage", ...)
	StageErrors metric.Int64Counter

	// --- Gauges ---

	// TurnsInFlight tracks whether a voice turn is currently active
	// (0 or 1 under the single-turn policy).
	TurnsInFlight metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time on the
	// metrics endpoint. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	latency := func(name, desc string) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
	}

	// Histograms.
	if met.CaptureDuration, err = latency("sidequest.capture.duration",
		"Latency of screenshot capture."); err != nil {
		return nil, err
	}
	if met.STTDuration, err = latency("sidequest.stt.duration",
		"Latency of speech-to-text transcription."); err != nil {
		return nil, err
	}
	if met.RetrievalDuration, err = latency("sidequest.retrieval.duration",
		"Latency of knowledge retrieval."); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = latency("sidequest.llm.duration",
		"Latency of LLM generation."); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = latency("sidequest.tts.duration",
		"Latency of text-to-speech synthesis."); err != nil {
		return nil, err
	}
	if met.PlaybackDuration, err = latency("sidequest.playback.duration",
		"Duration of answer audio playback."); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = latency("sidequest.turn.duration",
		"End-to-end voice turn latency from release to end of playback."); err != nil {
		return nil, err
	}

	// Counters.
	if met.Turns, err = m.Int64Counter("sidequest.turns",
		metric.WithDescription("Total voice turns by outcome status."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("sidequest.cache.lookups",
		metric.WithDescription("Total response cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.TrackerCycles, err = m.Int64Counter("sidequest.tracker.cycles",
		metric.WithDescription("Total game-state tracker refresh cycles by status."),
	); err != nil {
		return nil, err
	}
	if met.StageErrors, err = m.Int64Counter("sidequest.stage.errors",
		metric.WithDescription("Total pipeline stage failures by stage."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.TurnsInFlight, err = m.Int64UpDownCounter("sidequest.turns_in_flight",
		metric.WithDescription("Number of voice turns currently in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("sidequest.http.request.duration",
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

// DurationFor returns the latency histogram matching a pipeline stage, or
// nil for an unknown stage.
func (m *Metrics) DurationFor(kind stage.Kind) metric.Float64Histogram {
	switch kind {
	case stage.KindCapture:
		return m.CaptureDuration
	case stage.KindTranscription:
		return m.STTDuration
	case stage.KindRetrieval:
		return m.RetrievalDuration
	case stage.KindGeneration:
		return m.LLMDuration
	case stage.KindSynthesis:
		return m.TTSDuration
	case stage.KindPlayback:
		return m.PlaybackDuration
	default:
		return nil
	}
}

// RecordStage records one stage execution: its latency and, when err is
// non-nil, a stage error increment.
func (m *Metrics) RecordStage(ctx context.Context, kind stage.Kind, seconds float64, err error) {
	if h := m.DurationFor(kind); h != nil {
		h.Record(ctx, seconds)
	}
	if err != nil {
		m.StageErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("stage", string(kind))),
		)
	}
}

// RecordTurn records a completed voice turn with its outcome status.
func (m *Metrics) RecordTurn(ctx context.Context, status string, seconds float64) {
	m.Turns.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	m.TurnDuration.Record(ctx, seconds)
}

// RecordCacheLookup records a response cache lookup result.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}

// RecordTrackerCycle records one tracker refresh cycle outcome.
func (m *Metrics) RecordTrackerCycle(ctx context.Context, ok bool) {
	status := "failed"
	if ok {
		status = "ok"
	}
	m.TrackerCycles.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
