// Package observe provides the assistant's observability primitives:
// OpenTelemetry metrics, tracing helpers, trace-aware structured logging, and
// HTTP middleware.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed for
// Prometheus scraping via [InitProvider]. A package-level [DefaultMetrics]
// instance is provided for convenience; tests should use [NewMetrics] with a
// custom [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/MrWong99/chacha"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// LLMDuration tracks completion latency. Attribute "kind": classify,
	// chat or describe.
	LLMDuration metric.Float64Histogram

	// DetectionDuration tracks one multi-scale detection pass.
	DetectionDuration metric.Float64Histogram

	// RouteDuration tracks the time from utterance to handler completion.
	RouteDuration metric.Float64Histogram

	// --- Counters ---

	// CommandsRouted counts routed utterances. Attributes "handler" and
	// "outcome".
	CommandsRouted metric.Int64Counter

	// Intents counts resolved intents. Attributes "category" and "source".
	Intents metric.Int64Counter

	// ClassifierFallbacks counts remote classifications that were replaced by
	// the local rules. Attribute "reason": error or chat.
	ClassifierFallbacks metric.Int64Counter

	// Announcements counts spoken object descriptions. Attribute "mode":
	// oneshot or continuous.
	Announcements metric.Int64Counter

	// Reminders counts reminder lifecycle events. Attribute "event":
	// scheduled, fired or cancelled.
	Reminders metric.Int64Counter

	// CaptureFailures counts failed camera reads.
	CaptureFailures metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Attributes
	// "breaker" and "state".
	BreakerTransitions metric.Int64Counter

	// --- Gauges ---

	// ContinuousInspection is 1 while continuous detect mode runs.
	ContinuousInspection metric.Int64UpDownCounter

	// PendingReminders tracks reminders waiting to fire.
	PendingReminders metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Attributes
	// "method" and "path".
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries in seconds.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&met.LLMDuration, "chacha.llm.duration", "Latency of LLM completions by kind."},
		{&met.DetectionDuration, "chacha.detection.duration", "Latency of a two-scale object detection pass."},
		{&met.RouteDuration, "chacha.route.duration", "Time from utterance to handler completion."},
	}
	for _, h := range histograms {
		if *h.dst, err = m.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		); err != nil {
			return nil, err
		}
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.CommandsRouted, "chacha.commands.routed", "Utterances routed by handler and outcome."},
		{&met.Intents, "chacha.intents", "Resolved intents by category and source."},
		{&met.ClassifierFallbacks, "chacha.classifier.fallbacks", "Remote classifications replaced by local rules."},
		{&met.Announcements, "chacha.perception.announcements", "Spoken object descriptions by mode."},
		{&met.Reminders, "chacha.reminders", "Reminder lifecycle events."},
		{&met.CaptureFailures, "chacha.capture.failures", "Failed camera frame reads."},
		{&met.BreakerTransitions, "chacha.breaker.transitions", "Circuit breaker state changes."},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	if met.ContinuousInspection, err = m.Int64UpDownCounter("chacha.perception.continuous_active",
		metric.WithDescription("1 while continuous detect mode is running."),
	); err != nil {
		return nil, err
	}
	if met.PendingReminders, err = m.Int64UpDownCounter("chacha.reminders.pending",
		metric.WithDescription("Reminders scheduled and not yet fired."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("chacha.http.request.duration",
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
// first call using [otel.GetMeterProvider].
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

// RecordRoute records one routed utterance.
func (m *Metrics) RecordRoute(ctx context.Context, handler, outcome string, seconds float64) {
	attrs := metric.WithAttributes(Attr("handler", handler), Attr("outcome", outcome))
	m.CommandsRouted.Add(ctx, 1, attrs)
	m.RouteDuration.Record(ctx, seconds, attrs)
}

// RecordIntent records a resolved intent.
func (m *Metrics) RecordIntent(ctx context.Context, category, source string) {
	m.Intents.Add(ctx, 1, metric.WithAttributes(Attr("category", category), Attr("source", source)))
}

// RecordClassifierFallback records a remote classification that was replaced
// by the local rules.
func (m *Metrics) RecordClassifierFallback(ctx context.Context, reason string) {
	m.ClassifierFallbacks.Add(ctx, 1, metric.WithAttributes(Attr("reason", reason)))
}

// RecordLLM records the latency of one completion.
func (m *Metrics) RecordLLM(ctx context.Context, kind string, seconds float64) {
	m.LLMDuration.Record(ctx, seconds, metric.WithAttributes(Attr("kind", kind)))
}

// RecordAnnouncement records one spoken object description.
func (m *Metrics) RecordAnnouncement(ctx context.Context, mode string) {
	m.Announcements.Add(ctx, 1, metric.WithAttributes(Attr("mode", mode)))
}

// RecordReminder records a reminder lifecycle event and adjusts the pending
// gauge accordingly.
func (m *Metrics) RecordReminder(ctx context.Context, event string) {
	m.Reminders.Add(ctx, 1, metric.WithAttributes(Attr("event", event)))
	switch event {
	case "scheduled":
		m.PendingReminders.Add(ctx, 1)
	case "fired", "cancelled":
		m.PendingReminders.Add(ctx, -1)
	}
}

// RecordBreakerTransition records a circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, state string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(Attr("breaker", breaker), Attr("state", state)))
}
