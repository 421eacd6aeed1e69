package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the value of the int64 sum data point whose attributes
// contain every key/value in want.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name string, want ...attribute.KeyValue) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is %T, want Sum[int64]", name, met.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		match := true
		for _, kv := range want {
			if v, ok := dp.Attributes.Value(kv.Key); !ok || v != kv.Value {
				match = false
				break
			}
		}
		if match {
			total += dp.Value
		}
	}
	return total
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"chacha.llm.duration", m.LLMDuration},
		{"chacha.detection.duration", m.DetectionDuration},
		{"chacha.route.duration", m.RouteDuration},
		{"chacha.http.request.duration", m.HTTPRequestDuration},
	}
	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 0.456)
	}

	rm := collect(t, reader)
	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestRecordHelpers(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRoute(ctx, "volume", "handled", 0.01)
	m.RecordRoute(ctx, "volume", "handled", 0.02)
	m.RecordIntent(ctx, "website", "local")
	m.RecordClassifierFallback(ctx, "chat")
	m.RecordAnnouncement(ctx, "continuous")
	m.RecordBreakerTransition(ctx, "classifier", "open")
	m.RecordLLM(ctx, "describe", 0.4)

	rm := collect(t, reader)

	tests := []struct {
		metric string
		attrs  []attribute.KeyValue
		want   int64
	}{
		{"chacha.commands.routed", []attribute.KeyValue{Attr("handler", "volume"), Attr("outcome", "handled")}, 2},
		{"chacha.intents", []attribute.KeyValue{Attr("category", "website"), Attr("source", "local")}, 1},
		{"chacha.classifier.fallbacks", []attribute.KeyValue{Attr("reason", "chat")}, 1},
		{"chacha.perception.announcements", []attribute.KeyValue{Attr("mode", "continuous")}, 1},
		{"chacha.breaker.transitions", []attribute.KeyValue{Attr("breaker", "classifier"), Attr("state", "open")}, 1},
	}
	for _, tt := range tests {
		if got := sumFor(t, rm, tt.metric, tt.attrs...); got != tt.want {
			t.Errorf("%s = %d, want %d", tt.metric, got, tt.want)
		}
	}
}

func TestRecordReminder_TracksPending(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordReminder(ctx, "scheduled")
	m.RecordReminder(ctx, "scheduled")
	m.RecordReminder(ctx, "fired")
	m.RecordReminder(ctx, "scheduled")
	m.RecordReminder(ctx, "cancelled")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "chacha.reminders.pending"); got != 1 {
		t.Errorf("pending = %d, want 1", got)
	}
	if got := sumFor(t, rm, "chacha.reminders", Attr("event", "scheduled")); got != 3 {
		t.Errorf("scheduled = %d, want 3", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different instances")
	}
}
