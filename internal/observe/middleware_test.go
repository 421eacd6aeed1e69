package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupMiddleware(t *testing.T, status int) (http.Handler, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()
	m, reader := newTestMetrics(t)

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })

	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-CID", CorrelationID(r.Context()))
		w.WriteHeader(status)
	}))
	return h, reader, exp
}

func TestMiddleware_CorrelationHeaderMatchesContext(t *testing.T) {
	h, _, _ := setupMiddleware(t, http.StatusOK)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	seen := rec.Header().Get("X-Seen-CID")
	if len(seen) != 32 {
		t.Fatalf("handler correlation ID = %q, want 32 hex chars", seen)
	}
	if got := rec.Header().Get(CorrelationHeader); got != seen {
		t.Errorf("%s = %q, want %q", CorrelationHeader, got, seen)
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	h, _, _ := setupMiddleware(t, http.StatusOK)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	const want = "4bf92f3577b34da6a3ce929d0e0e4736"
	if got := rec.Header().Get(CorrelationHeader); got != want {
		t.Errorf("correlation ID = %q, want %q", got, want)
	}
}

func TestMiddleware_SpanAndDuration(t *testing.T) {
	h, reader, exp := setupMiddleware(t, http.StatusServiceUnavailable)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "GET /readyz" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	var statusAttr int64
	for _, a := range spans[0].Attributes {
		if a.Key == "http.response.status_code" {
			statusAttr = a.Value.AsInt64()
		}
	}
	if statusAttr != http.StatusServiceUnavailable {
		t.Errorf("span status attribute = %d, want 503", statusAttr)
	}

	rm := collect(t, reader)
	met := findMetric(rm, "chacha.http.request.duration")
	if met == nil {
		t.Fatal("chacha.http.request.duration not recorded")
	}
	if got := histCount(t, met, attribute.String("path", "/readyz")); got != 1 {
		t.Errorf("histogram count for /readyz = %d, want 1", got)
	}
}

func histCount(t *testing.T, met *metricdata.Metrics, want attribute.KeyValue) uint64 {
	t.Helper()
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("metric %q is %T, want Histogram[float64]", met.Name, met.Data)
	}
	var n uint64
	for _, dp := range hist.DataPoints {
		if v, ok := dp.Attributes.Value(want.Key); ok && v == want.Value {
			n += dp.Count
		}
	}
	return n
}
