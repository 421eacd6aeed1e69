package intent

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/chacha/internal/observe"
	"github.com/MrWong99/chacha/pkg/provider/llm/mock"
)

type stubClassifier struct {
	res   Resolved
	err   error
	calls int
}

func (s *stubClassifier) Classify(context.Context, string) (Resolved, error) {
	s.calls++
	return s.res, s.err
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		remote    *stubClassifier
		text      string
		want      Resolved
		wantCalls int
	}{
		{
			name:   "empty input",
			remote: &stubClassifier{},
			text:   "   ",
			want:   Resolved{Category: None, Source: SourceNone},
		},
		{
			name:      "decisive remote verdict",
			remote:    &stubClassifier{res: Resolved{Category: LockPC}},
			text:      "lock karo",
			want:      Resolved{Category: LockPC, Source: SourceClassifier},
			wantCalls: 1,
		},
		{
			name:      "remote failure falls back",
			remote:    &stubClassifier{err: errors.New("timeout")},
			text:      "YouTube par Arijit Singh ke sad songs chalao",
			want:      Resolved{Category: YouTube, Target: "arijit singh ke sad", Source: SourceLocal},
			wantCalls: 1,
		},
		{
			name:      "chat with media cue is re-resolved",
			remote:    &stubClassifier{res: Resolved{Category: Chat, Target: "music"}},
			text:      "chacha do you like music",
			want:      Resolved{Category: YouTube, Target: "chacha do you like", Source: SourceLocal},
			wantCalls: 1,
		},
		{
			name:      "chat without cue stays chat",
			remote:    &stubClassifier{res: Resolved{Category: Chat, Target: "how are you"}},
			text:      "chacha how are you",
			want:      Resolved{Category: Chat, Target: "how are you", Source: SourceClassifier},
			wantCalls: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := NewResolver(tc.remote)
			got := r.Resolve(context.Background(), tc.text)
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
			if tc.remote.calls != tc.wantCalls {
				t.Errorf("remote calls = %d, want %d", tc.remote.calls, tc.wantCalls)
			}
		})
	}
}

func TestResolver_NilRemoteUsesLocalRules(t *testing.T) {
	t.Parallel()
	got := NewResolver(nil).Resolve(context.Background(), "open website github dot com")
	want := Resolved{Category: Website, Target: "github.com", Source: SourceLocal}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestResolver_WithLLMClassifierOutage(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	remote := NewLLMClassifier(&mock.Provider{CompleteErr: errors.New("503")}, WithClassifierMetrics(m))
	r := NewResolver(remote, WithResolverMetrics(m))
	got := r.Resolve(context.Background(), "find weather in london")
	if got.Category != Google || got.Target != "weather london" {
		t.Fatalf("got %+v", got)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if n := counterValue(rm, "chacha.classifier.fallbacks", attribute.String("reason", "error")); n != 1 {
		t.Errorf("fallbacks{reason=error} = %d, want 1", n)
	}
	if n := counterValue(rm, "chacha.intents", attribute.String("source", "local")); n != 1 {
		t.Errorf("intents{source=local} = %d, want 1", n)
	}
}

func counterValue(rm metricdata.ResourceMetrics, name string, want attribute.KeyValue) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != name {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(want.Key); ok && v == want.Value {
					total += dp.Value
				}
			}
		}
	}
	return total
}
