package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/chacha/internal/app"
	"github.com/MrWong99/chacha/internal/config"
	"github.com/MrWong99/chacha/internal/intent"
	"github.com/MrWong99/chacha/internal/observe"
	"github.com/MrWong99/chacha/internal/perception"
	"github.com/MrWong99/chacha/internal/router"
	"github.com/MrWong99/chacha/pkg/provider/llm"
	llmmock "github.com/MrWong99/chacha/pkg/provider/llm/mock"
	speechmock "github.com/MrWong99/chacha/pkg/speech/mock"
	sysmock "github.com/MrWong99/chacha/pkg/system/mock"
)

// testConfig returns a defaulted config with a short command pause.
func testConfig() *config.Config {
	cfg := &config.Config{
		Contacts: map[string]string{"Rahul": "+91 98765 43210"},
	}
	config.ApplyDefaults(cfg)
	cfg.Assistant.CommandPause = time.Millisecond
	cfg.Assistant.Greeting = "Namaste!"
	return cfg
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// classifierLLM answers classification prompts with verdict and every
// other prompt with reply.
func classifierLLM(verdict, reply string) *llmmock.Provider {
	return &llmmock.Provider{
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			if req.SystemPrompt == intent.SystemInstruction {
				return &llm.CompletionResponse{Content: verdict}, nil
			}
			return &llm.CompletionResponse{Content: reply}, nil
		},
	}
}

func TestNew_RequiresVoice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		providers *app.Providers
	}{
		{"nil providers", nil},
		{"no listener", &app.Providers{Speaker: &speechmock.Speaker{}}},
		{"no speaker", &app.Providers{Listener: &speechmock.Listener{}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := app.New(context.Background(), testConfig(), tc.providers); err == nil {
				t.Error("New() returned nil error")
			}
		})
	}
}

func TestRun_CommandLoop(t *testing.T) {
	t.Parallel()

	speaker := &speechmock.Speaker{}
	listener := &speechmock.Listener{Script: []string{"", "computer lock karo", "exit"}}
	actions := &sysmock.Actions{}
	model := classifierLLM(`{"intent":"lock_pc","contact_name":"None","message_text":""}`, "")

	a, err := app.New(context.Background(), testConfig(), &app.Providers{
		LLMs:     []app.NamedLLM{{Name: "mock", Provider: model}},
		Speaker:  speaker,
		Listener: listener,
		System:   actions,
	}, app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"Namaste!", router.MsgLocking, router.MsgGoodbye}
	if got := speaker.Said(); !slices.Equal(got, want) {
		t.Errorf("said = %q, want %q", got, want)
	}
	if got := actions.Recorded(); !slices.Equal(got, []string{"lock"}) {
		t.Errorf("actions = %q, want [lock]", got)
	}
	if listener.Calls != 3 {
		t.Errorf("Listen calls = %d, want 3", listener.Calls)
	}
}

func TestRun_EndOfInput(t *testing.T) {
	t.Parallel()

	speaker := &speechmock.Speaker{}
	a, err := app.New(context.Background(), testConfig(), &app.Providers{
		Speaker:  speaker,
		Listener: &speechmock.Listener{Done: io.EOF},
	}, app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := speaker.Said(); !slices.Equal(got, []string{"Namaste!"}) {
		t.Errorf("said = %q, want only the greeting", got)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	speaker := &speechmock.Speaker{OnSpeak: func(string) { cancel() }}

	a, err := app.New(context.Background(), testConfig(), &app.Providers{
		Speaker:  speaker,
		Listener: &speechmock.Listener{},
	}, app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRun_ListenErrorsAreRetried(t *testing.T) {
	t.Parallel()

	// A listener that fails once and then reports end of input.
	calls := 0
	listener := listenFunc(func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("microphone unplugged")
		}
		return "", io.EOF
	})

	cfg := testConfig()
	a, err := app.New(context.Background(), cfg, &app.Providers{
		Speaker:  &speechmock.Speaker{},
		Listener: listener,
	}, app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 2 {
		t.Errorf("Listen calls = %d, want 2", calls)
	}
}

type listenFunc func(ctx context.Context) (string, error)

func (f listenFunc) Listen(ctx context.Context) (string, error) { return f(ctx) }

func TestRun_FallbackSpeaker(t *testing.T) {
	t.Parallel()

	primary := &speechmock.Speaker{Err: errors.New("espeak-ng: not found")}
	fallback := &speechmock.Speaker{}
	a, err := app.New(context.Background(), testConfig(), &app.Providers{
		Speaker:         primary,
		FallbackSpeaker: fallback,
		Listener:        &speechmock.Listener{Done: io.EOF},
	}, app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := fallback.Last(); got != "Namaste!" {
		t.Errorf("fallback said %q, want the greeting", got)
	}
}

func TestRun_CameraWithoutDevice(t *testing.T) {
	t.Parallel()

	speaker := &speechmock.Speaker{}
	a, err := app.New(context.Background(), testConfig(), &app.Providers{
		Speaker:  speaker,
		Listener: &speechmock.Listener{Script: []string{"chacha ye kya hai"}, Done: io.EOF},
	}, app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"Namaste!", router.MsgCameraStarting, perception.MsgCameraNotReady}
	if got := speaker.Said(); !slices.Equal(got, want) {
		t.Errorf("said = %q, want %q", got, want)
	}
}

func TestRun_NavigateWithoutSystem(t *testing.T) {
	t.Parallel()

	speaker := &speechmock.Speaker{}
	a, err := app.New(context.Background(), testConfig(), &app.Providers{
		Speaker:  speaker,
		Listener: &speechmock.Listener{Script: []string{"github dot com kholo"}, Done: io.EOF},
	}, app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := speaker.Last(); got != router.MsgUnavailable {
		t.Errorf("last said = %q, want %q", got, router.MsgUnavailable)
	}
}

func TestHealth_Readiness(t *testing.T) {
	t.Parallel()

	failing := &llmmock.Provider{CompleteErr: errors.New("503 from upstream")}
	cfg := testConfig()
	cfg.Assistant.Breaker.MaxFailures = 1

	a, err := app.New(context.Background(), cfg, &app.Providers{
		LLMs:     []app.NamedLLM{{Name: "primary", Provider: failing}},
		Speaker:  &speechmock.Speaker{},
		Listener: &speechmock.Listener{Script: []string{"mujhe ek joke sunao"}, Done: io.EOF},
	}, app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	readyz := func() (int, map[string]any) {
		rec := httptest.NewRecorder()
		a.Health().Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return rec.Code, body
	}

	if code, body := readyz(); code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("before failures: %d %v, want 200 ok", code, body)
	}

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	code, body := readyz()
	if code != http.StatusOK || body["status"] != "degraded" {
		t.Errorf("after failures: %d %v, want 200 degraded", code, body)
	}
	checks, _ := body["checks"].(map[string]any)
	if llmCheck, _ := checks["llm"].(string); !strings.HasPrefix(llmCheck, "degraded: circuit open") {
		t.Errorf("llm check = %q, want an open circuit", llmCheck)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(), &app.Providers{
		Speaker:  &speechmock.Speaker{},
		Listener: &speechmock.Listener{},
	}, app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	if _, err := a.Reminders().Schedule(time.Second, "chai"); err == nil {
		t.Error("Schedule after Shutdown succeeded, want an error")
	}
}

func TestShutdown_DeadlineExceeded(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(), &app.Providers{
		Speaker:  &speechmock.Speaker{},
		Listener: &speechmock.Listener{},
	}, app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Shutdown(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Shutdown = %v, want context.Canceled", err)
	}
}
