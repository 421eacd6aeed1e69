package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/chacha/internal/config"
	"github.com/MrWong99/chacha/internal/observe"
	"github.com/MrWong99/chacha/internal/transport/wsbus"
	speechmock "github.com/MrWong99/chacha/pkg/speech/mock"
)

const reloadYAML = `
server:
  log_level: %s
contacts:
  %s: "+91 90000 00000"
`

func writeConfig(t *testing.T, path, level, contact string) {
	t.Helper()
	data := []byte(fmt.Sprintf(reloadYAML, level, contact))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func newTestApp(t *testing.T, cfg *config.Config, providers *Providers, opts ...Option) *App {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	a, err := New(context.Background(), cfg, providers, append([]Option{WithMetrics(m)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func TestApplyConfig_ReloadsContactsAndLogLevel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "chacha.yaml")
	writeConfig(t, path, "info", "Rahul")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var level slog.LevelVar
	a := newTestApp(t, cfg, &Providers{
		Speaker:  &speechmock.Speaker{},
		Listener: &speechmock.Listener{},
	}, WithLogLevel(&level), WithConfigWatch(path, time.Hour))

	if _, ok := a.Contacts().Resolve("Rahul"); !ok {
		t.Fatal("Rahul missing before reload")
	}

	writeConfig(t, path, "debug", "Priya")
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	if !a.watcher.Check() {
		t.Fatal("Check() = false, want the new config applied")
	}

	if _, ok := a.Contacts().Resolve("Priya"); !ok {
		t.Error("Priya missing after reload")
	}
	if got := a.Contacts().Len(); got != 1 {
		t.Errorf("contacts = %d, want 1", got)
	}
	if got := level.Level(); got != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", got)
	}
}

func TestServer_Routes(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Server.ListenAddr = "127.0.0.1:0"

	bus := wsbus.New()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})
	a := newTestApp(t, cfg, &Providers{Speaker: bus, Listener: bus}, WithMetricsHandler(metrics))
	if a.server == nil {
		t.Fatal("server not built for a listen address")
	}

	tests := []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/metrics", http.StatusOK},
		// A plain GET is not a websocket upgrade.
		{"/ws", http.StatusUpgradeRequired},
		{"/nope", http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			a.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			if rec.Code != tc.want {
				t.Errorf("GET %s = %d, want %d", tc.path, rec.Code, tc.want)
			}
			if rec.Header().Get(observe.CorrelationHeader) == "" {
				t.Errorf("GET %s: missing %s header", tc.path, observe.CorrelationHeader)
			}
		})
	}
}

func TestServer_DisabledWithoutAddress(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	a := newTestApp(t, cfg, &Providers{Speaker: &speechmock.Speaker{}, Listener: &speechmock.Listener{}})
	if a.server != nil {
		t.Error("server built without a listen address")
	}
}

func TestLevelOf(t *testing.T) {
	t.Parallel()

	tests := map[config.LogLevel]slog.Level{
		config.LogDebug: slog.LevelDebug,
		config.LogInfo:  slog.LevelInfo,
		config.LogWarn:  slog.LevelWarn,
		config.LogError: slog.LevelError,
		"":              slog.LevelInfo,
	}
	for in, want := range tests {
		if got := LevelOf(in); got != want {
			t.Errorf("LevelOf(%q) = %v, want %v", in, got, want)
		}
	}
}
