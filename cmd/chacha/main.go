// Command chacha is the entry point for the Chacha voice assistant.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	flag "github.com/spf13/pflag"

	"github.com/MrWong99/chacha/internal/app"
	"github.com/MrWong99/chacha/internal/config"
	"github.com/MrWong99/chacha/internal/observe"
	"github.com/MrWong99/chacha/internal/transport/wsbus"
	"github.com/MrWong99/chacha/pkg/media"
	"github.com/MrWong99/chacha/pkg/media/beep"
	"github.com/MrWong99/chacha/pkg/provider/llm"
	"github.com/MrWong99/chacha/pkg/provider/llm/anyllm"
	"github.com/MrWong99/chacha/pkg/provider/llm/openai"
	"github.com/MrWong99/chacha/pkg/speech"
	"github.com/MrWong99/chacha/pkg/speech/console"
	"github.com/MrWong99/chacha/pkg/speech/espeak"
	"github.com/MrWong99/chacha/pkg/system"
	gocvvision "github.com/MrWong99/chacha/pkg/vision/gocv"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.StringP("config", "c", "chacha.yaml", "path to the YAML configuration file")
	envFile := flag.StringP("env", "e", ".env", "dotenv file with API keys")
	logLevel := flag.StringP("log-level", "l", "", "override server.log_level (debug, info, warn, error)")
	watch := flag.Duration("watch", 5*time.Second, "config reload poll interval; 0 disables reloading")
	flag.Parse()

	// A missing .env is fine; keys may come from the real environment.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "chacha: load %s: %v\n", *envFile, err)
		return 1
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "chacha: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "chacha: %v\n", err)
		}
		return 1
	}
	if *logLevel != "" {
		cfg.Server.LogLevel = config.LogLevel(*logLevel)
		if !cfg.Server.LogLevel.IsValid() {
			fmt.Fprintf(os.Stderr, "chacha: invalid --log-level %q\n", *logLevel)
			return 1
		}
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(app.LevelOf(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))

	slog.Info("chacha starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	telemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	opts := []app.Option{
		app.WithMetricsHandler(telemetry.MetricsHandler),
		app.WithLogLevel(&level),
	}
	if *watch > 0 {
		opts = append(opts, app.WithConfigWatch(*configPath, *watch))
	}
	application, err := app.New(ctx, cfg, providers, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	code := 0
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		code = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return code
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyLLMBackends are served through any-llm-go. "openai" uses openai-go
// directly.
var anyLLMBackends = []string{"gemini", "anthropic", "ollama", "deepseek", "mistral", "groq"}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry, cfg *config.Config) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})
	for _, backend := range anyLLMBackends {
		reg.RegisterLLM(backend, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, opts...)
		})
	}

	// ── Speech ────────────────────────────────────────────────────────────────
	reg.RegisterSpeech("console", func(config.ProviderEntry) (config.Voice, error) {
		c := console.New(os.Stdin, os.Stdout)
		return config.Voice{Speaker: c, Listener: c}, nil
	})

	// espeak speaks aloud; commands are still typed on the console.
	reg.RegisterSpeech("espeak", func(entry config.ProviderEntry) (config.Voice, error) {
		var opts []espeak.Option
		if v := optString(entry.Options, "voice"); v != "" {
			opts = append(opts, espeak.WithVoice(v))
		}
		if rate := optInt(entry.Options, "rate"); rate > 0 {
			opts = append(opts, espeak.WithRate(rate))
		}
		if entry.BaseURL != "" {
			opts = append(opts, espeak.WithBinary(entry.BaseURL))
		}
		return config.Voice{
			Speaker:  espeak.New(opts...),
			Listener: console.New(os.Stdin, os.Stdout),
		}, nil
	})

	reg.RegisterSpeech("websocket", func(entry config.ProviderEntry) (config.Voice, error) {
		var opts []wsbus.Option
		if origins := optStrings(entry.Options, "origins"); len(origins) > 0 {
			opts = append(opts, wsbus.WithOriginPatterns(origins...))
		}
		bus := wsbus.New(opts...)
		return config.Voice{Speaker: bus, Listener: bus}, nil
	})

	// ── Vision ────────────────────────────────────────────────────────────────
	reg.RegisterVision("gocv", func(entry config.ProviderEntry) (config.Sight, error) {
		var device any = optInt(entry.Options, "device")
		if s := optString(entry.Options, "device"); s != "" {
			device = s
		}
		cam, err := gocvvision.OpenCamera(device, optInt(entry.Options, "width"), optInt(entry.Options, "height"))
		if err != nil {
			return config.Sight{}, err
		}
		engine, err := gocvvision.LoadEngine(entry.Model, optStrings(entry.Options, "labels"))
		if err != nil {
			cam.Close()
			return config.Sight{}, err
		}
		return config.Sight{Camera: cam, Engine: engine}, nil
	})

	// ── Media ─────────────────────────────────────────────────────────────────
	reg.RegisterMedia("beep", func(config.ProviderEntry) (media.Backend, error) {
		return beep.New(cfg.Music.Volume)
	})
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{
		System: system.NewExec(
			system.WithScreenshotDir(cfg.System.ScreenshotDir),
			system.WithApps(cfg.System.Apps),
		),
	}

	llmEntries := cfg.Providers.LLMFallbacks
	if cfg.Providers.LLM.Name != "" {
		llmEntries = append([]config.ProviderEntry{cfg.Providers.LLM}, llmEntries...)
	}
	for _, entry := range llmEntries {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", entry.Name, err)
		}
		ps.LLMs = append(ps.LLMs, app.NamedLLM{Name: entry.Name, Provider: p})
		slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", entry.Model)
	}

	voice, err := reg.CreateSpeech(cfg.Providers.Speech)
	if err != nil {
		return nil, fmt.Errorf("create speech provider %q: %w", cfg.Providers.Speech.Name, err)
	}
	ps.Speaker, ps.Listener = voice.Speaker, voice.Listener
	// A console listener doubles as a printed fallback voice.
	if s, ok := voice.Listener.(speech.Speaker); ok && any(voice.Listener) != any(voice.Speaker) {
		ps.FallbackSpeaker = s
	}
	slog.Info("provider created", "kind", "speech", "name", cfg.Providers.Speech.Name)

	if name := cfg.Providers.Vision.Name; name != "" {
		sight, err := reg.CreateVision(cfg.Providers.Vision)
		if err != nil {
			// The assistant still runs; camera commands answer "not ready".
			slog.Warn("vision unavailable", "name", name, "err", err)
		} else {
			ps.Camera, ps.Engine = sight.Camera, sight.Engine
			slog.Info("provider created", "kind", "vision", "name", name, "model", cfg.Providers.Vision.Model)
		}
	}

	if name := cfg.Providers.Media.Name; name != "" {
		backend, err := reg.CreateMedia(cfg.Providers.Media)
		if err != nil {
			slog.Warn("music unavailable", "name", name, "err", err)
		} else {
			ps.Media = backend
			slog.Info("provider created", "kind", "media", "name", name, "dir", cfg.Music.Dir)
		}
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Chacha startup summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	fmt.Printf("║  %-12s    : %-19d ║\n", "Fallbacks", len(cfg.Providers.LLMFallbacks))
	printProvider("Speech", cfg.Providers.Speech.Name, "")
	printProvider("Vision", cfg.Providers.Vision.Name, "")
	printProvider("Music", cfg.Providers.Media.Name, "")
	fmt.Printf("║  %-12s    : %-19d ║\n", "Contacts", len(cfg.Contacts))
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  %-12s    : %-19s ║\n", "Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "..."
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer value from a provider Options map.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// optStrings extracts a list of strings from a provider Options map.
func optStrings(opts map[string]any, key string) []string {
	raw, ok := opts[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
