// Package app wires all Chacha subsystems into a running assistant.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the command loop next to the admin HTTP server
// and the config watcher, and Shutdown tears everything down in order.
//
// For testing, inject mock implementations through [Providers] and the
// functional options. When a provider slot is nil the matching commands
// answer that the feature is unavailable.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/chacha/internal/config"
	"github.com/MrWong99/chacha/internal/contacts"
	"github.com/MrWong99/chacha/internal/health"
	"github.com/MrWong99/chacha/internal/intent"
	"github.com/MrWong99/chacha/internal/observe"
	"github.com/MrWong99/chacha/internal/perception"
	"github.com/MrWong99/chacha/internal/reminder"
	"github.com/MrWong99/chacha/internal/resilience"
	"github.com/MrWong99/chacha/internal/router"
	"github.com/MrWong99/chacha/pkg/media"
	"github.com/MrWong99/chacha/pkg/provider/llm"
	"github.com/MrWong99/chacha/pkg/speech"
	"github.com/MrWong99/chacha/pkg/system"
	"github.com/MrWong99/chacha/pkg/vision"
)

// describePrompt is the persona used for object descriptions.
const describePrompt = "You are Chacha, a friendly voice assistant. Answer in one short, simple sentence."

// listenRetryDelay is the pause after a listener error that is neither a
// timeout nor end of input.
const listenRetryDelay = time.Second

// NamedLLM is one language model backend and the name it is logged under.
type NamedLLM struct {
	Name     string
	Provider llm.Provider
}

// Providers holds one value per collaborator slot. Populated by main.go via
// the config registry.
type Providers struct {
	// LLMs are tried in order; the first is the primary. Empty disables the
	// remote classifier, chat replies and model-written descriptions.
	LLMs []NamedLLM

	// Speaker and Listener are required.
	Speaker  speech.Speaker
	Listener speech.Listener

	// FallbackSpeaker takes over while Speaker keeps failing. Optional.
	FallbackSpeaker speech.Speaker

	// Camera and Engine enable the camera commands. Both or neither.
	Camera vision.Camera
	Engine vision.Engine

	// Media enables the music player.
	Media media.Backend

	// System performs OS actions and opens web pages.
	System system.Actions
}

// App owns all subsystem lifetimes and runs the command loop.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics        *observe.Metrics
	metricsHandler http.Handler
	logLevel       *slog.LevelVar
	configPath     string
	watchInterval  time.Duration

	// Subsystems, initialised in New and torn down in Shutdown.
	llm       *resilience.LLMChain
	speaker   speech.Speaker
	book      *contacts.Book
	capture   *perception.CaptureLoop
	inspector *perception.Inspector
	player    *media.Player
	reminders *reminder.Scheduler
	router    *router.Router
	health    *health.Handler
	server    *http.Server
	watcher   *config.Watcher

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h at /metrics on the admin listener.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithLogLevel lets config reloads change the level of the running logger.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// WithConfigWatch reloads the file at path while running and applies
// changes that do not need a restart (contacts, log level).
func WithConfigWatch(path string, interval time.Duration) Option {
	return func(a *App) {
		a.configPath = path
		a.watchInterval = interval
	}
}

// New creates an App by wiring all subsystems together.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Speaker == nil || providers.Listener == nil {
		return nil, errors.New("app: a speaker and a listener are required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	a.initVoice()
	a.initLLM()
	a.initPerception()
	a.initMedia()
	a.reminders = reminder.NewScheduler(a.speaker, reminder.WithMetrics(a.metrics))
	a.closers = append(a.closers, a.reminders.Close)
	a.book = contacts.NewBook(cfg.Contacts)

	if err := a.initRouter(); err != nil {
		return nil, fmt.Errorf("app: init router: %w", err)
	}
	a.initHealth()
	a.initServer()

	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.applyConfig, config.WithInterval(a.watchInterval))
		if err != nil {
			return nil, fmt.Errorf("app: init config watcher: %w", err)
		}
		a.watcher = w
	}

	slog.InfoContext(ctx, "app initialised",
		"llm_backends", len(providers.LLMs),
		"camera", a.inspector.Ready(),
		"music", a.player != nil,
		"contacts", a.book.Len(),
	)
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) breakerConfig() resilience.BreakerConfig {
	return resilience.BreakerConfig{
		MaxFailures: a.cfg.Assistant.Breaker.MaxFailures,
		Cooldown:    a.cfg.Assistant.Breaker.Cooldown,
		OnStateChange: func(name string, from, to resilience.State) {
			slog.Warn("circuit breaker state change", "breaker", name, "from", from, "to", to)
			a.metrics.RecordBreakerTransition(context.Background(), name, to.String())
		},
	}
}

// initVoice puts the fallback speaker behind a breaker-guarded chain.
func (a *App) initVoice() {
	a.speaker = a.providers.Speaker
	if a.providers.FallbackSpeaker == nil {
		return
	}
	chain := resilience.NewSpeakerChain(a.cfg.Providers.Speech.Name, a.providers.Speaker, a.breakerConfig())
	chain.Add("fallback", a.providers.FallbackSpeaker)
	a.speaker = chain
}

func (a *App) initLLM() {
	if len(a.providers.LLMs) == 0 {
		return
	}
	primary := a.providers.LLMs[0]
	a.llm = resilience.NewLLMChain(primary.Name, primary.Provider, a.breakerConfig())
	for _, fb := range a.providers.LLMs[1:] {
		a.llm.Add(fb.Name, fb.Provider)
	}
}

func (a *App) initPerception() {
	p := a.cfg.Perception
	a.capture = perception.NewCaptureLoop(a.providers.Camera, perception.CaptureConfig{
		Freshness: p.Freshness,
		Metrics:   a.metrics,
	})

	// Interfaces stay nil when a slot is empty so the inspector answers
	// "camera not ready".
	var (
		frames    perception.FrameSource
		detector  perception.ObjectDetector
		describer perception.Describer
	)
	if cam := a.providers.Camera; cam != nil {
		frames = a.capture
	}
	if eng := a.providers.Engine; eng != nil {
		detector = perception.NewDetector(eng, a.metrics)
	}
	if a.llm != nil {
		describer = perception.NewLLMDescriber(a.llm, describePrompt, a.metrics)
	}

	a.inspector = perception.NewInspector(frames, detector, describer, a.speaker, perception.InspectorConfig{
		Cycle:         p.Cycle,
		MinConfidence: p.MinConfidence,
		Cooldown:      p.Cooldown,
		Metrics:       a.metrics,
	})
	a.closers = append(a.closers, func() error {
		a.inspector.Stop()
		a.capture.Stop()
		return nil
	})
	if cam := a.providers.Camera; cam != nil {
		a.closers = append(a.closers, cam.Close)
	}
	if eng := a.providers.Engine; eng != nil {
		a.closers = append(a.closers, eng.Close)
	}
}

func (a *App) initMedia() {
	if a.providers.Media == nil {
		return
	}
	exts := a.cfg.Music.Extensions
	if len(exts) == 0 {
		exts = media.DefaultExtensions
	}
	a.player = media.NewPlayer(a.providers.Media, a.cfg.Music.Dir, exts)
	a.closers = append(a.closers, a.player.Close)
}

func (a *App) initRouter() error {
	var remote intent.Classifier
	if a.llm != nil && !a.cfg.Assistant.DisableClassifier {
		remote = intent.NewLLMClassifier(a.llm,
			intent.WithClassifyTimeout(a.cfg.Assistant.ClassifyTimeout),
			intent.WithClassifierMetrics(a.metrics),
		)
	}

	deps := router.Deps{
		Resolver:  intent.NewResolver(remote, intent.WithResolverMetrics(a.metrics)),
		Speaker:   a.speaker,
		Contacts:  a.book,
		Vision:    a.inspector,
		Reminders: a.reminders,
		Metrics:   a.metrics,
	}
	if a.llm != nil {
		deps.Chat = a.llm
	}
	if sys := a.providers.System; sys != nil {
		deps.System = sys
		deps.Messenger = system.NewWhatsApp(sys)
	}
	if a.player != nil {
		deps.Media = a.player
	}

	r, err := router.New(deps)
	if err != nil {
		return err
	}
	a.router = r
	return nil
}

func (a *App) initHealth() {
	checkers := []health.Checker{{
		Name:     "assistant",
		Critical: true,
		Check: func(context.Context) error {
			if a.router == nil {
				return errors.New("router not initialised")
			}
			return nil
		},
	}}
	if a.inspector.Ready() {
		checkers = append(checkers, health.Camera(a.capture))
	}
	if a.llm != nil {
		checkers = append(checkers, health.Breakers("llm", a.llm.Breakers()...))
	}
	a.health = health.New(checkers...)
}

// initServer builds the admin listener. A Listener that is also an
// http.Handler (the websocket bus) is served at /ws.
func (a *App) initServer() {
	if a.cfg.Server.ListenAddr == "" {
		return
	}
	mux := http.NewServeMux()
	a.health.Register(mux)
	if a.metricsHandler != nil {
		mux.Handle("GET /metrics", a.metricsHandler)
	}
	if h, ok := a.providers.Listener.(http.Handler); ok {
		mux.Handle("/ws", h)
	}
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run greets the user and processes commands until an exit keyword, end of
// input, or ctx cancellation. The admin server and config watcher run
// alongside and stop with the loop. Run returns nil on a spoken exit or
// end of input and ctx's error on cancellation.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stopLoop := context.WithCancel(gctx)
	defer stopLoop()

	if a.server != nil {
		g.Go(func() error { return a.serve(loopCtx) })
	}
	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(loopCtx) })
	}
	g.Go(func() error {
		defer stopLoop()
		return a.commandLoop(loopCtx)
	})

	err := g.Wait()
	if err == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (a *App) serve(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		slog.Info("admin server listening", "addr", a.server.Addr)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		errc <- err
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("app: admin server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("admin server shutdown error", "err", err)
		}
		<-errc
		return nil
	}
}

// commandLoop is the listen, route, pause cycle.
func (a *App) commandLoop(ctx context.Context) error {
	a.say(ctx, a.cfg.Assistant.Greeting)
	slog.Info("assistant ready")

	for {
		if ctx.Err() != nil {
			return nil
		}
		text, err := a.listen(ctx)
		switch {
		case err == nil:
		case errors.Is(err, speech.ErrNoInput):
			continue
		case errors.Is(err, io.EOF):
			slog.Info("input closed, stopping")
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			slog.Warn("listen failed", "err", err)
			if !sleep(ctx, listenRetryDelay) {
				return nil
			}
			continue
		}

		slog.Debug("heard", "text", text)
		if a.router.Route(ctx, text) == router.OutcomeTerminate {
			slog.Info("exit requested")
			return nil
		}
		if !sleep(ctx, a.cfg.Assistant.CommandPause) {
			return nil
		}
	}
}

func (a *App) listen(ctx context.Context) (string, error) {
	if d := a.cfg.Assistant.ListenTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
		text, err := a.providers.Listener.Listen(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			return "", speech.ErrNoInput
		}
		return text, err
	}
	return a.providers.Listener.Listen(ctx)
}

func (a *App) say(ctx context.Context, text string) {
	if err := a.speaker.Speak(ctx, text); err != nil {
		slog.Warn("speak failed", "err", err)
	}
}

// applyConfig is the watcher callback.
func (a *App) applyConfig(old, updated *config.Config) {
	diff := config.Diff(old, updated)
	if diff.Empty() {
		return
	}
	if diff.ContactsChanged {
		a.book.Replace(updated.Contacts)
		slog.Info("contacts reloaded", "count", a.book.Len())
	}
	if diff.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(LevelOf(diff.NewLogLevel))
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}
	if len(diff.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "sections", diff.RestartRequired)
	}
}

// LevelOf maps a config log level onto slog.
func LevelOf(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Health returns the readiness handler.
func (a *App) Health() *health.Handler { return a.health }

// Router returns the command router.
func (a *App) Router() *router.Router { return a.router }

// Contacts returns the live address book.
func (a *App) Contacts() *contacts.Book { return a.book }

// Reminders returns the reminder scheduler.
func (a *App) Reminders() *reminder.Scheduler { return a.reminders }

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
