package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":    {"openai", "gemini", "anthropic", "ollama", "deepseek", "mistral", "groq"},
	"speech": {"console", "espeak", "websocket"},
	"vision": {"gocv"},
	"media":  {"beep"},
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultGreeting        = "नमस्ते, मैं चाचा हूँ! बताइए, आपकी क्या मदद कर सकता हूँ?"
	DefaultListenTimeout   = 10 * time.Second
	DefaultCommandPause    = 200 * time.Millisecond
	DefaultClassifyTimeout = 8 * time.Second
	DefaultMusicVolume     = 0.7
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${VAR} references
// against the environment, applies defaults and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return decode(raw)
}

func decode(raw []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(raw)))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Providers.Speech.Name == "" {
		cfg.Providers.Speech.Name = "console"
	}

	a := &cfg.Assistant
	if a.Greeting == "" {
		a.Greeting = DefaultGreeting
	}
	if a.ListenTimeout <= 0 {
		a.ListenTimeout = DefaultListenTimeout
	}
	if a.CommandPause <= 0 {
		a.CommandPause = DefaultCommandPause
	}
	if a.ClassifyTimeout <= 0 {
		a.ClassifyTimeout = DefaultClassifyTimeout
	}
	if a.Breaker.MaxFailures <= 0 {
		a.Breaker.MaxFailures = 3
	}
	if a.Breaker.Cooldown <= 0 {
		a.Breaker.Cooldown = 20 * time.Second
	}

	p := &cfg.Perception
	if p.Freshness <= 0 {
		p.Freshness = 2 * time.Second
	}
	if p.Cycle <= 0 {
		p.Cycle = 2 * time.Second
	}
	if p.MinConfidence <= 0 {
		p.MinConfidence = 0.35
	}
	if p.Cooldown <= 0 {
		p.Cooldown = 6 * time.Second
	}

	if cfg.Music.Volume == 0 {
		cfg.Music.Volume = DefaultMusicVolume
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("llm", fb.Name)
	}
	validateProviderName("speech", cfg.Providers.Speech.Name)
	validateProviderName("vision", cfg.Providers.Vision.Name)
	validateProviderName("media", cfg.Providers.Media.Name)

	if cfg.Providers.LLM.Name == "" {
		if len(cfg.Providers.LLMFallbacks) > 0 {
			errs = append(errs, errors.New("providers.llm_fallbacks requires providers.llm"))
		}
		slog.Warn("no LLM provider configured; intents use local rules and chat is unavailable")
	}
	if cfg.Providers.Speech.Name == "websocket" && cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("providers.speech websocket requires server.listen_addr"))
	}
	if cfg.Providers.Vision.Name != "" && cfg.Providers.Vision.Model == "" {
		errs = append(errs, errors.New("providers.vision.model (ONNX file) is required when vision is enabled"))
	}
	if cfg.Providers.Media.Name != "" && cfg.Music.Dir == "" {
		errs = append(errs, errors.New("music.dir is required when providers.media is set"))
	}

	if p := cfg.Perception.MinConfidence; p < 0 || p > 1 {
		errs = append(errs, fmt.Errorf("perception.min_confidence %.2f is out of range [0, 1]", p))
	}
	if v := cfg.Music.Volume; v < 0 || v > 1 {
		errs = append(errs, fmt.Errorf("music.volume %.2f is out of range [0, 1]", v))
	}

	for _, name := range slices.Sorted(maps.Keys(cfg.Contacts)) {
		phone := cfg.Contacts[name]
		if name == "" {
			errs = append(errs, errors.New("contacts: empty name"))
		}
		if !hasDigit(phone) {
			errs = append(errs, fmt.Errorf("contacts.%s: phone %q has no digits", name, phone))
		}
	}

	return errors.Join(errs...)
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
