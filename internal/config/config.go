// Package config provides the configuration schema, loader, and provider
// registry for the Chacha voice assistant.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Providers  ProvidersConfig   `yaml:"providers"`
	Assistant  AssistantConfig   `yaml:"assistant"`
	Perception PerceptionConfig  `yaml:"perception"`
	Music      MusicConfig       `yaml:"music"`
	System     SystemConfig      `yaml:"system"`
	Contacts   map[string]string `yaml:"contacts"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the health, metrics and websocket
	// endpoints (e.g., ":8080"). Empty disables the HTTP server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig selects the implementation behind each collaborator. Each
// entry names a constructor registered in the [Registry].
type ProvidersConfig struct {
	// LLM backs the intent classifier, conversational replies and object
	// descriptions.
	LLM ProviderEntry `yaml:"llm"`

	// LLMFallbacks are tried in order when LLM fails or its breaker is open.
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`

	// Speech selects voice I/O: "console", "espeak" or "websocket".
	Speech ProviderEntry `yaml:"speech"`

	// Vision selects the camera and detection model ("gocv"). Model is the
	// ONNX file path. Empty Name disables the camera features.
	Vision ProviderEntry `yaml:"vision"`

	// Media selects the audio backend for the music player ("beep").
	// Empty Name disables music.
	Media ProviderEntry `yaml:"media"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "gemini").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider, or the model file
	// for local engines.
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered by the standard
	// fields above.
	Options map[string]any `yaml:"options"`
}

// AssistantConfig tunes the command loop and the intent resolver.
type AssistantConfig struct {
	// Greeting is spoken once at startup.
	Greeting string `yaml:"greeting"`

	// ListenTimeout bounds one listen call. Default: 10s.
	ListenTimeout time.Duration `yaml:"listen_timeout"`

	// CommandPause is the pause between two commands. Default: 200ms.
	CommandPause time.Duration `yaml:"command_pause"`

	// ClassifyTimeout bounds one remote classification. Default: 8s.
	ClassifyTimeout time.Duration `yaml:"classify_timeout"`

	// DisableClassifier resolves intents with the local rules only.
	DisableClassifier bool `yaml:"disable_classifier"`

	// Breaker tunes the circuit breaker around the LLM backends.
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes a circuit breaker.
type BreakerConfig struct {
	// MaxFailures opens the breaker after this many consecutive failures.
	// Default: 3.
	MaxFailures int `yaml:"max_failures"`

	// Cooldown is how long an open breaker rejects calls. Default: 20s.
	Cooldown time.Duration `yaml:"cooldown"`
}

// PerceptionConfig tunes the capture loop and the object inspector.
type PerceptionConfig struct {
	// Freshness is the maximum age of a usable frame. Default: 2s.
	Freshness time.Duration `yaml:"freshness"`

	// Cycle is the continuous-detect period. Default: 2s.
	Cycle time.Duration `yaml:"cycle"`

	// MinConfidence is the lowest confidence that gets a description.
	// Default: 0.35.
	MinConfidence float64 `yaml:"min_confidence"`

	// Cooldown suppresses repeating the same label. Default: 6s.
	Cooldown time.Duration `yaml:"cooldown"`
}

// MusicConfig configures the local music player.
type MusicConfig struct {
	// Dir is the flat directory scanned for tracks.
	Dir string `yaml:"dir"`

	// Extensions limits which files are tracks. Default: .mp3 .wav .ogg.
	Extensions []string `yaml:"extensions"`

	// Volume is the initial level in [0, 1]. Default: 0.7.
	Volume float64 `yaml:"volume"`
}

// SystemConfig configures OS actions.
type SystemConfig struct {
	// ScreenshotDir receives screenshots. Default: ~/Desktop.
	ScreenshotDir string `yaml:"screenshot_dir"`

	// Apps maps spoken application names to executables, extending the
	// built-in table.
	Apps map[string]string `yaml:"apps"`
}
