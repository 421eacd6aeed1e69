package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/chacha/internal/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{
		Contacts: map[string]string{"Rahul": "+91 98765 43210"},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	d := config.Diff(baseConfig(), baseConfig())
	if !d.Empty() {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	old, updated := baseConfig(), baseConfig()
	updated.Server.LogLevel = config.LogDebug

	d := config.Diff(old, updated)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level change not reported: %+v", d)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("log level alone must not require a restart, got %v", d.RestartRequired)
	}
}

func TestDiff_Contacts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]string)
	}{
		{"added", func(m map[string]string) { m["Priya"] = "+91 1" }},
		{"removed", func(m map[string]string) { delete(m, "Rahul") }},
		{"number changed", func(m map[string]string) { m["Rahul"] = "+91 2" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			old, updated := baseConfig(), baseConfig()
			tc.mutate(updated.Contacts)
			d := config.Diff(old, updated)
			if !d.ContactsChanged {
				t.Error("ContactsChanged = false, want true")
			}
			if d.Empty() {
				t.Error("Empty() = true for a contacts change")
			}
		})
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	old, updated := baseConfig(), baseConfig()
	updated.Server.ListenAddr = ":9090"
	updated.Providers.LLM.Model = "gemini-2.5-flash"
	updated.Perception.Cooldown *= 2

	d := config.Diff(old, updated)
	want := []string{"server", "providers", "perception"}
	if !slices.Equal(d.RestartRequired, want) {
		t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, want)
	}
	if d.ContactsChanged || d.LogLevelChanged {
		t.Errorf("unexpected hot changes: %+v", d)
	}
}
