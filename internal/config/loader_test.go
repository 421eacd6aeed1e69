package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/chacha/internal/config"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr []string
	}{
		{
			name:    "invalid log level",
			yaml:    "server:\n  log_level: verbose\n",
			wantErr: []string{"server.log_level"},
		},
		{
			name:    "half configured tls",
			yaml:    "server:\n  tls:\n    cert_file: cert.pem\n",
			wantErr: []string{"server.tls"},
		},
		{
			name:    "fallback without primary",
			yaml:    "providers:\n  llm_fallbacks:\n    - name: ollama\n",
			wantErr: []string{"llm_fallbacks requires providers.llm"},
		},
		{
			name:    "unnamed fallback",
			yaml:    "providers:\n  llm:\n    name: gemini\n  llm_fallbacks:\n    - model: x\n",
			wantErr: []string{"llm_fallbacks[0].name"},
		},
		{
			name:    "websocket speech without listener",
			yaml:    "providers:\n  speech:\n    name: websocket\n",
			wantErr: []string{"server.listen_addr"},
		},
		{
			name:    "vision without model",
			yaml:    "providers:\n  vision:\n    name: gocv\n",
			wantErr: []string{"providers.vision.model"},
		},
		{
			name:    "media without music dir",
			yaml:    "providers:\n  media:\n    name: beep\n",
			wantErr: []string{"music.dir"},
		},
		{
			name:    "confidence out of range",
			yaml:    "perception:\n  min_confidence: 1.5\n",
			wantErr: []string{"perception.min_confidence"},
		},
		{
			name:    "volume out of range",
			yaml:    "music:\n  volume: 3\n",
			wantErr: []string{"music.volume"},
		},
		{
			name:    "contact without number",
			yaml:    "contacts:\n  Rahul: unknown\n",
			wantErr: []string{"contacts.Rahul"},
		},
		{
			name: "multiple errors are joined",
			yaml: "server:\n  log_level: loud\nmusic:\n  volume: -1\ncontacts:\n  Mummy: none\n",
			wantErr: []string{
				"server.log_level",
				"music.volume",
				"contacts.Mummy",
			},
		},
		{
			name: "websocket speech with listener",
			yaml: "server:\n  listen_addr: \":8080\"\nproviders:\n  speech:\n    name: websocket\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if len(tc.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			for _, want := range tc.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}

func TestValidProviderNames(t *testing.T) {
	for _, kind := range []string{"llm", "speech", "vision", "media"} {
		if len(config.ValidProviderNames[kind]) == 0 {
			t.Errorf("ValidProviderNames[%q] is empty", kind)
		}
	}
}
