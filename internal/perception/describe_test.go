package perception

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/chacha/pkg/provider/llm"
	"github.com/MrWong99/chacha/pkg/provider/llm/mock"
)

func TestLLMDescriber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    *mock.Provider
		want string
	}{
		{"reply", &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: " Used to drink water. "}}, "Used to drink water."},
		{"error", &mock.Provider{CompleteErr: errors.New("quota")}, "A bottle."},
		{"empty", &mock.Provider{CompleteResponse: &llm.CompletionResponse{}}, "A bottle."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := NewLLMDescriber(tc.p, "You are Chacha.", nil)
			if got := d.Describe(context.Background(), "bottle"); got != tc.want {
				t.Errorf("Describe = %q, want %q", got, tc.want)
			}
			req := tc.p.CompleteCalls[0].Req
			if req.SystemPrompt != "You are Chacha." || !strings.Contains(req.Messages[0].Content, "bottle") {
				t.Errorf("request = %+v", req)
			}
		})
	}
}
