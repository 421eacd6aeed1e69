package intent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/chacha/pkg/provider/llm"
	"github.com/MrWong99/chacha/pkg/provider/llm/mock"
)

func replying(content string) *mock.Provider {
	return &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: content}}
}

func TestLLMClassifier_Classify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		reply   string
		want    Resolved
		wantErr bool
	}{
		{
			name:  "plain json",
			reply: `{"intent":"search","contact_name":null,"message_text":"python tutorial"}`,
			want:  Resolved{Category: Search, Target: "python tutorial", Source: SourceClassifier},
		},
		{
			name:  "json wrapped in prose and fences",
			reply: "Sure!\n```json\n{\n \"intent\": \"send_message\",\n \"contact_name\": \"Rahul\",\n \"message_text\": \"main late hoon\"\n}\n```",
			want:  Resolved{Category: SendMessage, Target: "main late hoon", Contact: "Rahul", Source: SourceClassifier},
		},
		{
			name:  "None contact is empty",
			reply: `{"intent":"open_app","contact_name":"None","message_text":"notepad"}`,
			want:  Resolved{Category: OpenApp, Target: "notepad", Source: SourceClassifier},
		},
		{
			name:  "missing intent means chat",
			reply: `{"message_text":"kaise ho"}`,
			want:  Resolved{Category: Chat, Target: "kaise ho", Source: SourceClassifier},
		},
		{
			name:  "alias normalised",
			reply: `{"intent":"Google_Search","message_text":"ipl score"}`,
			want:  Resolved{Category: Search, Target: "ipl score", Source: SourceClassifier},
		},
		{name: "unknown intent", reply: `{"intent":"make_coffee"}`, wantErr: true},
		{name: "no json", reply: "I am not sure.", wantErr: true},
		{name: "broken json", reply: `{"intent": "lock_pc",}`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := NewLLMClassifier(replying(tc.reply))
			got, err := c.Classify(context.Background(), "anything")
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestLLMClassifier_Request(t *testing.T) {
	t.Parallel()

	p := replying(`{"intent":"lock_pc"}`)
	if _, err := NewLLMClassifier(p).Classify(context.Background(), "computer lock karo"); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if p.CallCount() != 1 {
		t.Fatalf("calls = %d, want 1", p.CallCount())
	}
	req := p.CompleteCalls[0].Req
	if req.SystemPrompt != SystemInstruction {
		t.Error("system prompt is not the classification instruction")
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "User said: computer lock karo" {
		t.Errorf("messages = %+v", req.Messages)
	}
	if _, ok := p.CompleteCalls[0].Ctx.Deadline(); !ok {
		t.Error("classification context has no deadline")
	}
}

func TestLLMClassifier_ProviderError(t *testing.T) {
	t.Parallel()

	boom := errors.New("unreachable")
	c := NewLLMClassifier(&mock.Provider{CompleteErr: boom})
	_, err := c.Classify(context.Background(), "hello")
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapping %v", err, boom)
	}

	_, err = NewLLMClassifier(&mock.Provider{}).Classify(context.Background(), "hello")
	if !errors.Is(err, ErrNoJSON) {
		t.Errorf("nil response err = %v, want ErrNoJSON", err)
	}
}

func TestSystemInstruction_ListsEveryCategory(t *testing.T) {
	t.Parallel()
	for _, c := range RemoteCategories {
		if !strings.Contains(SystemInstruction, string(c)) {
			t.Errorf("instruction does not mention %q", c)
		}
	}
}
