package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MrWong99/chacha/internal/observe"
	"github.com/MrWong99/chacha/pkg/provider/llm"
)

// DefaultClassifyTimeout bounds one remote classification.
const DefaultClassifyTimeout = 8 * time.Second

// ErrNoJSON is returned when the model reply contains no JSON object.
var ErrNoJSON = errors.New("intent: reply contains no JSON object")

// SystemInstruction is sent with every classification request.
const SystemInstruction = `You are 'Chacha', an Indian AI assistant with a confident, fun and friendly personality.
You understand mixed Hindi and English (Hinglish) commands.

If the user says "volume badhao", "awaz full karo", "volume 70 percent", "mute karo" and similar,
then intent="set_volume" and message_text should include a numeric level (0.0 to 1.0) if possible.
Example: "volume 50 percent" gives level 0.5, "full" gives 1.0, "mute" gives 0.0.

Return a STRICT JSON object with the following keys:
{
 "intent": "<one of: chat, open_app, open_website, search, play_music, pause_music, resume_music, stop_music, next_music,
            send_message, detect_object, take_screenshot, lock_pc, shutdown_pc, restart_pc, open_settings, set_volume>",
 "contact_name": "<optional contact name or None>",
 "message_text": "<main topic, search term, or message text>"
}

Rules:
- Detect what the user wants to do, not a literal translation.
- "google pe search karo python tutorial" means intent=search, message_text="python tutorial".
- "open YouTube" means intent=open_app, message_text="youtube".
- "play music" or "song chalao" means intent=play_music.
- Casual chatting ("chacha how are you?") means intent=chat.
- Preserve emojis, names and Hinglish exactly as said.
Return ONLY valid JSON, nothing else.`

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// aliases maps category names models commonly emit instead of the
// canonical ones.
var aliases = map[string]Category{
	"start_app":      OpenApp,
	"open":           OpenApp,
	"browse":         OpenWebsite,
	"google_search":  Search,
	"youtube_search": Search,
}

type verdict struct {
	Intent      string  `json:"intent" validate:"required,oneof=chat open_app open_website search play_music pause_music resume_music stop_music next_music send_message detect_object take_screenshot lock_pc shutdown_pc restart_pc open_settings set_volume"`
	ContactName *string `json:"contact_name"`
	MessageText *string `json:"message_text"`
}

// LLMClassifier classifies utterances with a language model. Transport
// failures, replies without JSON and verdicts outside the closed category
// set are all returned as errors.
//
// Wrap the provider in a resilience.LLMChain to guard it with a circuit
// breaker.
type LLMClassifier struct {
	provider llm.Provider
	validate *validator.Validate
	metrics  *observe.Metrics
	timeout  time.Duration
}

var _ Classifier = (*LLMClassifier)(nil)

// ClassifierOption configures an [LLMClassifier].
type ClassifierOption func(*LLMClassifier)

// WithClassifyTimeout overrides [DefaultClassifyTimeout].
func WithClassifyTimeout(d time.Duration) ClassifierOption {
	return func(c *LLMClassifier) { c.timeout = d }
}

// WithClassifierMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithClassifierMetrics(m *observe.Metrics) ClassifierOption {
	return func(c *LLMClassifier) { c.metrics = m }
}

// NewLLMClassifier returns a classifier backed by p.
func NewLLMClassifier(p llm.Provider, opts ...ClassifierOption) *LLMClassifier {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	c := &LLMClassifier{
		provider: p,
		validate: v,
		timeout:  DefaultClassifyTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Classify sends text to the model and decodes its verdict.
func (c *LLMClassifier) Classify(ctx context.Context, text string) (Resolved, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.provider.Complete(ctx, llm.UserPrompt(SystemInstruction, "User said: "+text))
	c.metrics.RecordLLM(ctx, "classify", time.Since(start).Seconds())
	if err != nil {
		return Resolved{}, fmt.Errorf("intent: classify: %w", err)
	}
	if resp == nil {
		return Resolved{}, fmt.Errorf("intent: classify: %w", ErrNoJSON)
	}
	return c.decode(resp.Content)
}

func (c *LLMClassifier) decode(reply string) (Resolved, error) {
	raw := jsonObject.FindString(reply)
	if raw == "" {
		return Resolved{}, ErrNoJSON
	}

	var v verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Resolved{}, fmt.Errorf("intent: decode verdict: %w", err)
	}
	v.Intent = strings.ToLower(strings.TrimSpace(v.Intent))
	if v.Intent == "" {
		v.Intent = string(Chat)
	}
	if alias, ok := aliases[v.Intent]; ok {
		v.Intent = string(alias)
	}
	if err := c.validate.Struct(v); err != nil {
		return Resolved{}, fmt.Errorf("intent: invalid verdict: %w", err)
	}

	return Resolved{
		Category: Category(v.Intent),
		Target:   optional(v.MessageText),
		Contact:  optional(v.ContactName),
		Source:   SourceClassifier,
	}, nil
}

// optional flattens a nullable JSON string. Models often spell a missing
// value as the literal "None" or "null".
func optional(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.TrimSpace(*s)
	switch strings.ToLower(v) {
	case "none", "null":
		return ""
	}
	return v
}
