package perception

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/chacha/internal/observe"
	"github.com/MrWong99/chacha/pkg/provider/llm"
)

// Describer produces a one-sentence description of an object class.
type Describer interface {
	Describe(ctx context.Context, label string) string
}

// DescriberFunc adapts a function to [Describer].
type DescriberFunc func(ctx context.Context, label string) string

// Describe implements [Describer].
func (f DescriberFunc) Describe(ctx context.Context, label string) string { return f(ctx, label) }

// PlainDescriber answers "A <label>." without a model.
var PlainDescriber = DescriberFunc(func(_ context.Context, label string) string {
	return fallbackDescription(label)
})

func fallbackDescription(label string) string {
	return fmt.Sprintf("A %s.", label)
}

// LLMDescriber asks a language model for a short description and falls
// back to "A <label>." on any failure.
type LLMDescriber struct {
	provider llm.Provider
	metrics  *observe.Metrics
	prompt   string
}

// NewLLMDescriber returns a describer backed by p. systemPrompt sets the
// assistant persona and may be empty.
func NewLLMDescriber(p llm.Provider, systemPrompt string, metrics *observe.Metrics) *LLMDescriber {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &LLMDescriber{provider: p, metrics: metrics, prompt: systemPrompt}
}

// Describe implements [Describer].
func (d *LLMDescriber) Describe(ctx context.Context, label string) string {
	start := time.Now()
	req := llm.UserPrompt(d.prompt,
		fmt.Sprintf("Briefly describe what a %s is and one common use in one short sentence.", label))
	req.Temperature = 0.7
	resp, err := d.provider.Complete(ctx, req)
	d.metrics.RecordLLM(ctx, "describe", time.Since(start).Seconds())
	if err != nil {
		observe.Logger(ctx).Warn("perception: describe failed", "label", label, "err", err)
		return fallbackDescription(label)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return fallbackDescription(label)
	}
	return strings.TrimSpace(resp.Content)
}
