package intent

import (
	"context"
	"strings"

	"github.com/MrWong99/chacha/internal/observe"
)

// Resolver combines a remote classifier with [LocalRules].
//
// An error from the remote classifier hands the utterance to the local
// rules. A [Chat] verdict is re-resolved locally too: when the text carries
// a website or media cue that cue wins, so conversational text containing a
// media keyword ends up as a YouTube search. Chat survives only when the
// local rules would have fallen through to their catch-all Google search.
type Resolver struct {
	remote  Classifier
	local   LocalRules
	metrics *observe.Metrics
}

// ResolverOption configures a [Resolver].
type ResolverOption func(*Resolver)

// WithResolverMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithResolverMetrics(m *observe.Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

// NewResolver returns a Resolver that consults remote first. A nil remote
// means every utterance goes straight to the local rules.
func NewResolver(remote Classifier, opts ...ResolverOption) *Resolver {
	r := &Resolver{remote: remote}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// Resolve classifies text. Empty or whitespace-only input yields [None]
// without consulting any classifier.
func (r *Resolver) Resolve(ctx context.Context, text string) Resolved {
	text = strings.TrimSpace(text)
	if text == "" {
		return Resolved{Category: None, Source: SourceNone}
	}

	res := r.resolve(ctx, text)
	r.metrics.RecordIntent(ctx, string(res.Category), string(res.Source))
	return res
}

func (r *Resolver) resolve(ctx context.Context, text string) Resolved {
	if r.remote == nil {
		return r.local.Understand(text)
	}

	log := observe.Logger(ctx)
	res, err := r.remote.Classify(ctx, text)
	switch {
	case err != nil:
		log.Warn("intent: classifier failed, using local rules", "err", err, "text", text)
		r.metrics.RecordClassifierFallback(ctx, "error")
		return r.local.Understand(text)
	case res.Category == Chat:
		local, ok := r.local.Cue(text)
		if !ok {
			break
		}
		log.Debug("intent: chat verdict overridden by local rules", "text", text, "category", local.Category)
		r.metrics.RecordClassifierFallback(ctx, "chat")
		return local
	}
	res.Source = SourceClassifier
	return res
}
