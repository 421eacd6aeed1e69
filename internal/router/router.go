// Package router maps an utterance onto exactly one action.
//
// Routing order is fixed: fast-path keyword rules that must not depend on
// the classifier (continuous-detect stop, volume, reminders, time and
// date), then intent resolution, then the exit keywords, then the ordered
// dispatch rules. The first matching rule handles the utterance.
//
// Handlers never surface errors to the caller. A failing or panicking
// handler is logged and the user hears a short sentence instead.
package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/chacha/internal/contacts"
	"github.com/MrWong99/chacha/internal/intent"
	"github.com/MrWong99/chacha/internal/observe"
	"github.com/MrWong99/chacha/pkg/media"
	"github.com/MrWong99/chacha/pkg/provider/llm"
	"github.com/MrWong99/chacha/pkg/speech"
	"github.com/MrWong99/chacha/pkg/system"
)

// Outcome tells the command loop what to do next.
type Outcome int

const (
	// OutcomeNone means nothing was done (empty input).
	OutcomeNone Outcome = iota
	// OutcomeHandled means a handler ran, successfully or not.
	OutcomeHandled
	// OutcomeTerminate asks the command loop to exit.
	OutcomeTerminate
)

// String implements [fmt.Stringer].
func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeHandled:
		return "handled"
	case OutcomeTerminate:
		return "terminate"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Resolver resolves an utterance into an intent. [intent.Resolver]
// implements it.
type Resolver interface {
	Resolve(ctx context.Context, text string) intent.Resolved
}

// ContactBook corrects spoken contact names. [contacts.Book] implements it.
type ContactBook interface {
	Resolve(spoken string) (contacts.Contact, bool)
}

// Vision is the camera surface. [perception.Inspector] implements it.
type Vision interface {
	StartCamera(ctx context.Context) error
	AskAndDescribe(ctx context.Context)
	Start(ctx context.Context) bool
	Stop() bool
	Running() bool
}

// Reminders schedules spoken reminders. [reminder.Scheduler] implements it.
type Reminders interface {
	Schedule(delay time.Duration, message string) (uuid.UUID, error)
}

// Deps are the collaborators a [Router] drives. Resolver and Speaker are
// required; a nil optional collaborator makes its commands answer that the
// feature is unavailable.
type Deps struct {
	Resolver  Resolver
	Speaker   speech.Speaker
	Chat      llm.Provider
	System    system.Actions
	Messenger system.Messenger
	Contacts  ContactBook
	Media     media.Controls
	Vision    Vision
	Reminders Reminders
	Metrics   *observe.Metrics

	// Now returns the current time for time and date queries.
	// Default: time.Now.
	Now func() time.Time

	// CameraWarmup is the pause between starting the camera and a one-shot
	// description. Default: 500ms.
	CameraWarmup time.Duration
}

// Command is one utterance on its way through the rules.
type Command struct {
	// Text is the lowercased, trimmed utterance.
	Text string
	// Tokens are the words of Text without punctuation.
	Tokens []string
	// Intent is zero for fast-path rules.
	Intent intent.Resolved
}

// Rule pairs a predicate with a handler. Rules are evaluated in order and
// the first match wins.
type Rule struct {
	Name   string
	Match  func(c Command) bool
	Handle func(ctx context.Context, c Command) error
}

// Router routes utterances. It is safe for concurrent use as long as its
// collaborators are.
type Router struct {
	deps      Deps
	fastPaths []Rule
	dispatch  []Rule
}

// New returns a Router over deps.
func New(deps Deps) (*Router, error) {
	if deps.Resolver == nil || deps.Speaker == nil {
		return nil, errors.New("router: resolver and speaker are required")
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.DefaultMetrics()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.CameraWarmup <= 0 {
		deps.CameraWarmup = 500 * time.Millisecond
	}
	r := &Router{deps: deps}
	r.fastPaths = r.fastPathRules()
	r.dispatch = r.dispatchRules()
	return r, nil
}

// FastPaths returns the names of the fast-path rules in evaluation order.
func (r *Router) FastPaths() []string { return ruleNames(r.fastPaths) }

// Dispatch returns the names of the dispatch rules in evaluation order.
func (r *Router) Dispatch() []string { return ruleNames(r.dispatch) }

func ruleNames(rules []Rule) []string {
	out := make([]string, len(rules))
	for i, rl := range rules {
		out[i] = rl.Name
	}
	return out
}

// Route handles one utterance. It never fails: handler errors are spoken
// and logged.
func (r *Router) Route(ctx context.Context, text string) Outcome {
	ctx, span := observe.StartSpan(ctx, "router.route")
	defer span.End()
	start := time.Now()

	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" || text == "none" {
		return OutcomeNone
	}

	handler, outcome := r.route(ctx, Command{Text: text, Tokens: tokenize(text)})
	span.SetAttributes(attribute.String("handler", handler), attribute.String("outcome", outcome.String()))
	r.deps.Metrics.RecordRoute(ctx, handler, outcome.String(), time.Since(start).Seconds())
	return outcome
}

// Exit keywords end the session regardless of the resolved intent.
var exitPhrases = []string{"exit", "quit", "band kar*", "goodbye", "stop program"}

// MsgGoodbye is spoken before terminating.
const MsgGoodbye = "Goodbye! Chacha band ho raha hai."

func (r *Router) route(ctx context.Context, c Command) (string, Outcome) {
	for _, rl := range r.fastPaths {
		if rl.Match(c) {
			r.run(ctx, rl, c)
			return rl.Name, OutcomeHandled
		}
	}

	c.Intent = r.deps.Resolver.Resolve(ctx, c.Text)
	if c.Intent.Category == intent.None {
		return "none", OutcomeNone
	}
	observe.Logger(ctx).Debug("router: resolved",
		"category", c.Intent.Category, "target", c.Intent.Target,
		"contact", c.Intent.Contact, "source", c.Intent.Source)

	if hasAny(c.Tokens, exitPhrases...) {
		r.say(ctx, MsgGoodbye)
		return "exit", OutcomeTerminate
	}

	for _, rl := range r.dispatch {
		if rl.Match(c) {
			r.run(ctx, rl, c)
			return rl.Name, OutcomeHandled
		}
	}
	// The chat rule matches everything; reaching here means it was removed.
	return "unmatched", OutcomeHandled
}

// MsgGenericFailure is spoken when a handler fails without a specific
// sentence.
const MsgGenericFailure = "Kuch gadbad ho gayi. Ek baar fir se boliye."

// spokenError carries the sentence the user hears for a failure.
type spokenError struct {
	msg string
	err error
}

func (e *spokenError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *spokenError) Unwrap() error { return e.err }

// sorry wraps err with the sentence to speak. err may be nil for missing
// input.
func sorry(msg string, err error) error {
	return &spokenError{msg: msg, err: err}
}

// run executes a rule, turning errors and panics into a spoken sentence.
func (r *Router) run(ctx context.Context, rl Rule, c Command) {
	log := observe.Logger(ctx).With("rule", rl.Name)
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				log.Error("router: handler panicked", "panic", p, "stack", string(debug.Stack()))
				err = fmt.Errorf("router: %s panicked: %v", rl.Name, p)
			}
		}()
		return rl.Handle(ctx, c)
	}()
	if err == nil {
		return
	}

	msg := MsgGenericFailure
	var se *spokenError
	switch {
	case errors.As(err, &se) && se.err == nil:
		log.Debug("router: missing input", "reply", se.msg, "text", c.Text)
		msg = se.msg
	case errors.As(err, &se):
		log.Warn("router: handler failed", "err", se.err, "text", c.Text)
		msg = se.msg
	default:
		log.Warn("router: handler failed", "err", err, "text", c.Text)
	}
	r.say(ctx, msg)
}

func (r *Router) say(ctx context.Context, text string) {
	if err := r.deps.Speaker.Speak(ctx, text); err != nil {
		observe.Logger(ctx).Warn("router: speak failed", "err", err)
	}
}
