// Package speech defines the assistant's voice I/O contracts.
//
// A [Speaker] turns a sentence into audible output; a [Listener] yields the
// next utterance as text. Recognition and synthesis internals live behind
// these interfaces so the command loop never depends on a specific engine.
package speech

import (
	"context"
	"errors"
)

// ErrNoInput is returned by [Listener.Listen] when nothing intelligible was
// heard before the listener's timeout. The command loop treats it as "keep
// waiting" rather than as a failure.
var ErrNoInput = errors.New("speech: no input")

// Speaker renders text as speech. Implementations serialise concurrent calls
// so that sentences never interleave. Speaking empty or whitespace-only text
// is a no-op.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Listener returns the next recognised utterance. It blocks until input
// arrives, the listener times out ([ErrNoInput]), or ctx is cancelled.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// SpeakerFunc adapts a plain function to [Speaker].
type SpeakerFunc func(ctx context.Context, text string) error

// Speak calls f.
func (f SpeakerFunc) Speak(ctx context.Context, text string) error { return f(ctx, text) }
