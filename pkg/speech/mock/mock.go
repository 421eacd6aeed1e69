// Package mock provides test doubles for speech.Speaker and speech.Listener.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/chacha/pkg/speech"
)

// Speaker records every sentence passed to Speak.
type Speaker struct {
	mu sync.Mutex

	// Err, if non-nil, is returned from every Speak call.
	Err error

	// Spoken holds the text of every call, in order.
	Spoken []string

	// OnSpeak, if set, is called after the text is recorded.
	OnSpeak func(text string)
}

// Speak records text and returns Err.
func (s *Speaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	s.Spoken = append(s.Spoken, text)
	fn, err := s.OnSpeak, s.Err
	s.mu.Unlock()
	if fn != nil {
		fn(text)
	}
	return err
}

// Said returns a copy of the recorded sentences.
func (s *Speaker) Said() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Spoken))
	copy(out, s.Spoken)
	return out
}

// Last returns the most recent sentence or "".
func (s *Speaker) Last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Spoken) == 0 {
		return ""
	}
	return s.Spoken[len(s.Spoken)-1]
}

// Listener replays a fixed script of utterances. After the script is
// exhausted it returns Done (or blocks until ctx is cancelled when Done is
// nil).
type Listener struct {
	mu sync.Mutex

	// Script is consumed front to back. An empty entry yields speech.ErrNoInput.
	Script []string

	// Done is returned once Script is empty.
	Done error

	// Calls counts Listen invocations.
	Calls int
}

// Listen pops the next scripted utterance.
func (l *Listener) Listen(ctx context.Context) (string, error) {
	l.mu.Lock()
	l.Calls++
	if len(l.Script) > 0 {
		next := l.Script[0]
		l.Script = l.Script[1:]
		l.mu.Unlock()
		if next == "" {
			return "", speech.ErrNoInput
		}
		return next, nil
	}
	done := l.Done
	l.mu.Unlock()
	if done != nil {
		return "", done
	}
	<-ctx.Done()
	return "", ctx.Err()
}

var (
	_ speech.Speaker  = (*Speaker)(nil)
	_ speech.Listener = (*Listener)(nil)
)
