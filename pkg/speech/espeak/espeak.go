// Package espeak implements [speech.Speaker] by shelling out to espeak-ng.
package espeak

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/MrWong99/chacha/pkg/speech"
)

var _ speech.Speaker = (*Speaker)(nil)

// Defaults match a clear Hindi-accented voice at conversational pace.
const (
	DefaultBinary = "espeak-ng"
	DefaultVoice  = "hi"
	DefaultRate   = 165
)

// Runner executes a command and waits for it. Replaced in tests.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Speaker speaks through the espeak-ng binary.
type Speaker struct {
	binary string
	voice  string
	rate   int
	run    Runner

	mu sync.Mutex
}

// Option configures a [Speaker].
type Option func(*Speaker)

// WithBinary overrides the executable name or path.
func WithBinary(path string) Option { return func(s *Speaker) { s.binary = path } }

// WithVoice selects the espeak voice.
func WithVoice(v string) Option { return func(s *Speaker) { s.voice = v } }

// WithRate sets words per minute.
func WithRate(wpm int) Option { return func(s *Speaker) { s.rate = wpm } }

// WithRunner replaces process execution.
func WithRunner(r Runner) Option { return func(s *Speaker) { s.run = r } }

// New returns a Speaker with defaults applied.
func New(opts ...Option) *Speaker {
	s := &Speaker{
		binary: DefaultBinary,
		voice:  DefaultVoice,
		rate:   DefaultRate,
		run:    execRunner,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Speak implements [speech.Speaker]. Calls are serialised.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	args := []string{"-v", s.voice, "-s", strconv.Itoa(s.rate), "--", text}
	if err := s.run(ctx, s.binary, args...); err != nil {
		return fmt.Errorf("espeak: speak: %w", err)
	}
	return nil
}
