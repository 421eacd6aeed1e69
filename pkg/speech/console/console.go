// Package console implements speech I/O over a terminal: utterances are read
// line by line from an [io.Reader] and speech is printed to an [io.Writer].
//
// It is the default pairing for development and for machines without a
// microphone.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/chacha/pkg/speech"
)

var (
	_ speech.Speaker  = (*Console)(nil)
	_ speech.Listener = (*Console)(nil)
)

// Console is both a [speech.Speaker] and a [speech.Listener].
type Console struct {
	out     io.Writer
	prompt  string
	timeout time.Duration

	writeMu sync.Mutex
	lines   chan string
	errs    chan error
}

// Option configures a [Console].
type Option func(*Console)

// WithPrompt sets the prompt printed before each read. Default "You: ".
func WithPrompt(p string) Option {
	return func(c *Console) { c.prompt = p }
}

// WithTimeout makes Listen return [speech.ErrNoInput] when no line arrives in
// time. Zero waits indefinitely.
func WithTimeout(d time.Duration) Option {
	return func(c *Console) { c.timeout = d }
}

// New creates a Console reading from in and writing to out. A background
// goroutine scans in until EOF.
func New(in io.Reader, out io.Writer, opts ...Option) *Console {
	c := &Console{
		out:    out,
		prompt: "You: ",
		lines:  make(chan string),
		errs:   make(chan error, 1),
	}
	for _, o := range opts {
		o(c)
	}
	go c.scan(in)
	return c
}

func (c *Console) scan(in io.Reader) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		c.lines <- sc.Text()
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	c.errs <- err
	close(c.lines)
}

// Listen implements [speech.Listener]. Blank lines yield [speech.ErrNoInput].
// At end of input it returns [io.EOF].
func (c *Console) Listen(ctx context.Context) (string, error) {
	c.writeMu.Lock()
	fmt.Fprint(c.out, c.prompt)
	c.writeMu.Unlock()

	var timeout <-chan time.Time
	if c.timeout > 0 {
		t := time.NewTimer(c.timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timeout:
		return "", speech.ErrNoInput
	case line, ok := <-c.lines:
		if !ok {
			return "", c.readErr()
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return "", speech.ErrNoInput
		}
		return line, nil
	}
}

func (c *Console) readErr() error {
	select {
	case err := <-c.errs:
		c.errs <- err
		return fmt.Errorf("console: read: %w", err)
	default:
		return fmt.Errorf("console: read: %w", io.EOF)
	}
}

// Speak implements [speech.Speaker].
func (c *Console) Speak(_ context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := fmt.Fprintf(c.out, "Chacha: %s\n", text); err != nil {
		return fmt.Errorf("console: speak: %w", err)
	}
	return nil
}
