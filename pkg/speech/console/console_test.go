package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/chacha/pkg/speech"
)

func TestListen_ReadsLines(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	c := New(strings.NewReader("lock the pc\n\n"), &out, WithPrompt("> "))
	ctx := context.Background()

	got, err := c.Listen(ctx)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if got != "lock the pc" {
		t.Errorf("got %q, want %q", got, "lock the pc")
	}

	if _, err := c.Listen(ctx); !errors.Is(err, speech.ErrNoInput) {
		t.Errorf("blank line err = %v, want ErrNoInput", err)
	}
	if _, err := c.Listen(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("end of input err = %v, want io.EOF", err)
	}
}

func TestListen_Timeout(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	defer pw.Close()

	c := New(pr, io.Discard, WithTimeout(20*time.Millisecond))
	if _, err := c.Listen(context.Background()); !errors.Is(err, speech.ErrNoInput) {
		t.Fatalf("err = %v, want ErrNoInput", err)
	}
}

func TestListen_ContextCancelled(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	defer pw.Close()

	c := New(pr, io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Listen(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSpeak(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	c := New(strings.NewReader(""), &out)
	if err := c.Speak(context.Background(), "Theek hai"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if err := c.Speak(context.Background(), ""); err != nil {
		t.Fatalf("Speak empty: %v", err)
	}
	if got := out.String(); got != "Chacha: Theek hai\n" {
		t.Errorf("output = %q", got)
	}
}
