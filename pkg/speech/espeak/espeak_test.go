package espeak

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestSpeak_BuildsCommand(t *testing.T) {
	t.Parallel()

	var gotName string
	var gotArgs []string
	s := New(WithVoice("en"), WithRate(120), WithRunner(func(_ context.Context, name string, args ...string) error {
		gotName, gotArgs = name, args
		return nil
	}))

	if err := s.Speak(context.Background(), "  namaste  "); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if gotName != DefaultBinary {
		t.Errorf("binary = %q, want %q", gotName, DefaultBinary)
	}
	want := []string{"-v", "en", "-s", "120", "--", "namaste"}
	if !slices.Equal(gotArgs, want) {
		t.Errorf("args = %v, want %v", gotArgs, want)
	}
}

func TestSpeak_EmptyIsNoop(t *testing.T) {
	t.Parallel()

	called := false
	s := New(WithRunner(func(context.Context, string, ...string) error {
		called = true
		return nil
	}))
	if err := s.Speak(context.Background(), "   "); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if called {
		t.Error("runner should not be invoked for empty text")
	}
}

func TestSpeak_WrapsError(t *testing.T) {
	t.Parallel()

	boom := errors.New("not installed")
	s := New(WithRunner(func(context.Context, string, ...string) error { return boom }))
	if err := s.Speak(context.Background(), "hello"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}
