package perception

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/chacha/pkg/vision"
	"github.com/MrWong99/chacha/pkg/vision/mock"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestCaptureLoop_NoCamera(t *testing.T) {
	t.Parallel()
	l := NewCaptureLoop(nil, CaptureConfig{})
	if err := l.Start(context.Background()); !errors.Is(err, ErrNoCamera) {
		t.Errorf("Start err = %v, want ErrNoCamera", err)
	}
	if _, ok := l.LatestFrame(); ok {
		t.Error("LatestFrame reported a frame without a camera")
	}
}

func TestCaptureLoop_StaleFrameIsAbsent(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cam := &mock.Camera{Frames: []image.Image{solid(4, 4, color.RGBA{R: 255, A: 255})}}
	l := NewCaptureLoop(cam, CaptureConfig{Now: clock.Now, Interval: time.Hour})
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(l.Stop)

	if _, ok := l.LatestFrame(); !ok {
		t.Fatal("LatestFrame after first capture = absent")
	}
	clock.Advance(1500 * time.Millisecond)
	if _, ok := l.LatestFrame(); !ok {
		t.Error("frame 1.5s old reported absent")
	}
	clock.Advance(1500 * time.Millisecond)
	if _, ok := l.LatestFrame(); ok {
		t.Error("frame 3s old still returned")
	}
}

func TestCaptureLoop_StartIsIdempotent(t *testing.T) {
	t.Parallel()

	cam := &mock.Camera{Frames: []image.Image{solid(2, 2, color.RGBA{A: 255})}}
	l := NewCaptureLoop(cam, CaptureConfig{Interval: time.Millisecond})
	ctx := context.Background()
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := l.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if n := l.active.Load(); n != 1 {
		t.Errorf("capture goroutines = %d, want 1", n)
	}
	if !l.Running() {
		t.Error("Running = false after Start")
	}

	l.Stop()
	if l.Running() {
		t.Error("Running = true after Stop")
	}
	l.Stop() // no-op
}

func TestCaptureLoop_RestartWaitsForNewFrame(t *testing.T) {
	t.Parallel()

	frame := solid(2, 2, color.RGBA{R: 10, A: 255})
	release := make(chan struct{})
	var calls atomic.Int32
	cam := &mock.Camera{ReadFunc: func(ctx context.Context) (image.Image, error) {
		if calls.Add(1) == 1 {
			return frame, nil
		}
		select {
		case <-release:
			return frame, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
	l := NewCaptureLoop(cam, CaptureConfig{Interval: time.Hour, FirstFrameWait: 5 * time.Second})
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	l.Stop()

	started := make(chan error, 1)
	go func() { started <- l.Start(context.Background()) }()
	t.Cleanup(l.Stop)

	select {
	case err := <-started:
		t.Fatalf("restart returned before a new frame (err = %v)", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-started:
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("restart never saw the new frame")
	}
}

func TestCaptureLoop_StartDuringStop(t *testing.T) {
	t.Parallel()

	frame := solid(2, 2, color.RGBA{G: 10, A: 255})
	gate := make(chan struct{})
	var calls atomic.Int32
	cam := &mock.Camera{ReadFunc: func(context.Context) (image.Image, error) {
		if calls.Add(1) > 1 {
			<-gate // ignores cancellation, like a stuck device read
		}
		return frame, nil
	}}
	l := NewCaptureLoop(cam, CaptureConfig{Interval: time.Millisecond})
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for calls.Load() < 2 {
		time.Sleep(time.Millisecond)
	}

	stopped := make(chan struct{})
	go func() {
		l.Stop()
		close(stopped)
	}()
	time.Sleep(10 * time.Millisecond)

	restarted := make(chan error, 1)
	go func() { restarted <- l.Start(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	if n := l.active.Load(); n > 1 {
		t.Errorf("capture goroutines = %d while the old one is exiting, want <= 1", n)
	}

	close(gate)
	<-stopped
	if err := <-restarted; err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(l.Stop)
	if n := l.active.Load(); n != 1 {
		t.Errorf("capture goroutines = %d after restart, want 1", n)
	}
}

func TestCaptureLoop_ReturnsCopies(t *testing.T) {
	t.Parallel()

	cam := &mock.Camera{Frames: []image.Image{solid(2, 2, color.RGBA{G: 200, A: 255})}}
	l := NewCaptureLoop(cam, CaptureConfig{Interval: time.Hour})
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(l.Stop)

	first, ok := l.LatestFrame()
	if !ok {
		t.Fatal("no frame")
	}
	first.(*image.RGBA).Pix[1] = 0

	second, _ := l.LatestFrame()
	if got := second.(*image.RGBA).Pix[1]; got != 200 {
		t.Errorf("mutation of a returned frame leaked into the buffer: G = %d", got)
	}
}

func TestCaptureLoop_RetriesAfterFailures(t *testing.T) {
	t.Parallel()

	frame := solid(2, 2, color.RGBA{B: 255, A: 255})
	var calls int
	got := make(chan struct{})
	cam := &mock.Camera{ReadFunc: func(context.Context) (image.Image, error) {
		calls++
		if calls < 3 {
			return nil, vision.ErrReadFailed
		}
		if calls == 3 {
			close(got)
		}
		return frame, nil
	}}
	l := NewCaptureLoop(cam, CaptureConfig{
		Interval:       time.Hour,
		RetryInitial:   time.Millisecond,
		RetryMax:       2 * time.Millisecond,
		FirstFrameWait: time.Millisecond,
	})
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(l.Stop)

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("loop gave up after read failures")
	}
	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := l.LatestFrame(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("frame never became available")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()
	b := newBackoff(30*time.Millisecond, 100*time.Millisecond)
	want := []time.Duration{30, 60, 100, 100}
	for i, w := range want {
		if got := b.next(); got != w*time.Millisecond {
			t.Errorf("next #%d = %v, want %v", i, got, w*time.Millisecond)
		}
	}
	b.reset()
	if got := b.next(); got != 30*time.Millisecond {
		t.Errorf("after reset = %v", got)
	}
}
