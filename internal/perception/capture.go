package perception

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/image/draw"

	"github.com/MrWong99/chacha/internal/observe"
	"github.com/MrWong99/chacha/pkg/vision"
)

// ErrNoCamera is returned by [CaptureLoop.Start] when no camera is attached.
var ErrNoCamera = errors.New("perception: no camera")

// CaptureConfig tunes a [CaptureLoop]. Zero fields take the defaults.
type CaptureConfig struct {
	// Freshness is the maximum age of a frame returned by LatestFrame.
	// Default: 2s.
	Freshness time.Duration

	// FirstFrameWait bounds how long Start waits for the first frame.
	// Default: 1s.
	FirstFrameWait time.Duration

	// Interval is the pause between two successful reads. Default: 20ms.
	Interval time.Duration

	// RetryInitial and RetryMax bound the backoff after a failed read.
	// Defaults: 30ms and 500ms.
	RetryInitial time.Duration
	RetryMax     time.Duration

	// Now returns the current time. Default: time.Now.
	Now func() time.Time

	Metrics *observe.Metrics
}

func (c *CaptureConfig) applyDefaults() {
	if c.Freshness <= 0 {
		c.Freshness = 2 * time.Second
	}
	if c.FirstFrameWait <= 0 {
		c.FirstFrameWait = time.Second
	}
	if c.Interval <= 0 {
		c.Interval = 20 * time.Millisecond
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = 30 * time.Millisecond
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 500 * time.Millisecond
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Metrics == nil {
		c.Metrics = observe.DefaultMetrics()
	}
}

// CaptureLoop polls a camera in the background and keeps the newest frame.
// All methods are safe for concurrent use.
type CaptureLoop struct {
	camera vision.Camera
	cfg    CaptureConfig

	// active counts running capture goroutines; it never exceeds 1.
	active atomic.Int32

	// runMu is held by Stop until the goroutine has exited.
	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	frame      *image.RGBA
	capturedAt time.Time
	first      chan struct{} // closed by the current goroutine's first frame
}

// NewCaptureLoop returns a stopped loop over camera. camera may be nil, in
// which case Start fails with [ErrNoCamera].
func NewCaptureLoop(camera vision.Camera, cfg CaptureConfig) *CaptureLoop {
	cfg.applyDefaults()
	return &CaptureLoop{camera: camera, cfg: cfg}
}

// Start launches the capture goroutine and waits up to FirstFrameWait for
// a first frame. It is a no-op while the loop is running. The goroutine
// lives until Stop, independent of ctx.
func (l *CaptureLoop) Start(ctx context.Context) error {
	if l.camera == nil {
		return ErrNoCamera
	}

	l.runMu.Lock()
	if l.cancel == nil {
		l.mu.Lock()
		l.first = make(chan struct{})
		l.mu.Unlock()

		loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		l.cancel = cancel
		l.done = make(chan struct{})
		l.active.Add(1)
		go l.run(loopCtx, l.done)
	}
	l.runMu.Unlock()

	l.mu.Lock()
	first := l.first
	l.mu.Unlock()

	t := time.NewTimer(l.cfg.FirstFrameWait)
	defer t.Stop()
	select {
	case <-first:
	case <-t.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Stop ends the capture goroutine and waits for it to exit. A concurrent
// Start blocks until the old goroutine is gone.
func (l *CaptureLoop) Stop() {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
	l.cancel, l.done = nil, nil
}

// Running reports whether the capture goroutine is alive.
func (l *CaptureLoop) Running() bool {
	return l.active.Load() > 0
}

// LatestFrame returns a copy of the newest frame. It reports false when no
// frame was captured yet or the newest one is older than Freshness.
func (l *CaptureLoop) LatestFrame() (image.Image, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frame == nil || l.cfg.Now().Sub(l.capturedAt) > l.cfg.Freshness {
		return nil, false
	}
	return cloneRGBA(l.frame), true
}

func (l *CaptureLoop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer l.active.Add(-1)

	log := observe.Logger(ctx)
	retry := newBackoff(l.cfg.RetryInitial, l.cfg.RetryMax)
	for {
		img, err := l.camera.ReadFrame(ctx)
		if ctx.Err() != nil {
			return
		}
		wait := l.cfg.Interval
		if err != nil || img == nil {
			l.cfg.Metrics.CaptureFailures.Add(ctx, 1)
			wait = retry.next()
			log.Debug("perception: frame read failed", "err", err, "retry_in", wait)
		} else {
			retry.reset()
			l.store(img)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (l *CaptureLoop) store(img image.Image) {
	frame := cloneRGBA(img)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frame = frame
	l.capturedAt = l.cfg.Now()
	select {
	case <-l.first:
	default:
		close(l.first)
	}
}

// cloneRGBA copies img into a new RGBA image with the same bounds.
func cloneRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}
