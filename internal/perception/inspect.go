package perception

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/MrWong99/chacha/internal/observe"
	"github.com/MrWong99/chacha/pkg/speech"
)

// Spoken lines.
const (
	MsgCameraNotReady    = "Camera ready nahi hai. Kripya 'camera on' karke fir se kaho."
	MsgLooking           = "Theek hai, dekh raha hoon."
	MsgNothingVisible    = "Mujhe kuch clearly nazar nahi aaya. Thoda paas laakar dikhaiye."
	MsgContinuousStart   = "Continuous detect mode shuru kar diya. Mujhe 'band karo' bolo rokne ke liye."
	MsgContinuousStop    = "Continuous detect mode band kar diya."
	MsgContinuousRunning = "Continuous detect pehle se chal raha hai."
)

// FrameSource is the part of [CaptureLoop] the inspector uses.
type FrameSource interface {
	Start(ctx context.Context) error
	LatestFrame() (image.Image, bool)
}

// ObjectDetector is the part of [Detector] the inspector uses.
type ObjectDetector interface {
	DetectMultiScale(ctx context.Context, frame image.Image) ([]Detection, error)
}

// InspectorConfig tunes an [Inspector]. Zero fields take the defaults.
type InspectorConfig struct {
	// Cycle is the pause between two continuous-mode decisions. Default: 2s.
	Cycle time.Duration

	// MinConfidence is the lowest confidence worth describing. Default: 0.35.
	MinConfidence float64

	// Cooldown suppresses repeating the same label. Default: 6s.
	Cooldown time.Duration

	// FrameWait is the pause after a cycle found no fresh frame.
	// Default: 500ms.
	FrameWait time.Duration

	// AskFrames, AskSpacing and AskSettle shape a one-shot description:
	// after speaking [MsgLooking] the inspector waits AskSettle, then
	// samples AskFrames frames AskSpacing apart. Defaults: 3, 150ms, 400ms.
	AskFrames  int
	AskSpacing time.Duration
	AskSettle  time.Duration

	// Now returns the current time. Default: time.Now.
	Now func() time.Time

	Metrics *observe.Metrics
}

func (c *InspectorConfig) applyDefaults() {
	if c.Cycle <= 0 {
		c.Cycle = 2 * time.Second
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.35
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 6 * time.Second
	}
	if c.FrameWait <= 0 {
		c.FrameWait = 500 * time.Millisecond
	}
	if c.AskFrames <= 0 {
		c.AskFrames = 3
	}
	if c.AskSpacing <= 0 {
		c.AskSpacing = 150 * time.Millisecond
	}
	if c.AskSettle <= 0 {
		c.AskSettle = 400 * time.Millisecond
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Metrics == nil {
		c.Metrics = observe.DefaultMetrics()
	}
}

// Inspector describes what the camera sees, once on request or
// continuously. The continuous loop is a Stopped/Running state machine;
// the one-shot and continuous paths share the last-announced bookkeeping.
type Inspector struct {
	frames    FrameSource
	detector  ObjectDetector
	describer Describer
	speaker   speech.Speaker
	cfg       InspectorConfig

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	lastLabel string
	lastAt    time.Time
}

// NewInspector wires an inspector. frames or detector may be nil when the
// camera or model is unavailable; every request then answers
// [MsgCameraNotReady]. A nil describer uses [PlainDescriber].
func NewInspector(frames FrameSource, detector ObjectDetector, describer Describer, speaker speech.Speaker, cfg InspectorConfig) *Inspector {
	cfg.applyDefaults()
	if describer == nil {
		describer = PlainDescriber
	}
	return &Inspector{
		frames:    frames,
		detector:  detector,
		describer: describer,
		speaker:   speaker,
		cfg:       cfg,
	}
}

// Ready reports whether a camera and a detector are attached.
func (in *Inspector) Ready() bool {
	return in.frames != nil && in.detector != nil
}

// StartCamera starts frame capture.
func (in *Inspector) StartCamera(ctx context.Context) error {
	if !in.Ready() {
		return ErrNoCamera
	}
	return in.frames.Start(ctx)
}

func (in *Inspector) say(ctx context.Context, text string) {
	if err := in.speaker.Speak(ctx, text); err != nil {
		observe.Logger(ctx).Warn("perception: speak failed", "err", err)
	}
}

// AskAndDescribe samples a few frames, picks the most relevant object and
// describes it.
func (in *Inspector) AskAndDescribe(ctx context.Context) {
	if !in.Ready() {
		in.say(ctx, MsgCameraNotReady)
		return
	}
	frame, ok := in.frames.LatestFrame()
	if !ok {
		in.say(ctx, MsgCameraNotReady)
		return
	}
	in.say(ctx, MsgLooking)
	if !sleep(ctx, in.cfg.AskSettle) {
		return
	}

	best := make(map[detectionKey]Detection)
	var order []detectionKey
	for i := range in.cfg.AskFrames {
		if i > 0 && !sleep(ctx, in.cfg.AskSpacing) {
			return
		}
		f, ok := in.frames.LatestFrame()
		if !ok {
			continue
		}
		dets, err := in.detector.DetectMultiScale(ctx, f)
		if err != nil {
			observe.Logger(ctx).Warn("perception: detection failed", "err", err)
			continue
		}
		for _, d := range dets {
			k := detectionKey{d.Label, d.Box}
			prev, seen := best[k]
			if !seen {
				order = append(order, k)
			}
			if !seen || d.Confidence > prev.Confidence {
				best[k] = d
			}
		}
	}
	merged := make([]Detection, 0, len(order))
	for _, k := range order {
		merged = append(merged, best[k])
	}

	chosen, ok := Select(merged, frame.Bounds())
	if !ok {
		in.say(ctx, MsgNothingVisible)
		return
	}
	if chosen.Confidence < in.cfg.MinConfidence {
		in.say(ctx, fmt.Sprintf("Mujhe pura pakka nahi lag raha (confidence %d%%). Kripya thoda paas laake dikhaiye.",
			int(chosen.Confidence*100)))
		return
	}
	in.announce(ctx, chosen, in.cfg.Now(), "oneshot")
}

type detectionKey struct {
	label string
	box   image.Rectangle
}

// announce speaks the lead sentence and description and records the label.
func (in *Inspector) announce(ctx context.Context, d Detection, at time.Time, mode string) {
	lead := fmt.Sprintf("Yeh yahan nazar aa raha hai. Yeh %s hai.", d.Label)
	if d.InPersonRegion {
		lead = fmt.Sprintf("Yeh aapke haath mein lagta hai. Yeh %s hai.", d.Label)
	}
	in.say(ctx, lead+" "+in.describer.Describe(ctx, d.Label))
	in.cfg.Metrics.RecordAnnouncement(ctx, mode)

	in.mu.Lock()
	in.lastLabel, in.lastAt = d.Label, at
	in.mu.Unlock()
}

// shouldAnnounce applies the confidence floor and the repeat cooldown.
func (in *Inspector) shouldAnnounce(d Detection, now time.Time) bool {
	if d.Confidence < in.cfg.MinConfidence {
		return false
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	return d.Label != in.lastLabel || now.Sub(in.lastAt) > in.cfg.Cooldown
}

// LastAnnounced returns the most recently announced label and when.
func (in *Inspector) LastAnnounced() (string, time.Time) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.lastLabel, in.lastAt
}

// Start enters continuous mode. It reports false, after telling the user,
// when continuous mode is already running or no camera is available.
func (in *Inspector) Start(ctx context.Context) bool {
	if !in.Ready() {
		in.say(ctx, MsgCameraNotReady)
		return false
	}

	in.runMu.Lock()
	if in.cancel != nil {
		in.runMu.Unlock()
		in.say(ctx, MsgContinuousRunning)
		return false
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	in.cancel = cancel
	in.done = make(chan struct{})
	done := in.done
	in.runMu.Unlock()

	if err := in.frames.Start(ctx); err != nil {
		observe.Logger(ctx).Warn("perception: camera start failed", "err", err)
	}
	in.cfg.Metrics.ContinuousInspection.Add(ctx, 1)
	in.say(ctx, MsgContinuousStart)
	go in.loop(loopCtx, done)
	return true
}

// Stop leaves continuous mode and waits for the current cycle to finish.
// It reports whether continuous mode was running.
func (in *Inspector) Stop() bool {
	in.runMu.Lock()
	cancel, done := in.cancel, in.done
	in.runMu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

// Running reports whether continuous mode is active.
func (in *Inspector) Running() bool {
	in.runMu.Lock()
	defer in.runMu.Unlock()
	return in.cancel != nil
}

func (in *Inspector) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		in.runMu.Lock()
		in.cancel, in.done = nil, nil
		in.runMu.Unlock()
		bg := context.WithoutCancel(ctx)
		in.cfg.Metrics.ContinuousInspection.Add(bg, -1)
		in.say(bg, MsgContinuousStop)
		close(done)
	}()

	for ctx.Err() == nil {
		wait := in.cycle(ctx)
		if !sleep(ctx, wait) {
			return
		}
	}
}

// cycle runs one continuous-mode decision and returns how long to wait
// before the next one.
func (in *Inspector) cycle(ctx context.Context) time.Duration {
	frame, ok := in.frames.LatestFrame()
	if !ok {
		return in.cfg.FrameWait
	}
	dets, err := in.detector.DetectMultiScale(ctx, frame)
	if err != nil {
		observe.Logger(ctx).Debug("perception: detection failed", "err", err)
		return in.cfg.Cycle
	}
	chosen, ok := Select(dets, frame.Bounds())
	if !ok {
		return in.cfg.Cycle
	}
	if now := in.cfg.Now(); in.shouldAnnounce(chosen, now) {
		in.announce(ctx, chosen, now, "continuous")
	}
	return in.cfg.Cycle
}

// sleep waits for d or until ctx is done, reporting false in the latter
// case.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
