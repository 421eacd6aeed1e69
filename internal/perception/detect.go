package perception

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/image/draw"

	"github.com/MrWong99/chacha/internal/observe"
	"github.com/MrWong99/chacha/pkg/vision"
)

// Detection passes. The upscaled pass uses a lower confidence floor to
// recover small or distant objects.
const (
	NativeInputSize   = 640
	NativeConfidence  = 0.25
	UpscaleFactor     = 2
	UpscaleInputSize  = 1024
	UpscaleConfidence = 0.20
)

// Detector runs an engine at native and upscaled resolution.
type Detector struct {
	engine  vision.Engine
	metrics *observe.Metrics
}

// NewDetector returns a Detector over engine. A nil metrics uses
// [observe.DefaultMetrics].
func NewDetector(engine vision.Engine, metrics *observe.Metrics) *Detector {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Detector{engine: engine, metrics: metrics}
}

// DetectMultiScale detects objects in frame at both scales, maps the
// upscaled boxes back to frame coordinates, and merges duplicates with
// [Merge]. A failing upscaled pass is logged and its boxes are skipped; a
// failing native pass is returned as an error.
func (d *Detector) DetectMultiScale(ctx context.Context, frame image.Image) (_ []Detection, err error) {
	ctx, span := observe.StartSpan(ctx, "perception.detect")
	defer func() { observe.EndSpan(span, err) }()
	start := time.Now()
	defer func() { d.metrics.DetectionDuration.Record(ctx, time.Since(start).Seconds()) }()

	native, err := d.engine.Infer(ctx, frame, NativeInputSize, NativeConfidence)
	if err != nil {
		return nil, fmt.Errorf("perception: native pass: %w", err)
	}
	dets := fromBoxes(native)

	small, uerr := d.engine.Infer(ctx, upscale(frame, UpscaleFactor), UpscaleInputSize, UpscaleConfidence)
	if uerr != nil {
		observe.Logger(ctx).Debug("perception: upscaled pass failed", "err", uerr)
	} else {
		origin := frame.Bounds().Min
		for _, det := range fromBoxes(small) {
			det.Box = image.Rect(
				det.Box.Min.X/UpscaleFactor, det.Box.Min.Y/UpscaleFactor,
				det.Box.Max.X/UpscaleFactor, det.Box.Max.Y/UpscaleFactor,
			).Add(origin)
			dets = append(dets, det)
		}
	}

	merged := Merge(dets, MergeIoU)
	span.SetAttributes(attribute.Int("detections.raw", len(dets)), attribute.Int("detections.merged", len(merged)))
	return merged, nil
}

// upscale returns frame enlarged by factor with bilinear interpolation. The
// result's origin is (0,0).
func upscale(frame image.Image, factor int) *image.RGBA {
	b := frame.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.BiLinear.Scale(dst, dst.Bounds(), frame, b, draw.Src, nil)
	return dst
}
