// Package vision defines the camera and object-detection contracts used by
// the perception loop.
package vision

import (
	"context"
	"errors"
	"image"
)

// ErrReadFailed is returned by [Camera.ReadFrame] on a transient read failure.
// Callers back off and retry.
var ErrReadFailed = errors.New("vision: frame read failed")

// Box is one raw detection as returned by an [Engine]: a class label, a
// confidence in [0,1], and a bounding box in the pixel space of the image that
// was passed to Infer.
type Box struct {
	Label      string
	Confidence float64
	Rect       image.Rectangle
}

// Area returns the box area in square pixels.
func (b Box) Area() int {
	return b.Rect.Dx() * b.Rect.Dy()
}

// Camera is a polled frame source.
type Camera interface {
	// ReadFrame returns the next frame. The returned image is owned by the
	// caller.
	ReadFrame(ctx context.Context) (image.Image, error)

	// Close releases the device.
	Close() error
}

// Engine runs an object-detection model on a single image.
type Engine interface {
	// Infer resizes img to inputSize×inputSize for the model, drops
	// detections below confFloor, and returns boxes in img's own coordinates.
	Infer(ctx context.Context, img image.Image, inputSize int, confFloor float64) ([]Box, error)

	// Close releases model resources.
	Close() error
}
