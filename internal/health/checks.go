package health

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/MrWong99/chacha/internal/resilience"
)

// FrameSource reports the newest fresh camera frame.
// [perception.CaptureLoop] implements it.
type FrameSource interface {
	Running() bool
	LatestFrame() (image.Image, bool)
}

// Camera fails while capture is stopped or the newest frame is stale.
func Camera(src FrameSource) Checker {
	return Checker{
		Name: "camera",
		Check: func(context.Context) error {
			if !src.Running() {
				return errors.New("capture stopped")
			}
			if _, ok := src.LatestFrame(); !ok {
				return errors.New("no fresh frame")
			}
			return nil
		},
	}
}

// Breakers fails while every breaker is open, that is when no backend of a
// failover chain would be tried. An empty list always passes.
func Breakers(name string, breakers ...*resilience.Breaker) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			if len(breakers) == 0 {
				return nil
			}
			var open []string
			for _, b := range breakers {
				if b.State() != resilience.StateOpen {
					return nil
				}
				open = append(open, b.Name())
			}
			return fmt.Errorf("circuit open: %v", open)
		},
	}
}
