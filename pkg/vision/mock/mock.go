// Package mock provides test doubles for vision.Camera and vision.Engine.
package mock

import (
	"context"
	"image"
	"sync"

	"github.com/MrWong99/chacha/pkg/vision"
)

// Camera returns frames from Frames in a loop, or Err when set.
type Camera struct {
	mu sync.Mutex

	// Frames are returned round-robin. Empty means every read fails.
	Frames []image.Image

	// Err, if non-nil, is returned by ReadFrame.
	Err error

	// ReadFunc, if set, overrides Frames and Err.
	ReadFunc func(ctx context.Context) (image.Image, error)

	reads  int
	closed bool
}

// ReadFrame implements vision.Camera.
func (c *Camera) ReadFrame(ctx context.Context) (image.Image, error) {
	c.mu.Lock()
	c.reads++
	n := c.reads
	fn, err, frames := c.ReadFunc, c.Err, c.Frames
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, vision.ErrReadFailed
	}
	return frames[(n-1)%len(frames)], nil
}

// Reads returns the number of ReadFrame calls so far.
func (c *Camera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Close implements vision.Camera.
func (c *Camera) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (c *Camera) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// InferCall records a single Infer invocation.
type InferCall struct {
	Bounds    image.Rectangle
	InputSize int
	ConfFloor float64
}

// Engine returns boxes chosen by InferFunc, or ByInputSize keyed by the
// requested input size.
type Engine struct {
	mu sync.Mutex

	// ByInputSize maps a requested input size to the boxes returned for it.
	ByInputSize map[int][]vision.Box

	// InferFunc, if set, overrides ByInputSize.
	InferFunc func(ctx context.Context, img image.Image, inputSize int, confFloor float64) ([]vision.Box, error)

	// Err, if non-nil, is returned by Infer.
	Err error

	// Calls records every invocation.
	Calls []InferCall
}

// Infer implements vision.Engine.
func (e *Engine) Infer(ctx context.Context, img image.Image, inputSize int, confFloor float64) ([]vision.Box, error) {
	e.mu.Lock()
	e.Calls = append(e.Calls, InferCall{Bounds: img.Bounds(), InputSize: inputSize, ConfFloor: confFloor})
	fn, err := e.InferFunc, e.Err
	boxes := append([]vision.Box(nil), e.ByInputSize[inputSize]...)
	e.mu.Unlock()

	if fn != nil {
		return fn(ctx, img, inputSize, confFloor)
	}
	if err != nil {
		return nil, err
	}
	return boxes, nil
}

// CallCount returns the number of Infer calls.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Calls)
}

// Close implements vision.Engine.
func (e *Engine) Close() error { return nil }

var (
	_ vision.Camera = (*Camera)(nil)
	_ vision.Engine = (*Engine)(nil)
)
