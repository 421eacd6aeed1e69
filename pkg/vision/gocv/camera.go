// Package gocv implements the vision contracts on OpenCV through
// gocv.io/x/gocv: a V4L/DirectShow camera and a YOLOv8 ONNX detector run on
// the OpenCV DNN module.
package gocv

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/MrWong99/chacha/pkg/vision"
)

var _ vision.Camera = (*Camera)(nil)

// Camera reads frames from a local capture device.
type Camera struct {
	mu  sync.Mutex
	dev *gocv.VideoCapture
	buf gocv.Mat
}

// OpenCamera opens device (an index such as 0, or a URL/path) and requests
// the given resolution. Zero width or height keeps the driver default.
func OpenCamera(device any, width, height int) (*Camera, error) {
	dev, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("gocv: open camera %v: %w", device, err)
	}
	if width > 0 && height > 0 {
		dev.Set(gocv.VideoCaptureFrameWidth, float64(width))
		dev.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	return &Camera{dev: dev, buf: gocv.NewMat()}, nil
}

// ReadFrame implements vision.Camera.
func (c *Camera) ReadFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev == nil {
		return nil, fmt.Errorf("gocv: camera closed: %w", vision.ErrReadFailed)
	}
	if ok := c.dev.Read(&c.buf); !ok || c.buf.Empty() {
		return nil, vision.ErrReadFailed
	}
	img, err := c.buf.ToImage()
	if err != nil {
		return nil, fmt.Errorf("gocv: convert frame: %w", err)
	}
	return img, nil
}

// Close implements vision.Camera.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev == nil {
		return nil
	}
	err := c.dev.Close()
	c.dev = nil
	if cerr := c.buf.Close(); err == nil {
		err = cerr
	}
	return err
}
