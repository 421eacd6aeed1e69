package gocv

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/MrWong99/chacha/pkg/vision"
)

var _ vision.Engine = (*Engine)(nil)

// DefaultNMSThreshold is the per-class IoU threshold applied inside the
// engine before boxes are returned.
const DefaultNMSThreshold = 0.5

// Engine runs a YOLOv8 ONNX export through the OpenCV DNN module. The model
// output is expected as [1, 4+classes, anchors].
type Engine struct {
	labels []string
	nms    float32

	mu  sync.Mutex
	net gocv.Net
}

// LoadEngine reads the ONNX model at path. labels maps class indices to names;
// nil selects the 80 COCO classes.
func LoadEngine(path string, labels []string) (*Engine, error) {
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("gocv: load model %q: empty network", path)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("gocv: set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("gocv: set target: %w", err)
	}
	if labels == nil {
		labels = COCOLabels
	}
	return &Engine{labels: labels, nms: DefaultNMSThreshold, net: net}, nil
}

// Infer implements vision.Engine.
func (e *Engine) Infer(ctx context.Context, img image.Image, inputSize int, confFloor float64) ([]vision.Box, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("gocv: image to mat: %w", err)
	}
	defer src.Close()

	blob := gocv.BlobFromImage(src, 1.0/255.0, image.Pt(inputSize, inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	e.mu.Lock()
	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	e.mu.Unlock()
	defer out.Close()

	dims := out.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("gocv: unexpected output shape %v", dims)
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("gocv: read output: %w", err)
	}

	b := img.Bounds()
	scaleX := float64(b.Dx()) / float64(inputSize)
	scaleY := float64(b.Dy()) / float64(inputSize)
	cands := decodeYOLOv8(data, dims[1], dims[2], confFloor, scaleX, scaleY, b)

	rects := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		rects[i] = c.rect
		scores[i] = c.score
	}
	keep := gocv.NMSBoxes(rects, scores, float32(confFloor), e.nms)

	boxes := make([]vision.Box, 0, len(keep))
	for _, i := range keep {
		c := cands[i]
		boxes = append(boxes, vision.Box{
			Label:      e.label(c.class),
			Confidence: float64(c.score),
			Rect:       c.rect,
		})
	}
	return boxes, nil
}

func (e *Engine) label(class int) string {
	if class >= 0 && class < len(e.labels) {
		return e.labels[class]
	}
	return fmt.Sprintf("class_%d", class)
}

// Close implements vision.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.net.Close()
}
