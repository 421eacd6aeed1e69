package gocv

import "image"

type candidate struct {
	class int
	score float32
	rect  image.Rectangle
}

// decodeYOLOv8 reads a channel-major YOLOv8 output tensor (attrs rows of
// anchors columns: cx, cy, w, h, then one score per class) and returns every
// anchor whose best class score reaches confFloor. Boxes are scaled back to
// the source image and clipped to bounds. NMS is left to the caller.
func decodeYOLOv8(data []float32, attrs, anchors int, confFloor, scaleX, scaleY float64, bounds image.Rectangle) []candidate {
	if attrs < 5 || len(data) < attrs*anchors {
		return nil
	}
	at := func(row, col int) float32 { return data[row*anchors+col] }

	var out []candidate
	for i := 0; i < anchors; i++ {
		best, bestScore := -1, float32(0)
		for c := 4; c < attrs; c++ {
			if s := at(c, i); s > bestScore {
				best, bestScore = c-4, s
			}
		}
		if best < 0 || float64(bestScore) < confFloor {
			continue
		}
		cx, cy := float64(at(0, i)), float64(at(1, i))
		w, h := float64(at(2, i)), float64(at(3, i))
		r := image.Rect(
			int((cx-w/2)*scaleX),
			int((cy-h/2)*scaleY),
			int((cx+w/2)*scaleX),
			int((cy+h/2)*scaleY),
		).Intersect(bounds)
		if r.Empty() {
			continue
		}
		out = append(out, candidate{class: best, score: bestScore, rect: r})
	}
	return out
}
