// Package perception turns camera frames into spoken object descriptions.
//
// A [CaptureLoop] keeps a single fresh frame in memory. A [Detector] runs
// the detection engine at two scales and merges the results. [Select] picks
// the most interesting object. An [Inspector] describes it once on request
// or keeps describing in continuous mode, suppressing repeats within a
// cooldown window.
package perception

import (
	"image"
	"slices"
	"strings"

	"github.com/MrWong99/chacha/pkg/vision"
)

// PersonLabel is the class label treated as a person.
const PersonLabel = "person"

// Detection is one object seen in one frame.
type Detection struct {
	Label      string
	Confidence float64
	// Box is in source-frame pixel coordinates.
	Box image.Rectangle
	// InPersonRegion is set by [Select] when the object overlaps a person,
	// which is read as "held in hand".
	InPersonRegion bool
}

// Area is the box area, at least 1.
func (d Detection) Area() int {
	return max(1, d.Box.Dx()*d.Box.Dy())
}

// IsPerson reports whether the detection is a person.
func (d Detection) IsPerson() bool {
	return strings.EqualFold(d.Label, PersonLabel)
}

func fromBoxes(boxes []vision.Box) []Detection {
	out := make([]Detection, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, Detection{Label: b.Label, Confidence: b.Confidence, Box: b.Rect.Canon()})
	}
	return out
}

// intersection returns the overlapping area of a and b, or 0.
func intersection(a, b image.Rectangle) int {
	in := a.Intersect(b)
	return in.Dx() * in.Dy()
}

// IoU is the intersection-over-union of two detections.
func IoU(a, b Detection) float64 {
	inter := intersection(a.Box, b.Box)
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// MergeIoU is the overlap above which two detections count as the same
// object.
const MergeIoU = 0.45

// Merge sorts dets by descending confidence and greedily drops every
// detection whose IoU with an already kept one exceeds threshold. The
// input slice is not modified.
func Merge(dets []Detection, threshold float64) []Detection {
	sorted := slices.Clone(dets)
	slices.SortStableFunc(sorted, func(a, b Detection) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return 0
	})

	kept := make([]Detection, 0, len(sorted))
	for _, d := range sorted {
		dup := false
		for _, k := range kept {
			if IoU(d, k) > threshold {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, d)
		}
	}
	return kept
}
