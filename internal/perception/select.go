package perception

import "image"

// Selection tuning.
const (
	// AreaWeight scales how strongly a larger object outranks a smaller one
	// of similar confidence.
	AreaWeight = 5.0

	// InHandOverlap is the fraction of the object's area that must lie
	// inside the person's box for the object to count as held.
	InHandOverlap = 0.15
)

// Select picks the single most relevant detection in a frame with the given
// bounds.
//
// Non-person objects win over people. Each is scored as
// confidence × (1 + AreaWeight × area/frameArea). When a person is also
// present, the winner's InPersonRegion flag is set if more than
// [InHandOverlap] of its area lies inside the first person's box. Without
// any non-person object the most confident person is returned.
func Select(dets []Detection, frame image.Rectangle) (Detection, bool) {
	var persons, others []Detection
	for _, d := range dets {
		if d.IsPerson() {
			persons = append(persons, d)
		} else {
			others = append(others, d)
		}
	}

	if len(others) == 0 {
		if len(persons) == 0 {
			return Detection{}, false
		}
		best := persons[0]
		for _, p := range persons[1:] {
			if p.Confidence > best.Confidence {
				best = p
			}
		}
		return best, true
	}

	frameArea := float64(max(1, frame.Dx()*frame.Dy()))
	score := func(d Detection) float64 {
		return d.Confidence * (1 + AreaWeight*float64(d.Area())/frameArea)
	}
	chosen := others[0]
	for _, o := range others[1:] {
		if score(o) > score(chosen) {
			chosen = o
		}
	}

	chosen.InPersonRegion = false
	if len(persons) > 0 {
		objArea := chosen.Box.Dx() * chosen.Box.Dy()
		if objArea > 0 {
			frac := float64(intersection(chosen.Box, persons[0].Box)) / float64(objArea)
			chosen.InPersonRegion = frac > InHandOverlap
		}
	}
	return chosen, true
}
