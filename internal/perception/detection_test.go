package perception

import (
	"image"
	"testing"
)

func det(label string, conf float64, x0, y0, x1, y1 int) Detection {
	return Detection{Label: label, Confidence: conf, Box: image.Rect(x0, y0, x1, y1)}
}

func TestIoU(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b Detection
		want float64
	}{
		{"identical", det("a", 1, 0, 0, 10, 10), det("b", 1, 0, 0, 10, 10), 1},
		{"disjoint", det("a", 1, 0, 0, 10, 10), det("b", 1, 20, 20, 30, 30), 0},
		{"half overlap", det("a", 1, 0, 0, 10, 10), det("b", 1, 5, 0, 15, 10), 50.0 / 150.0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IoU(tc.a, tc.b); got != tc.want {
				t.Errorf("IoU = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMerge_KeepsHigherConfidenceDuplicate(t *testing.T) {
	t.Parallel()

	low := det("cup", 0.4, 0, 0, 100, 100)
	high := det("cup", 0.8, 5, 5, 105, 105) // IoU ≈ 0.82
	far := det("book", 0.3, 300, 300, 350, 350)

	got := Merge([]Detection{low, far, high}, MergeIoU)
	if len(got) != 2 {
		t.Fatalf("Merge kept %d detections, want 2: %+v", len(got), got)
	}
	if got[0] != high {
		t.Errorf("first kept = %+v, want %+v", got[0], high)
	}
	if got[1] != far {
		t.Errorf("second kept = %+v, want %+v", got[1], far)
	}
}

func TestMerge_BelowThresholdKeepsBoth(t *testing.T) {
	t.Parallel()
	a := det("cup", 0.9, 0, 0, 10, 10)
	b := det("cup", 0.5, 5, 0, 15, 10) // IoU 1/3
	if got := Merge([]Detection{a, b}, MergeIoU); len(got) != 2 {
		t.Errorf("Merge kept %d, want 2", len(got))
	}
}

func TestSelect(t *testing.T) {
	t.Parallel()

	frame := image.Rect(0, 0, 640, 480)

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		if _, ok := Select(nil, frame); ok {
			t.Error("Select(nil) reported a detection")
		}
	})

	t.Run("only people picks most confident", func(t *testing.T) {
		t.Parallel()
		got, ok := Select([]Detection{det("person", 0.6, 0, 0, 10, 10), det("Person", 0.9, 50, 50, 60, 60)}, frame)
		if !ok || got.Confidence != 0.9 {
			t.Errorf("Select = %+v, %v", got, ok)
		}
	})

	t.Run("object held by person", func(t *testing.T) {
		t.Parallel()
		person := det("person", 0.9, 0, 0, 40, 25)  // area 1000
		bottle := det("bottle", 0.5, 0, 0, 100, 50) // area 5000, covers the person
		got, ok := Select([]Detection{person, bottle}, frame)
		if !ok || got.Label != "bottle" {
			t.Fatalf("Select = %+v, %v; want bottle", got, ok)
		}
		if !got.InPersonRegion {
			t.Error("InPersonRegion = false, want true")
		}
	})

	t.Run("object inside person box", func(t *testing.T) {
		t.Parallel()
		person := det("person", 0.9, 0, 0, 300, 400)
		phone := det("cell phone", 0.5, 100, 100, 150, 200)
		got, _ := Select([]Detection{person, phone}, frame)
		if got.Label != "cell phone" || !got.InPersonRegion {
			t.Errorf("Select = %+v", got)
		}
	})

	t.Run("larger object outranks more confident small one", func(t *testing.T) {
		t.Parallel()
		small := det("mouse", 0.6, 0, 0, 10, 10)        // score ≈ 0.6
		large := det("laptop", 0.5, 100, 100, 400, 400) // score ≈ 0.5 × (1 + 5 × 0.29)
		got, _ := Select([]Detection{small, large}, frame)
		if got.Label != "laptop" {
			t.Errorf("Select = %q, want laptop", got.Label)
		}
		if got.InPersonRegion {
			t.Error("InPersonRegion set without a person")
		}
	})

	t.Run("object away from person", func(t *testing.T) {
		t.Parallel()
		person := det("person", 0.9, 0, 0, 100, 100)
		chair := det("chair", 0.7, 400, 300, 500, 450)
		got, _ := Select([]Detection{person, chair}, frame)
		if got.InPersonRegion {
			t.Error("InPersonRegion = true for a distant object")
		}
	})
}
