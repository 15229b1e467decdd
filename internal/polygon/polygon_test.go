package polygon

import "testing"

func square(w, h, x0, y0, x1, y1 int) []float32 {
	m := make([]float32, w*h)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			m[y*w+x] = 1
		}
	}
	return m
}

func TestLargestContourTracesASquare(t *testing.T) {
	w, h := 10, 10
	mask := square(w, h, 2, 2, 8, 8)

	pts := LargestContour(mask, w, h, 0.5)
	if len(pts) <= 3 {
		t.Fatalf("expected a traced boundary, got %d points", len(pts))
	}
	for _, p := range pts {
		if p.X < 2 || p.X >= 8 || p.Y < 2 || p.Y >= 8 {
			t.Fatalf("boundary point %v outside the square", p)
		}
	}
}

func TestLargestContourPicksBiggerOfTwoComponents(t *testing.T) {
	w, h := 20, 20
	mask := square(w, h, 1, 1, 4, 4)   // small: 3x3 = 9 px
	big := square(w, h, 10, 10, 18, 18) // big: 8x8 = 64 px
	for i := range big {
		if big[i] > 0 {
			mask[i] = 1
		}
	}

	pts := LargestContour(mask, w, h, 0.5)
	for _, p := range pts {
		if p.X < 10 {
			t.Fatalf("expected boundary in the larger component, got point in small one: %v", p)
		}
	}
}

func TestLargestContourReturnsNilBelowThreeBoundaryPoints(t *testing.T) {
	w, h := 5, 5
	mask := make([]float32, w*h)
	mask[2*w+2] = 1 // single isolated pixel

	pts := LargestContour(mask, w, h, 0.5)
	if pts != nil {
		t.Fatalf("expected nil for an isolated pixel, got %v", pts)
	}
}

func TestLargestContourEmptyMaskReturnsNil(t *testing.T) {
	w, h := 5, 5
	mask := make([]float32, w*h)
	if got := LargestContour(mask, w, h, 0.5); got != nil {
		t.Fatalf("expected nil for all-background mask, got %v", got)
	}
}
