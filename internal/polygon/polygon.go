// Package polygon extracts the largest external contour of a
// thresholded mask as an ordered list of integer pixel coordinates,
// backing the C ABI's segment_compute_polygon (spec.md §6).
//
// No example repo in the corpus does contour tracing; the closest
// ecosystem fit, gocv, wraps a system OpenCV install via cgo purely to
// reach cv2.findContours — a heavyweight native dependency to pull in
// for one routine when the algorithm itself (8-connected component
// labeling plus Moore-neighbor boundary tracing) is a self-contained
// ~100 lines with no numerically sensitive parts. Implemented on the
// standard library; see DESIGN.md.
package polygon

// Point is an integer pixel coordinate.
type Point struct {
	X, Y int
}

// LargestContour thresholds mask (row-major, w*h) at >= threshold,
// finds the largest 8-connected foreground component, and traces its
// external boundary. Returns nil if that largest component's boundary
// has 3 or fewer points (matching the C ABI's "return 0" case).
func LargestContour(mask []float32, w, h int, threshold float32) []Point {
	if w <= 0 || h <= 0 || len(mask) < w*h {
		return nil
	}

	fg := func(x, y int) bool {
		if x < 0 || y < 0 || x >= w || y >= h {
			return false
		}
		return mask[y*w+x] >= threshold
	}

	seed, ok := largestComponentSeed(fg, w, h)
	if !ok {
		return nil
	}

	boundary := traceMooreBoundary(fg, seed)
	if len(boundary) <= 3 {
		return nil
	}
	return boundary
}

var neighborOffsets = [8]Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

// largestComponentSeed labels every 8-connected foreground component
// with a BFS flood fill and returns the raster-order-first pixel of the
// largest one.
func largestComponentSeed(fg func(x, y int) bool, w, h int) (Point, bool) {
	visited := make([]bool, w*h)
	var bestSeed Point
	bestSize := 0
	found := false

	queue := make([]Point, 0, 64)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if visited[y*w+x] || !fg(x, y) {
				continue
			}
			seed := Point{x, y}
			size := 0
			queue = queue[:0]
			queue = append(queue, seed)
			visited[y*w+x] = true
			for i := 0; i < len(queue); i++ {
				p := queue[i]
				size++
				for _, d := range neighborOffsets {
					nx, ny := p.X+d.X, p.Y+d.Y
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					idx := ny*w + nx
					if visited[idx] || !fg(nx, ny) {
						continue
					}
					visited[idx] = true
					queue = append(queue, Point{nx, ny})
				}
			}
			if size > bestSize {
				bestSize = size
				bestSeed = seed
				found = true
			}
		}
	}
	return bestSeed, found
}

// traceMooreBoundary implements Moore-neighbor tracing with Jacob's
// stopping criterion: starting at the first foreground pixel found in
// raster-scan order (whose background "discovery" neighbor is always
// west), walk the 8-neighborhood clockwise from the backtrack direction
// to find the next boundary pixel, until the walk returns to the first
// two boundary pixels in the same order.
func traceMooreBoundary(fg func(x, y int) bool, start Point) []Point {
	const maxSteps = 1 << 20 // safety valve against a malformed/non-loop input

	boundary := []Point{start}

	// The pixel immediately west of `start` is guaranteed background
	// because `start` was found scanning left-to-right.
	backtrackIdx := 4 // index of {-1, 0} in neighborOffsets

	cur := start
	idx := backtrackIdx
	var second Point
	foundSecond := false
	for i := 0; i < 8; i++ {
		idx = (idx + 1) % 8
		n := Point{cur.X + neighborOffsets[idx].X, cur.Y + neighborOffsets[idx].Y}
		if fg(n.X, n.Y) {
			second = n
			backtrackIdx = (idx + 4) % 8
			foundSecond = true
			break
		}
	}
	if !foundSecond {
		return boundary // isolated single-pixel component
	}
	boundary = append(boundary, second)

	first := start
	cur = second
	for step := 0; step < maxSteps; step++ {
		idx = backtrackIdx
		var next Point
		foundNext := false
		for i := 0; i < 8; i++ {
			idx = (idx + 1) % 8
			n := Point{cur.X + neighborOffsets[idx].X, cur.Y + neighborOffsets[idx].Y}
			if fg(n.X, n.Y) {
				next = n
				backtrackIdx = (idx + 4) % 8
				foundNext = true
				break
			}
		}
		if !foundNext {
			break
		}
		if cur == first && next == second {
			break
		}
		boundary = append(boundary, next)
		cur = next
	}
	return boundary
}
