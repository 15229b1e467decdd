package hailopipe

import "github.com/modelingevolution/hailopipe/internal/bchan"

// Segment is one detected/segmented instance: a class, a confidence, a
// bounding box, and an opaque mask sized to Resolution.
type Segment struct {
	ClassID    int
	Label      string
	Resolution Size
	Bbox       RectF
	Confidence float32

	// Mask is a row-major Resolution.W*Resolution.H float matrix produced
	// by the external decoder; values are typically in [0,1] before the
	// caller's own threshold is applied.
	Mask []float32
}

// Size is a 2-D integer extent.
type Size struct {
	W, H int
}

// RectF is a floating-point axis-aligned rectangle, used for detector
// bounding boxes which are sub-pixel.
type RectF struct {
	X, Y, W, H float32
}

// SegmentationResult is PostProcess's output: every detected Segment
// plus the submission metadata needed to correlate it back to the
// application's request.
type SegmentationResult struct {
	ID        FrameIdentifier
	Roi       Rect
	Threshold float32
	Segments  []Segment

	// UncertainCounter counts segments whose confidence falls within 0.05
	// of Threshold on either side (the C ABI exposes this via
	// result_uncertain_counter).
	UncertainCounter int
}

// Release drops the result's backing buffers, returning pooled mask
// buffers to internal/bchan's pool. Safe to call once the result has
// been handed to (and returned from) the user callback.
func (r *SegmentationResult) Release() {
	if r == nil {
		return
	}
	for i := range r.Segments {
		if r.Segments[i].Mask != nil {
			bchan.PutMaskBuffer(r.Segments[i].Mask)
		}
	}
	r.Segments = nil
}
