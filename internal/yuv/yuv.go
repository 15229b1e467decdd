// Package yuv defines the external pixel-conversion interface: turning an
// application-submitted I420 frame + ROI into the accelerator's native
// input shape. The actual YUV<->RGB and resize routines are out of scope
// for this module (spec.md §1 Non-goals); only the interface and a
// passthrough stub used by tests live here.
package yuv

import "github.com/modelingevolution/hailopipe/internal/accel"

// Rect is an axis-aligned integer region of interest in source-frame
// coordinates.
type Rect struct {
	X, Y, W, H int
}

// Converter narrows the pixel-conversion SDK down to the one operation
// the Write stage needs: crop to roi and resize/convert to the model's
// native input shape.
type Converter interface {
	ToModelInput(i420 []byte, frameW, frameH int, roi Rect, dst accel.Metadata) ([]byte, error)
}

// Passthrough is a stub Converter that validates the ROI and returns a
// buffer of the right size without doing real color conversion — enough
// to drive the concurrency machinery in tests without depending on the
// real, out-of-scope pixel routines.
type Passthrough struct{}

// ToModelInput implements Converter.
func (Passthrough) ToModelInput(i420 []byte, frameW, frameH int, roi Rect, dst accel.Metadata) ([]byte, error) {
	if roi.W <= 0 || roi.H <= 0 || roi.X < 0 || roi.Y < 0 || roi.X+roi.W > frameW || roi.Y+roi.H > frameH {
		return nil, errInvalidROI
	}
	return make([]byte, dst.FrameSize), nil
}

type invalidROIError struct{}

func (invalidROIError) Error() string { return "yuv: roi out of frame bounds" }

var errInvalidROI = invalidROIError{}

// ErrInvalidROI is returned by Converter implementations when the ROI
// falls outside the source frame.
var ErrInvalidROI error = errInvalidROI
