// Package decode defines the external YOLOv8 tensor-to-detection decoder
// interface. The decoder itself — tensor dequantization, anchor decoding,
// softmax, NMS, mask sigmoid/crop — is out of scope for this module (see
// spec.md §1 Non-goals); only the narrow interface and a deterministic
// stub implementation used by tests live here.
package decode

// Rect is an axis-aligned integer rectangle, (x, y) top-left, w/h extent.
type Rect struct {
	X, Y, W, H int
}

// RectF is a floating-point bounding box as returned by the decoder.
type RectF struct {
	X, Y, W, H float32
}

// Size is a width/height pair.
type Size struct {
	W, H int
}

// Detection is one decoded object: class, label, confidence and bbox.
// The decoder is a pure function from raw tensors to (detection, mask)
// pairs — see AnchorConfig and Decoder below.
type Detection struct {
	ClassID    int
	Label      string
	Confidence float32
	Bbox       RectF
}

// Mask is a flat row-major float32 buffer sized Resolution.W*Resolution.H,
// one value per pixel of the original image, produced by mask
// sigmoid/crop inside the decoder.
type Mask struct {
	Resolution Size
	Data       []float32
}

// AnchorConfig is the fixed anchor configuration spec.md §4.1.4 requires
// PostProcess to pass on every invocation.
type AnchorConfig struct {
	Strides          []int
	RegressionLength int
	NumClasses       int
}

// DefaultAnchorConfig is the YOLOv8seg configuration mandated by spec.md
// §4.1.4: strides {8,16,32}, regression length 15, 80 COCO classes.
func DefaultAnchorConfig() AnchorConfig {
	return AnchorConfig{
		Strides:          []int{8, 16, 32},
		RegressionLength: 15,
		NumClasses:       80,
	}
}

// TensorPlane is one of the N raw output buffers read from the
// accelerator for a single inference, tagged with the originating
// output-stream width so PostProcess can sort planes before decoding
// (spec.md §4.1.4 step 1).
type TensorPlane struct {
	StreamIndex int
	Width       int
	Data        []byte
	QuantZeroPt float32
	QuantScale  float32
}

// NetworkDims is the fixed network input size the model was compiled for.
type NetworkDims struct {
	Width, Height int
}

// Decoder is the external collaborator that turns raw accelerator output
// tensors into detections and per-instance masks. Implementations are
// pure functions of their inputs: no shared state, no I/O.
type Decoder interface {
	Decode(tensors []TensorPlane, dims NetworkDims, anchors AnchorConfig, origW, origH int) ([]Detection, []Mask, error)
}
