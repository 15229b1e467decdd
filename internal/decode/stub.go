package decode

import "sync/atomic"

// StubDecoder is a deterministic fake used by tests and by
// `pipelinectl run --simulate`. It returns a fixed number of detections,
// each with a synthetic mask, independent of the tensor content.
type StubDecoder struct {
	// Count is the number of (detection, mask) pairs to return per call.
	Count int
	// MaskSize is the resolution of the synthetic masks.
	MaskSize Size
	calls    atomic.Int64
}

// NewStubDecoder returns a StubDecoder producing count detections per frame.
func NewStubDecoder(count int, maskSize Size) *StubDecoder {
	return &StubDecoder{Count: count, MaskSize: maskSize}
}

// Decode implements Decoder. It ignores the tensor content and returns
// Count synthetic detections with ascending confidence, so tests can
// exercise threshold filtering deterministically if they choose to.
func (d *StubDecoder) Decode(_ []TensorPlane, _ NetworkDims, _ AnchorConfig, origW, origH int) ([]Detection, []Mask, error) {
	d.calls.Add(1)

	dets := make([]Detection, d.Count)
	masks := make([]Mask, d.Count)
	for i := 0; i < d.Count; i++ {
		conf := 0.5 + float32(i)*0.05
		dets[i] = Detection{
			ClassID:    i % 80,
			Label:      "object",
			Confidence: conf,
			Bbox:       RectF{X: 0, Y: 0, W: float32(origW), H: float32(origH)},
		}
		masks[i] = Mask{
			Resolution: d.MaskSize,
			Data:       make([]float32, d.MaskSize.W*d.MaskSize.H),
		}
	}
	return dets, masks, nil
}

// Calls returns the number of times Decode has been invoked.
func (d *StubDecoder) Calls() int64 {
	return d.calls.Load()
}
