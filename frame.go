package hailopipe

// Rect is an axis-aligned integer region of interest, in source-frame
// pixel coordinates.
type Rect struct {
	X, Y, W, H int
}

// FrameIdentifier correlates a submission with the application's own
// notion of camera and frame numbering. The pipeline never orders or
// deduplicates by FrameIdentifier — only by submission order — so two
// frames may legally share one.
type FrameIdentifier struct {
	CameraID uint32
	FrameID  uint64
}

// FrameContext is the unit of work that travels Write -> ReadAndJoin ->
// PostProcess -> Callback. It is owned by exactly one stage (or one
// channel slot) at a time; Release must be called exactly once on every
// exit path (delivered, dropped, or drained at shutdown).
type FrameContext struct {
	ID        FrameIdentifier
	Roi       Rect
	Threshold float32

	// Iteration is assigned atomically inside the write critical section
	// and is the value reported to every StageStats.
	Iteration uint64

	// Result is populated by PostProcess; nil until then, and for frames
	// dropped before reaching PostProcess.
	Result *SegmentationResult

	Write            StopWatch
	InferenceAndRead StopWatch
	PostProcess      StopWatch
	Total            StopWatch

	// nativeInput is the device-shaped buffer produced by the Write
	// stage's pixel conversion; owned by the ctx until consumed by the
	// accelerator input stream.
	nativeInput []byte
}

// newFrameContext creates a FrameContext for submission, starting its
// Total and Write stopwatches.
func newFrameContext(id FrameIdentifier, roi Rect, threshold float32) *FrameContext {
	ctx := &FrameContext{ID: id, Roi: roi, Threshold: threshold}
	ctx.Total.Start()
	ctx.Write.Start()
	return ctx
}

// Release is idempotent-by-convention (callers must not call it twice);
// it exists so the exactly-once-release discipline has one named
// exit point to grep for, the way the teacher's backend.go names its
// release paths explicitly rather than relying on deferred cleanup.
func (ctx *FrameContext) Release() {
	ctx.Result = nil
	ctx.nativeInput = nil
}
