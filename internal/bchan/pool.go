package bchan

import "sync"

// maskPool provides pooled float32 mask buffers to avoid hot-path
// allocations in PostProcess, the same way the teacher's queue package
// pools byte buffers for I/O (internal/queue/pool.go): size-bucketed
// sync.Pool instances keyed by the accelerator's three native mask
// resolutions, using the pointer-to-slice pattern to avoid sync.Pool's
// interface-boxing overhead.
const (
	mask160 = 160 * 160
	mask320 = 320 * 320
	mask640 = 640 * 640
)

var maskPool = struct {
	p160 sync.Pool
	p320 sync.Pool
	p640 sync.Pool
}{
	p160: sync.Pool{New: func() any { b := make([]float32, mask160); return &b }},
	p320: sync.Pool{New: func() any { b := make([]float32, mask320); return &b }},
	p640: sync.Pool{New: func() any { b := make([]float32, mask640); return &b }},
}

// GetMaskBuffer returns a pooled float32 buffer sized to hold w*h
// elements. Non-standard sizes fall back to a fresh allocation (not
// pooled). Callers must call PutMaskBuffer when the buffer is no longer
// referenced by any in-flight result.
func GetMaskBuffer(w, h int) []float32 {
	n := w * h
	switch n {
	case mask160:
		return (*maskPool.p160.Get().(*[]float32))[:n]
	case mask320:
		return (*maskPool.p320.Get().(*[]float32))[:n]
	case mask640:
		return (*maskPool.p640.Get().(*[]float32))[:n]
	default:
		return make([]float32, n)
	}
}

// PutMaskBuffer returns buf to its size bucket. Buffers whose capacity
// doesn't match a known bucket are dropped for GC instead of pooled.
func PutMaskBuffer(buf []float32) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case mask160:
		maskPool.p160.Put(&buf)
	case mask320:
		maskPool.p320.Put(&buf)
	case mask640:
		maskPool.p640.Put(&buf)
	}
}
