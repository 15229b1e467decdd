//go:build cgo

package main

/*
#include <stdint.h>
#include <stdlib.h>

typedef struct __attribute__((packed)) {
    uint64_t processed;
    uint64_t dropped;
    uint64_t last_iteration;
    uint64_t behind;
    int64_t  total_processing_time_ns;
    int32_t  thread_count;
} stage_dto;

typedef struct __attribute__((packed)) {
    stage_dto write;
    stage_dto read_join;
    stage_dto post;
    stage_dto callback;
    stage_dto total;
    uint64_t  in_flight;
    uint64_t  dropped_total;
} stats_dto;

typedef void (*result_callback)(uintptr_t result_handle, uintptr_t user_ctx);

static void call_result_callback(result_callback cb, uintptr_t result_handle, uintptr_t user_ctx) {
    if (cb != 0) {
        cb(result_handle, user_ctx);
    }
}
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/modelingevolution/hailopipe"
	"github.com/modelingevolution/hailopipe/internal/accel"
	"github.com/modelingevolution/hailopipe/internal/decode"
	"github.com/modelingevolution/hailopipe/internal/polygon"
	"github.com/modelingevolution/hailopipe/internal/stats"
	"github.com/modelingevolution/hailopipe/internal/yuv"
)

// processLoadError is a last-resort fallback for get_last_error() calls
// made without a pipeline handle in hand (e.g. immediately after a
// failed pipeline_load, before any handle exists to scope the error to).
var processLoadError struct {
	mu  sync.Mutex
	msg string
}

//export pipeline_load
func pipeline_load(path *C.char, simulate C.int) C.uintptr_t {
	modelPath := C.GoString(path)

	cfg := hailopipe.DefaultConfig()
	cfg.Converter = yuv.Passthrough{}
	cfg.Decoder = decode.NewStubDecoder(1, decode.Size{W: 160, H: 160})
	cfg.Anchors = decode.DefaultAnchorConfig()

	var device accel.Device
	if simulate != 0 {
		device = accel.NewStub(accel.StubConfig{Metadata: accel.Metadata{
			InputWidth: 640, InputHeight: 640, InputChannels: 3,
			FrameSize: 640 * 640 * 3, NumOutputs: 1,
			OutputWidths: []int{640},
			OutputQuant:  []accel.OutputQuant{{Scale: 1}},
		}})
	}

	p, err := hailopipe.Load(modelPath, cfg, device)
	if err != nil {
		processLoadError.mu.Lock()
		processLoadError.msg = err.Error()
		processLoadError.mu.Unlock()
		return 0
	}

	h := &handle{pipeline: p}
	return C.uintptr_t(register(h))
}

//export pipeline_start_async
func pipeline_start_async(hid C.uintptr_t, cb C.result_callback, userCtx C.uintptr_t) C.int {
	h := lookup(uintptr(hid))
	if h == nil || h.pipeline == nil {
		return -1
	}

	trampoline := func(result *hailopipe.SegmentationResult, _ any) {
		// The pipeline releases result as soon as this callback returns,
		// so the C caller gets its own copy, kept until result_dispose.
		owned := *result
		owned.Segments = make([]hailopipe.Segment, len(result.Segments))
		for i, seg := range result.Segments {
			seg.Mask = append([]float32(nil), seg.Mask...)
			owned.Segments[i] = seg
		}
		rh := &handle{result: &owned}
		rid := register(rh)
		C.call_result_callback(cb, C.uintptr_t(rid), userCtx)
	}

	if err := h.pipeline.Start(trampoline, nil, 0, 0); err != nil {
		h.setError(err)
		return -1
	}
	return 0
}

//export pipeline_write_frame
func pipeline_write_frame(hid C.uintptr_t, buf *C.uint8_t, bufLen C.int,
	cameraID C.uint32_t, frameID C.uint64_t,
	frameW, frameH C.int,
	roiX, roiY, roiW, roiH C.int,
	threshold C.float) C.int {
	h := lookup(uintptr(hid))
	if h == nil || h.pipeline == nil {
		return -1
	}

	frame := C.GoBytes(unsafe.Pointer(buf), bufLen)
	roi := hailopipe.Rect{X: int(roiX), Y: int(roiY), W: int(roiW), H: int(roiH)}
	id := hailopipe.FrameIdentifier{CameraID: uint32(cameraID), FrameID: uint64(frameID)}

	if err := h.pipeline.Submit(frame, int(frameW), int(frameH), roi, id, float32(threshold)); err != nil {
		h.setError(err)
		return -1
	}
	return 0
}

//export pipeline_stop
func pipeline_stop(hid C.uintptr_t) {
	h := lookup(uintptr(hid))
	if h == nil || h.pipeline == nil {
		return
	}
	h.pipeline.Stop()
	unregister(uintptr(hid))
}

//export pipeline_update_stats
func pipeline_update_stats(hid C.uintptr_t, out *C.stats_dto) C.int {
	h := lookup(uintptr(hid))
	if h == nil || h.pipeline == nil || out == nil {
		return -1
	}

	buf := make([]byte, stats.PipelineStatsDtoSize)
	h.pipeline.Stats().MarshalInto(buf)

	dst := unsafe.Slice((*C.uint8_t)(unsafe.Pointer(out)), stats.PipelineStatsDtoSize)
	for i, b := range buf {
		dst[i] = C.uint8_t(b)
	}
	return 0
}

//export pipeline_get_confidence
func pipeline_get_confidence(hid C.uintptr_t) C.float {
	h := lookup(uintptr(hid))
	if h == nil || h.pipeline == nil {
		return 0
	}
	return C.float(h.pipeline.ConfidenceThreshold())
}

//export pipeline_set_confidence
func pipeline_set_confidence(hid C.uintptr_t, value C.float) {
	h := lookup(uintptr(hid))
	if h == nil || h.pipeline == nil {
		return
	}
	h.pipeline.SetConfidenceThreshold(float32(value))
}

//export result_count
func result_count(rid C.uintptr_t) C.int {
	h := lookup(uintptr(rid))
	if h == nil || h.result == nil {
		return 0
	}
	return C.int(len(h.result.Segments))
}

//export result_get
func result_get(rid C.uintptr_t, index C.int) C.uintptr_t {
	h := lookup(uintptr(rid))
	if h == nil || h.result == nil || int(index) < 0 || int(index) >= len(h.result.Segments) {
		return 0
	}
	seg := &h.result.Segments[index]
	sh := &handle{}
	sh.segment = seg
	sh.resultOwner = h.result
	return C.uintptr_t(register(sh))
}

//export result_id
func result_id(rid C.uintptr_t, outCameraID *C.uint32_t, outFrameID *C.uint64_t) C.int {
	h := lookup(uintptr(rid))
	if h == nil || h.result == nil {
		return -1
	}
	*outCameraID = C.uint32_t(h.result.ID.CameraID)
	*outFrameID = C.uint64_t(h.result.ID.FrameID)
	return 0
}

//export result_roi
func result_roi(rid C.uintptr_t, outX, outY, outW, outH *C.int) C.int {
	h := lookup(uintptr(rid))
	if h == nil || h.result == nil {
		return -1
	}
	*outX = C.int(h.result.Roi.X)
	*outY = C.int(h.result.Roi.Y)
	*outW = C.int(h.result.Roi.W)
	*outH = C.int(h.result.Roi.H)
	return 0
}

//export result_threshold
func result_threshold(rid C.uintptr_t) C.float {
	h := lookup(uintptr(rid))
	if h == nil || h.result == nil {
		return 0
	}
	return C.float(h.result.Threshold)
}

//export result_uncertain_counter
func result_uncertain_counter(rid C.uintptr_t) C.int {
	h := lookup(uintptr(rid))
	if h == nil || h.result == nil {
		return 0
	}
	return C.int(h.result.UncertainCounter)
}

//export result_dispose
func result_dispose(rid C.uintptr_t) {
	h := lookup(uintptr(rid))
	if h == nil {
		return
	}
	if h.result != nil {
		registryMu.Lock()
		for id, sh := range registry {
			if sh.resultOwner == h.result {
				delete(registry, id)
			}
		}
		registryMu.Unlock()
		h.result.Release()
	}
	unregister(uintptr(rid))
}

//export segment_get_confidence
func segment_get_confidence(sid C.uintptr_t) C.float {
	h := lookup(uintptr(sid))
	if h == nil || h.segment == nil {
		return 0
	}
	return C.float(h.segment.Confidence)
}

//export segment_get_classid
func segment_get_classid(sid C.uintptr_t) C.int {
	h := lookup(uintptr(sid))
	if h == nil || h.segment == nil {
		return -1
	}
	return C.int(h.segment.ClassID)
}

//export segment_get_label
func segment_get_label(sid C.uintptr_t) *C.char {
	h := lookup(uintptr(sid))
	if h == nil || h.segment == nil {
		return nil
	}
	return C.CString(h.segment.Label)
}

//export segment_get_bbox
func segment_get_bbox(sid C.uintptr_t, outX, outY, outW, outH *C.float) C.int {
	h := lookup(uintptr(sid))
	if h == nil || h.segment == nil {
		return -1
	}
	*outX = C.float(h.segment.Bbox.X)
	*outY = C.float(h.segment.Bbox.Y)
	*outW = C.float(h.segment.Bbox.W)
	*outH = C.float(h.segment.Bbox.H)
	return 0
}

//export segment_get_resolution
func segment_get_resolution(sid C.uintptr_t, outW, outH *C.int) C.int {
	h := lookup(uintptr(sid))
	if h == nil || h.segment == nil {
		return -1
	}
	*outW = C.int(h.segment.Resolution.W)
	*outH = C.int(h.segment.Resolution.H)
	return 0
}

//export segment_get_data
func segment_get_data(sid C.uintptr_t, out *C.float, maxLen C.int) C.int {
	h := lookup(uintptr(sid))
	if h == nil || h.segment == nil {
		return 0
	}
	n := len(h.segment.Mask)
	if int(maxLen) < n {
		n = int(maxLen)
	}
	dst := unsafe.Slice((*C.float)(unsafe.Pointer(out)), n)
	for i := 0; i < n; i++ {
		dst[i] = C.float(h.segment.Mask[i])
	}
	return C.int(n)
}

// segment_compute_polygon thresholds the segment's mask, finds its
// largest external contour, and writes up to max_len/2 (x, y) pairs as
// consecutive ints into int_buf. Returns 2 * points_written, or 0 if the
// contour has <= 3 points (spec.md §6).
//
//export segment_compute_polygon
func segment_compute_polygon(sid C.uintptr_t, threshold C.float, intBuf *C.int32_t, maxLen C.int) C.int {
	h := lookup(uintptr(sid))
	if h == nil || h.segment == nil {
		return 0
	}
	seg := h.segment
	pts := polygon.LargestContour(seg.Mask, seg.Resolution.W, seg.Resolution.H, float32(threshold))
	if len(pts) <= 3 {
		return 0
	}

	maxPoints := int(maxLen) / 2
	if len(pts) > maxPoints {
		pts = pts[:maxPoints]
	}

	dst := unsafe.Slice((*C.int32_t)(unsafe.Pointer(intBuf)), len(pts)*2)
	for i, p := range pts {
		dst[2*i] = C.int32_t(p.X)
		dst[2*i+1] = C.int32_t(p.Y)
	}
	return C.int(len(pts) * 2)
}

//export get_last_error
func get_last_error(hid C.uintptr_t) *C.char {
	if hid == 0 {
		processLoadError.mu.Lock()
		msg := processLoadError.msg
		processLoadError.mu.Unlock()
		if msg == "" {
			return nil
		}
		return C.CString(msg)
	}
	h := lookup(uintptr(hid))
	if h == nil {
		return nil
	}
	msg := h.getError()
	if msg == "" {
		return nil
	}
	return C.CString(msg)
}

func main() {}
