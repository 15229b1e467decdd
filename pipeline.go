// Package hailopipe implements a host-side asynchronous inference
// pipeline that drives a fixed-function accelerator doing YOLOv8
// instance segmentation: a four-stage concurrent dataflow (Write ->
// ReadAndJoin -> PostProcess -> Callback) built on a bounded FIFO
// channel, per-stage statistics, and a join barrier across the
// accelerator's independently-streamed output tensor planes.
package hailopipe

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelingevolution/hailopipe/internal/accel"
	"github.com/modelingevolution/hailopipe/internal/bchan"
	"github.com/modelingevolution/hailopipe/internal/decode"
	"github.com/modelingevolution/hailopipe/internal/logging"
	"github.com/modelingevolution/hailopipe/internal/metrics"
	"github.com/modelingevolution/hailopipe/internal/stats"
	"github.com/modelingevolution/hailopipe/internal/yuv"
	"golang.org/x/sys/unix"
)

// Callback is user code invoked once per delivered frame. It must not
// retain result beyond the call.
type Callback func(result *SegmentationResult, userContext any)

// Config controls channel capacities, drop policies, worker counts, and
// the pre-admission backlog threshold. DefaultConfig mirrors spec.md
// §4.1.1's literal capacities.
type Config struct {
	WriteCap, ReadCap, PostCap, CallbackCap int
	WritePolicy, PostPolicy, CallbackPolicy bchan.Policy

	PostWorkers     int
	CallbackWorkers int

	ReadJoinTimeout time.Duration
	PostTimeout     time.Duration
	CallbackTimeout time.Duration

	// ReadJoinBacklogLimit gates admission: submit() drops when
	// read_join.Behind() >= this value (spec.md §4.1.2, §9 Open Question 2).
	ReadJoinBacklogLimit uint64

	DefaultConfidence float32

	// ReaderAffinity, if non-empty, pins reader thread i to CPU
	// ReaderAffinity[i % len(ReaderAffinity)] the way the teacher's
	// queue runners pin one OS thread per hardware queue.
	ReaderAffinity []int

	Converter yuv.Converter
	Decoder   decode.Decoder
	Anchors   decode.AnchorConfig

	Logger *logging.Logger

	// Observer receives per-stage latency/drop/backlog events in
	// addition to the StageStats counters; an optional hook for
	// operators who want percentiles. Defaults to metrics.NoOpObserver{}.
	Observer metrics.Observer
}

// DefaultConfig returns the spec's literal defaults: cap 2/2/4/2, all
// drop-oldest, post-workers = host core count, callback-workers = 2.
func DefaultConfig() Config {
	return Config{
		WriteCap: 2, ReadCap: 2, PostCap: 4, CallbackCap: 2,
		WritePolicy: bchan.Oldest, PostPolicy: bchan.Oldest, CallbackPolicy: bchan.Oldest,
		PostWorkers:          runtime.NumCPU(),
		CallbackWorkers:      2,
		ReadJoinTimeout:      time.Second,
		PostTimeout:          10 * time.Second,
		CallbackTimeout:      5 * time.Second,
		ReadJoinBacklogLimit: 2,
		DefaultConfidence:    0.5,
		Converter:            yuv.Passthrough{},
		Anchors:              decode.DefaultAnchorConfig(),
		Logger:               logging.Default(),
		Observer:             metrics.NoOpObserver{},
	}
}

// Pipeline orchestrates the four stages described in spec.md §4.1.
type Pipeline struct {
	cfg    Config
	device accel.Device
	log    *logging.Logger

	writeCh    *bchan.Channel[*FrameContext]
	postCh     *bchan.Channel[*FrameContext]
	callbackCh *bchan.Channel[*FrameContext]

	stats *stats.PipelineStats

	writeMu      sync.Mutex
	nextIteration uint64

	readJoinCounter atomic.Int64
	numReaders      int

	running atomic.Bool

	callback   Callback
	userCtx    any
	confidence atomic.Uint32 // float32 bits

	wg sync.WaitGroup
}

// Load builds a Pipeline around an already-opened accelerator device.
// Channel capacities come from cfg and the reader count from the
// device's metadata; modelPath only appears in the error returned when
// device is nil. The returned Pipeline is not yet running; call Start
// before Submit.
func Load(modelPath string, cfg Config, device accel.Device) (*Pipeline, error) {
	if device == nil {
		return nil, NewError("Load", CodeModelLoad, fmt.Sprintf("no accelerator device provided for model %q", modelPath))
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = metrics.NoOpObserver{}
	}

	meta := device.Metadata()
	p := &Pipeline{
		cfg:    cfg,
		device: device,
		log:    cfg.Logger,

		writeCh:    bchan.New[*FrameContext](cfg.WriteCap, cfg.WritePolicy),
		postCh:     bchan.New[*FrameContext](cfg.PostCap, cfg.PostPolicy),
		callbackCh: bchan.New[*FrameContext](cfg.CallbackCap, cfg.CallbackPolicy),

		numReaders: meta.NumOutputs,
	}
	p.setConfidence(cfg.DefaultConfidence)
	return p, nil
}

func (p *Pipeline) wireDropAccounting() {
	p.writeCh.ConnectDropped(func(ctx *FrameContext) { p.chargeDrop("write", p.stats.Write, ctx) })
	p.postCh.ConnectDropped(func(ctx *FrameContext) { p.chargeDrop("post", p.stats.Post, ctx) })
	p.callbackCh.ConnectDropped(func(ctx *FrameContext) { p.chargeDrop("callback", p.stats.Callback, ctx) })
}

func (p *Pipeline) chargeDrop(stage string, s *stats.StageStats, ctx *FrameContext) {
	if ctx == nil {
		return
	}
	s.FrameDropped(ctx.Iteration)
	p.cfg.Observer.ObserveStage(stage, 0, true)
	ctx.Release()
}

func (p *Pipeline) setConfidence(v float32) {
	p.confidence.Store(floatBits(v))
}

// ConfidenceThreshold returns the pipeline's default confidence floor,
// applied when Submit is called with threshold <= 0. Per spec.md §9
// Open Question 3, the real threshold travels on each FrameContext;
// this accessor pair only reads and sets that default.
func (p *Pipeline) ConfidenceThreshold() float32 {
	return floatFromBits(p.confidence.Load())
}

// SetConfidenceThreshold updates the default applied by Submit.
func (p *Pipeline) SetConfidenceThreshold(v float32) {
	p.setConfidence(v)
}

// Start launches the reader, post-process, and callback worker sets and
// begins accepting Submit calls. postWorkers/callbackWorkers <= 0 fall
// back to cfg's values (themselves defaulted by DefaultConfig).
func (p *Pipeline) Start(cb Callback, userCtx any, postWorkers, callbackWorkers int) error {
	if postWorkers <= 0 {
		postWorkers = p.cfg.PostWorkers
	}
	if callbackWorkers <= 0 {
		callbackWorkers = p.cfg.CallbackWorkers
	}
	if postWorkers <= 0 {
		postWorkers = runtime.NumCPU()
	}
	if callbackWorkers <= 0 {
		callbackWorkers = 2
	}

	p.callback = cb
	p.userCtx = userCtx
	p.stats = stats.NewPipelineStats(p.numReaders, postWorkers, callbackWorkers)
	p.wireDropAccounting()

	p.running.Store(true)

	for r := 0; r < p.numReaders; r++ {
		p.wg.Add(1)
		go p.readerLoop(r)
	}
	for w := 0; w < postWorkers; w++ {
		p.wg.Add(1)
		go p.postLoop()
	}
	for w := 0; w < callbackWorkers; w++ {
		p.wg.Add(1)
		go p.callbackLoop()
	}
	return nil
}

// Stats returns a read-only view of the pipeline's aggregate counters.
func (p *Pipeline) Stats() *stats.PipelineStats {
	return p.stats
}

// Submit converts frame/roi to the accelerator's native input shape and
// enqueues it for inference. It is non-blocking except for the write
// mutex and the accelerator's own input-stream write; under normal
// operation it never blocks on a full channel (drop policy applies
// instead). threshold <= 0 uses the pipeline's ConfidenceThreshold.
func (p *Pipeline) Submit(frame []byte, frameW, frameH int, roi Rect, id FrameIdentifier, threshold float32) error {
	if !p.running.Load() {
		return NewStageError("Submit", "write", CodeInvalidInput, "pipeline is not running")
	}
	if threshold <= 0 {
		threshold = p.ConfidenceThreshold()
	}

	// Pre-admission gating (spec.md §4.1.2 step 1).
	behind := p.stats.ReadJoin.Behind()
	p.cfg.Observer.ObserveBacklog("read_join", behind)
	if behind >= p.cfg.ReadJoinBacklogLimit {
		ctx := newFrameContext(id, roi, threshold)
		p.stats.Write.FrameDropped(0)
		p.cfg.Observer.ObserveStage("write", 0, true)
		ctx.Release()
		return nil
	}

	native, err := p.cfg.Converter.ToModelInput(frame, frameW, frameH, yuv.Rect(roi), p.device.Metadata())
	if err != nil {
		return WrapError("Submit", CodeInvalidInput, err)
	}

	ctx := newFrameContext(id, roi, threshold)
	ctx.nativeInput = native

	p.writeMu.Lock()
	ctx.Iteration = p.nextIteration
	p.nextIteration++
	admitted := p.writeCh.TryWrite(ctx)

	writeErr := p.device.Input().Write(native)
	p.writeMu.Unlock()

	if !admitted {
		// TryWrite already charged the drop via the listener.
		return nil
	}
	if writeErr != nil {
		// ctx is already queued in writeCh; whoever dequeues or drains it
		// releases it.
		return WrapError("Submit", CodeAcceleratorIO, writeErr)
	}

	ctx.InferenceAndRead.Start()
	d := ctx.Write.Stop()
	p.stats.Write.FrameProcessed(int64(d), ctx.Iteration)
	p.cfg.Observer.ObserveStage("write", uint64(d), false)
	return nil
}

// readerLoop is one of N reader threads, one per accelerator output
// stream. The thread whose readJoinCounter.Add(1) returns N (a
// pre-increment value of N-1) is the join-barrier "joiner" for that
// inference (spec.md §4.1.3).
func (p *Pipeline) readerLoop(streamIdx int) {
	defer p.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if len(p.cfg.ReaderAffinity) > 0 {
		cpu := p.cfg.ReaderAffinity[streamIdx%len(p.cfg.ReaderAffinity)]
		var mask unix.CPUSet
		mask.Set(cpu)
		if err := unix.SchedSetaffinity(0, &mask); err != nil {
			p.log.WithStage("read_join").Warnf("reader %d: set affinity to cpu %d: %v", streamIdx, cpu, err)
		}
	}

	stream := p.device.Output(streamIdx)
	meta := p.device.Metadata()
	buf := make([]byte, meta.OutputWidths[streamIdx])

	for p.running.Load() {
		if _, err := stream.Read(buf); err != nil {
			if errors.Is(err, accel.ErrAborted) {
				return
			}
			p.log.WithStage("read_join").Warnf("reader %d: transient read error: %v", streamIdx, err)
			continue
		}

		n := p.readJoinCounter.Add(1)
		if int(n) != p.numReaders {
			continue
		}
		p.readJoinCounter.Add(int64(-p.numReaders))
		p.join()
	}
}

// join is executed by the reader thread that completes the N-way
// barrier for one inference: it dequeues the corresponding FrameContext
// from writeCh and advances it to PostProcess.
func (p *Pipeline) join() {
	ctx, ok, err := p.writeCh.TryRead(p.cfg.ReadJoinTimeout)
	if err != nil {
		return // channel cancelled: shutdown in progress.
	}
	if !ok {
		p.log.WithStage("read_join").Error("invariant violation: join fired but write_ch was empty")
		return
	}

	d := ctx.InferenceAndRead.Stop()
	p.stats.ReadJoin.FrameProcessed(int64(d), ctx.Iteration)
	p.cfg.Observer.ObserveStage("read_join", uint64(d), false)

	if !p.postCh.TryWrite(ctx) {
		// TryWrite already charged the drop via the listener.
		return
	}
}

// postLoop is one of M PostProcess workers (spec.md §4.1.4).
func (p *Pipeline) postLoop() {
	defer p.wg.Done()
	for {
		ctx, ok, err := p.postCh.TryRead(p.cfg.PostTimeout)
		if err != nil {
			return // cancelled: shutdown.
		}
		if !ok {
			continue
		}

		ctx.PostProcess.Start()

		planes := p.collectPlanes()
		dets, masks, derr := p.cfg.Decoder.Decode(planes, decode.NetworkDims{Width: 640, Height: 640}, p.cfg.Anchors, ctx.Roi.W, ctx.Roi.H)
		if derr != nil {
			p.log.WithStage("post").Errorf("decode failed: %v", derr)
			p.stats.Post.FrameDropped(ctx.Iteration)
			p.cfg.Observer.ObserveStage("post", 0, true)
			ctx.Release()
			continue
		}

		result := &SegmentationResult{ID: ctx.ID, Roi: ctx.Roi, Threshold: ctx.Threshold}
		for i := range dets {
			det := dets[i]
			var mask []float32
			if i < len(masks) {
				// Pooled so PostProcess workers do not allocate a fresh
				// buffer per segment; released back in
				// SegmentationResult.Release.
				mask = bchan.GetMaskBuffer(masks[i].Resolution.W, masks[i].Resolution.H)
				copy(mask, masks[i].Data)
			}
			if math.Abs(float64(det.Confidence-ctx.Threshold)) <= 0.05 {
				result.UncertainCounter++
			}
			result.Segments = append(result.Segments, Segment{
				ClassID:    det.ClassID,
				Label:      det.Label,
				Confidence: det.Confidence,
				Bbox:       RectF(det.Bbox),
				Resolution: sizeFromMask(masks, i),
				Mask:       mask,
			})
		}
		ctx.Result = result

		d := ctx.PostProcess.Stop()
		p.stats.Post.FrameProcessed(int64(d), ctx.Iteration)
		p.cfg.Observer.ObserveStage("post", uint64(d), false)

		if !p.callbackCh.TryWrite(ctx) {
			// TryWrite already charged the drop via the listener.
			continue
		}
	}
}

func sizeFromMask(masks []decode.Mask, i int) Size {
	if i >= len(masks) {
		return Size{}
	}
	return Size{W: masks[i].Resolution.W, H: masks[i].Resolution.H}
}

// collectPlanes reads the device's per-output quantization metadata
// into decode.TensorPlane descriptors sorted by width (spec.md §4.1.4
// step 1). The actual per-stream byte buffers are supplied by the
// accelerator SDK out of band in a real deployment; here each plane's
// Data is left for the decoder to treat as opaque (stub decoders ignore
// it).
func (p *Pipeline) collectPlanes() []decode.TensorPlane {
	meta := p.device.Metadata()
	planes := make([]decode.TensorPlane, meta.NumOutputs)
	for i := 0; i < meta.NumOutputs; i++ {
		q := accel.OutputQuant{}
		if i < len(meta.OutputQuant) {
			q = meta.OutputQuant[i]
		}
		planes[i] = decode.TensorPlane{
			StreamIndex: i,
			Width:       meta.OutputWidths[i],
			QuantZeroPt: q.ZeroPoint,
			QuantScale:  q.Scale,
		}
	}
	sortPlanesByWidth(planes)
	return planes
}

func floatBits(v float32) uint32      { return math.Float32bits(v) }
func floatFromBits(bits uint32) float32 { return math.Float32frombits(bits) }

func sortPlanesByWidth(planes []decode.TensorPlane) {
	// Stable insertion sort: N is tiny (number of output streams), and
	// stability preserves stream order among equal-width planes.
	for i := 1; i < len(planes); i++ {
		for j := i; j > 0 && planes[j].Width < planes[j-1].Width; j-- {
			planes[j], planes[j-1] = planes[j-1], planes[j]
		}
	}
}

// callbackLoop is one of K Callback workers (spec.md §4.1.5).
func (p *Pipeline) callbackLoop() {
	defer p.wg.Done()
	for {
		ctx, ok, err := p.callbackCh.TryRead(p.cfg.CallbackTimeout)
		if err != nil {
			return // cancelled: shutdown.
		}
		if !ok {
			continue
		}

		if p.callback != nil {
			p.callback(ctx.Result, p.userCtx)
		}

		d := ctx.Total.Stop()
		p.stats.Callback.FrameProcessed(int64(d), ctx.Iteration)
		p.stats.Total.FrameProcessed(int64(d), ctx.Iteration)
		p.cfg.Observer.ObserveStage("callback", uint64(d), false)

		ctx.Result.Release()
		ctx.Release()
	}
}

// Stop implements the shutdown sequence of spec.md §4.1.7: stop
// accepting submissions, abort the accelerator's input/output streams,
// cancel every channel, join every worker, then drain and release
// whatever is left.
func (p *Pipeline) Stop() {
	p.running.Store(false)

	p.device.Input().Abort()
	for i := 0; i < p.numReaders; i++ {
		p.device.Output(i).Abort()
	}

	// spec.md §9 Open Question 1: standardize on cancel() for every
	// channel rather than mixing in a null sentinel for callback_ch.
	p.writeCh.Cancel()
	p.postCh.Cancel()
	p.callbackCh.Cancel()

	p.wg.Wait()

	p.writeCh.Drain(func(ctx *FrameContext) { p.chargeDrop("write", p.stats.Write, ctx) })
	p.postCh.Drain(func(ctx *FrameContext) { p.chargeDrop("post", p.stats.Post, ctx) })
	p.callbackCh.Drain(func(ctx *FrameContext) { p.chargeDrop("callback", p.stats.Callback, ctx) })
}
