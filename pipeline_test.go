package hailopipe

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modelingevolution/hailopipe/internal/accel"
	"github.com/modelingevolution/hailopipe/internal/decode"
	"github.com/modelingevolution/hailopipe/internal/yuv"
	"github.com/stretchr/testify/require"
)

func testMetadata(numOutputs int) accel.Metadata {
	widths := make([]int, numOutputs)
	quant := make([]accel.OutputQuant, numOutputs)
	for i := range widths {
		widths[i] = 20 + i
		quant[i] = accel.OutputQuant{ZeroPoint: 0, Scale: 1}
	}
	return accel.Metadata{
		InputWidth: 640, InputHeight: 640, InputChannels: 3,
		FrameSize:     640 * 640 * 3,
		NumOutputs:    numOutputs,
		OutputWidths:  widths,
		OutputQuant:   quant,
	}
}

func newTestPipeline(t *testing.T, numOutputs int, decoderCount int, cfg Config) (*Pipeline, *accel.Stub) {
	t.Helper()
	stub := accel.NewStub(accel.StubConfig{Metadata: testMetadata(numOutputs)})
	cfg.Converter = yuv.Passthrough{}
	cfg.Decoder = decode.NewStubDecoder(decoderCount, decode.Size{W: 160, H: 160})
	cfg.Anchors = decode.DefaultAnchorConfig()
	p, err := Load("test-model", cfg, stub)
	require.NoError(t, err)
	return p, stub
}

func frame640() []byte {
	return make([]byte, 640*480*3/2) // I420
}

// (a) One-frame round-trip.
func TestOneFrameRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	p, stub := newTestPipeline(t, 3, 2, cfg)
	defer stub.Close()

	// The callback must not retain r (it is released once the callback
	// returns), so copy what the test checks while inside the call.
	var mu sync.Mutex
	var got *SegmentationResult
	var gotSegments int
	done := make(chan struct{})

	require.NoError(t, p.Start(func(r *SegmentationResult, _ any) {
		mu.Lock()
		cp := *r
		got = &cp
		gotSegments = len(r.Segments)
		mu.Unlock()
		close(done)
	}, nil, 1, 1))
	defer p.Stop()

	err := p.Submit(frame640(), 640, 480, Rect{X: 0, Y: 0, W: 640, H: 480}, FrameIdentifier{CameraID: 1, FrameID: 0}, 0.6)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, got)
	require.Equal(t, 2, gotSegments)
	require.Equal(t, FrameIdentifier{CameraID: 1, FrameID: 0}, got.ID)
	require.Equal(t, Rect{X: 0, Y: 0, W: 640, H: 480}, got.Roi)

	// Stats are recorded after the callback returns.
	st := p.Stats()
	require.Eventually(t, func() bool { return st.Total.Processed() == 1 }, time.Second, time.Millisecond)
	require.EqualValues(t, 0, st.Total.Dropped())
}

// (b) Drop-oldest at write_ch when the post stage is stalled.
func TestDropOldestAtWriteChWhenPostStalled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WriteCap = 2
	cfg.WritePolicy = 0 // Oldest

	blockCh := make(chan struct{})
	cfg.Decoder = nil // set below via stub wrapper

	stub := accel.NewStub(accel.StubConfig{Metadata: testMetadata(1)})
	defer stub.Close()

	cfg.Converter = yuv.Passthrough{}
	cfg.Decoder = &blockingDecoder{block: blockCh, inner: decode.NewStubDecoder(1, decode.Size{W: 4, H: 4})}
	cfg.Anchors = decode.DefaultAnchorConfig()

	p, err := Load("test-model", cfg, stub)
	require.NoError(t, err)

	require.NoError(t, p.Start(func(*SegmentationResult, any) {}, nil, 1, 1))
	defer func() {
		close(blockCh)
		p.Stop()
	}()

	for i := 0; i < 10; i++ {
		_ = p.Submit(frame640(), 640, 480, Rect{X: 0, Y: 0, W: 640, H: 480}, FrameIdentifier{FrameID: uint64(i)}, 0.6)
	}

	time.Sleep(200 * time.Millisecond)

	st := p.Stats()
	require.GreaterOrEqual(t, st.Write.Dropped(), uint64(8))
	require.LessOrEqual(t, st.Write.Processed(), uint64(2))
}

type blockingDecoder struct {
	block chan struct{}
	inner decode.Decoder
	once  sync.Once
}

func (d *blockingDecoder) Decode(t []decode.TensorPlane, dims decode.NetworkDims, a decode.AnchorConfig, w, h int) ([]decode.Detection, []decode.Mask, error) {
	d.once.Do(func() { <-d.block })
	return d.inner.Decode(t, dims, a, w, h)
}

// (c) Pre-admission gating drops at Write without touching the accelerator.
func TestPreAdmissionGatingDropsWithoutDeviceWrite(t *testing.T) {
	cfg := DefaultConfig()
	p, stub := newTestPipeline(t, 2, 1, cfg)
	defer stub.Close()

	require.NoError(t, p.Start(func(*SegmentationResult, any) {}, nil, 1, 1))
	defer p.Stop()

	// Force read_join.Behind() >= ReadJoinBacklogLimit by advancing write's
	// iteration far ahead of read_join's.
	p.stats.Write.FrameProcessed(0, 1000)

	err := p.Submit(frame640(), 640, 480, Rect{X: 0, Y: 0, W: 640, H: 480}, FrameIdentifier{FrameID: 1}, 0.6)
	require.NoError(t, err)

	st := p.Stats()
	require.EqualValues(t, 1, st.Write.Dropped())
}

// (d) Shutdown under load: all threads join, allocations == releases
// (modeled here as: Stop returns promptly and stats remain internally
// consistent: processed+dropped never exceeds submitted).
func TestShutdownUnderLoad(t *testing.T) {
	cfg := DefaultConfig()
	p, stub := newTestPipeline(t, 2, 1, cfg)
	defer stub.Close()

	var processed atomic.Int64
	require.NoError(t, p.Start(func(*SegmentationResult, any) {
		processed.Add(1)
	}, nil, 2, 2))

	stopSubmit := make(chan struct{})
	var submitted atomic.Int64
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopSubmit:
				return
			case <-ticker.C:
				_ = p.Submit(frame640(), 640, 480, Rect{X: 0, Y: 0, W: 640, H: 480}, FrameIdentifier{FrameID: uint64(submitted.Load())}, 0.6)
				submitted.Add(1)
			}
		}
	}()

	time.Sleep(300 * time.Millisecond)
	close(stopSubmit)
	wg.Wait()

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return within 2s")
	}

	st := p.Stats()
	require.LessOrEqual(t, st.Total.Processed()+st.DroppedTotal(), uint64(submitted.Load()))
}

// (e) Ordered ReadJoin: with K=1 callback worker, iterations are
// delivered in increasing order despite staggered cross-stream arrival.
func TestOrderedReadJoinDeliversIncreasingIterations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WriteCap = 8
	cfg.PostCap = 8
	cfg.CallbackCap = 8

	meta := testMetadata(3)
	delay := func(streamIdx int, seq uint64) time.Duration {
		// Stagger which stream finishes last, per frame, without ever
		// reordering a single stream's own deliveries.
		order := [3]int{2, 0, 1}
		for rank, idx := range order {
			if idx == streamIdx {
				return time.Duration((rank+int(seq))%3) * 2 * time.Millisecond
			}
		}
		return 0
	}
	stub := accel.NewStub(accel.StubConfig{Metadata: meta, Delay: delay})
	defer stub.Close()

	cfg.Converter = yuv.Passthrough{}
	cfg.Decoder = decode.NewStubDecoder(1, decode.Size{W: 4, H: 4})
	cfg.Anchors = decode.DefaultAnchorConfig()

	p, err := Load("test-model", cfg, stub)
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []uint64
	done := make(chan struct{})
	const n = 5

	require.NoError(t, p.Start(func(r *SegmentationResult, _ any) {
		mu.Lock()
		seen = append(seen, r.ID.FrameID)
		if len(seen) == n {
			close(done)
		}
		mu.Unlock()
	}, nil, 1, 1))
	defer p.Stop()

	for i := 0; i < n; i++ {
		require.NoError(t, p.Submit(frame640(), 640, 480, Rect{X: 0, Y: 0, W: 640, H: 480}, FrameIdentifier{FrameID: uint64(i)}, 0.6))
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("only %d/%d callbacks fired", len(seen), n)
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seen); i++ {
		require.Less(t, seen[i-1], seen[i], "iterations must arrive in increasing order")
	}
}
