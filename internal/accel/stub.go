package accel

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
)

// StubConfig configures a simulated Device.
type StubConfig struct {
	Metadata Metadata
	// Delay, if set, controls the simulated per-stream, per-frame latency.
	// Defaults to ZeroDelay.
	Delay DelayFunc
}

// Stub is a deterministic, fully in-memory Device implementation. Each
// Write is assigned a monotonically increasing sequence number; each
// output stream delivers buffers for that sequence number, in order,
// after Delay(streamIdx, seq) has elapsed. A single serial worker per
// stream guarantees per-stream FIFO delivery regardless of Delay.
type Stub struct {
	meta  Metadata
	delay DelayFunc

	seq     atomic.Uint64
	streams []*stubOutputStream
	in      *stubInputStream

	closeOnce sync.Once
	doneCh    chan struct{}
}

// NewStub creates a simulated accelerator with cfg.Metadata.NumOutputs
// independent output streams.
func NewStub(cfg StubConfig) *Stub {
	delay := cfg.Delay
	if delay == nil {
		delay = ZeroDelay
	}
	s := &Stub{
		meta:   cfg.Metadata,
		delay:  delay,
		doneCh: make(chan struct{}),
	}
	s.streams = make([]*stubOutputStream, cfg.Metadata.NumOutputs)
	for i := range s.streams {
		s.streams[i] = newStubOutputStream(i, s)
	}
	s.in = &stubInputStream{stub: s}
	return s
}

func (s *Stub) Metadata() Metadata { return s.meta }

func (s *Stub) Input() InputStream { return s.in }

func (s *Stub) Output(i int) OutputStream { return s.streams[i] }

// Close stops every stream worker and unblocks any pending Read/Write.
func (s *Stub) Close() error {
	s.closeOnce.Do(func() {
		close(s.doneCh)
		for _, st := range s.streams {
			st.abort()
		}
	})
	return nil
}

type stubInputStream struct {
	stub *Stub
}

// Write assigns the next sequence number and schedules delivery on every
// output stream. It never blocks on anything but stream job submission.
func (in *stubInputStream) Write(buf []byte) error {
	seq := in.stub.seq.Add(1) - 1
	select {
	case <-in.stub.doneCh:
		return ErrAborted
	default:
	}
	for _, st := range in.stub.streams {
		st.submit(seq)
	}
	return nil
}

func (in *stubInputStream) Abort() {
	// The stub's Write never blocks, so there is nothing to unblock;
	// Close() is what actually tears the stub down.
}

type stubJob struct {
	seq uint64
}

type stubOutputStream struct {
	idx    int
	stub   *Stub
	jobs   chan stubJob
	ready  chan uint64
	abortC chan struct{}
	once   sync.Once
}

func newStubOutputStream(idx int, s *Stub) *stubOutputStream {
	st := &stubOutputStream{
		idx:    idx,
		stub:   s,
		jobs:   make(chan stubJob, 1024),
		ready:  make(chan uint64, 1024),
		abortC: make(chan struct{}),
	}
	go st.worker()
	return st
}

func (st *stubOutputStream) submit(seq uint64) {
	select {
	case st.jobs <- stubJob{seq: seq}:
	case <-st.abortC:
	}
}

// worker processes jobs strictly in arrival order, sleeping for the
// configured delay before making each frame's buffer available. This is
// the mechanism that lets tests stagger cross-stream arrival order while
// guaranteeing per-stream FIFO, per spec.md §4.1.3's invariant.
func (st *stubOutputStream) worker() {
	timer := newStubTimer()
	for {
		select {
		case job := <-st.jobs:
			d := st.stub.delay(st.idx, job.seq)
			if d > 0 {
				timer.sleep(d, st.abortC)
			}
			select {
			case st.ready <- job.seq:
			case <-st.abortC:
				return
			}
		case <-st.abortC:
			return
		}
	}
}

func (st *stubOutputStream) abort() {
	st.once.Do(func() { close(st.abortC) })
}

// Read blocks until a frame is ready on this stream and encodes its
// sequence number as the first 8 bytes of buf (tests/decoders only need a
// recognizable, stable value per frame).
func (st *stubOutputStream) Read(buf []byte) (int, error) {
	select {
	case seq := <-st.ready:
		n := len(buf)
		if n > 8 {
			n = 8
		}
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], seq)
		copy(buf, tmp[:n])
		return len(buf), nil
	case <-st.abortC:
		return 0, ErrAborted
	}
}

func (st *stubOutputStream) Abort() {
	st.abort()
}
