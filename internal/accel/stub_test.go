package accel

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testMeta(n int) Metadata {
	return Metadata{
		InputWidth: 640, InputHeight: 640, InputChannels: 3,
		FrameSize:  640 * 640 * 3,
		NumOutputs: n,
	}
}

func TestStubDeliversOneBufferPerStreamPerWrite(t *testing.T) {
	s := NewStub(StubConfig{Metadata: testMeta(3)})
	defer s.Close()

	require.NoError(t, s.Input().Write(make([]byte, s.Metadata().FrameSize)))

	for i := 0; i < 3; i++ {
		buf := make([]byte, 8)
		n, err := s.Output(i).Read(buf)
		require.NoError(t, err)
		require.Equal(t, 8, n)
		require.Equal(t, uint64(0), binary.LittleEndian.Uint64(buf))
	}
}

func TestStubPreservesPerStreamFIFOUnderStagger(t *testing.T) {
	// Stream 0 is slow on even frames, stream 1 is slow on odd frames —
	// cross-stream completion order differs per frame, but within each
	// stream delivery must still be seq 0, then 1, then 2.
	delay := func(streamIdx int, seq uint64) time.Duration {
		if streamIdx == 0 && seq%2 == 0 {
			return 5 * time.Millisecond
		}
		if streamIdx == 1 && seq%2 == 1 {
			return 5 * time.Millisecond
		}
		return 0
	}
	s := NewStub(StubConfig{Metadata: testMeta(2), Delay: delay})
	defer s.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Input().Write(make([]byte, s.Metadata().FrameSize)))
	}

	for stream := 0; stream < 2; stream++ {
		for expected := uint64(0); expected < 3; expected++ {
			buf := make([]byte, 8)
			_, err := s.Output(stream).Read(buf)
			require.NoError(t, err)
			require.Equal(t, expected, binary.LittleEndian.Uint64(buf))
		}
	}
}

func TestStubCloseUnblocksReaders(t *testing.T) {
	s := NewStub(StubConfig{Metadata: testMeta(1)})

	done := make(chan error, 1)
	go func() {
		_, err := s.Output(0).Read(make([]byte, 8))
		done <- err
	}()

	time.Sleep(5 * time.Millisecond)
	s.Close()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrAborted)
	case <-time.After(time.Second):
		t.Fatal("Read did not unblock after Close")
	}
}
