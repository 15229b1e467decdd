package bchan

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTryWriteReadFIFOWhenNotFull(t *testing.T) {
	c := New[int](4, Oldest)
	for i := 0; i < 4; i++ {
		require.True(t, c.TryWrite(i))
	}
	for i := 0; i < 4; i++ {
		v, ok, err := c.TryRead(0)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}

func TestTryWriteOldestEvictsFrontAndNotifies(t *testing.T) {
	c := New[int](2, Oldest)
	var dropped []int
	c.ConnectDropped(func(v int) { dropped = append(dropped, v) })

	require.True(t, c.TryWrite(1))
	require.True(t, c.TryWrite(2))
	require.True(t, c.TryWrite(3)) // evicts 1

	require.Equal(t, []int{1}, dropped)
	require.EqualValues(t, 2, c.Pending())

	v, ok, err := c.TryRead(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, v)

	v, ok, err = c.TryRead(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, v)
}

func TestTryWriteNewestRefusesAndNotifiesIncoming(t *testing.T) {
	c := New[int](2, Newest)
	var dropped []int
	c.ConnectDropped(func(v int) { dropped = append(dropped, v) })

	require.True(t, c.TryWrite(1))
	require.True(t, c.TryWrite(2))
	require.False(t, c.TryWrite(3))

	require.Equal(t, []int{3}, dropped)
	require.EqualValues(t, 2, c.Pending())

	v, _, _ := c.TryRead(0)
	require.Equal(t, 1, v)
}

func TestTryReadTimesOutWhenEmpty(t *testing.T) {
	c := New[int](1, Oldest)
	_, ok, err := c.TryRead(10 * time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCancelUnblocksAllPendingReaders(t *testing.T) {
	c := New[int](1, Oldest)
	const readers = 8

	var wg sync.WaitGroup
	errs := make([]error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := c.TryRead(5 * time.Second)
			errs[i] = err
		}(i)
	}

	// Give readers a chance to park in the select before cancelling.
	time.Sleep(20 * time.Millisecond)
	c.Cancel()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("readers did not unblock after Cancel")
	}

	for _, err := range errs {
		require.ErrorIs(t, err, ErrCancelled)
	}
}

func TestCancelIsIdempotentAndFastFailsFutureReads(t *testing.T) {
	c := New[int](1, Oldest)
	c.Cancel()
	require.NotPanics(t, func() { c.Cancel() })

	_, err := c.Read()
	require.ErrorIs(t, err, ErrCancelled)
}

func TestPendingTracksOccupancyAcrossWritesAndReads(t *testing.T) {
	c := New[int](3, Oldest)
	require.EqualValues(t, 0, c.Pending())
	c.TryWrite(1)
	c.TryWrite(2)
	require.EqualValues(t, 2, c.Pending())
	c.TryRead(0)
	require.EqualValues(t, 1, c.Pending())
}

func TestDrainInvokesCallbackForEveryRemainingItem(t *testing.T) {
	c := New[int](4, Oldest)
	c.TryWrite(1)
	c.TryWrite(2)
	c.TryWrite(3)

	var drained []int
	c.Drain(func(v int) { drained = append(drained, v) })

	require.Equal(t, []int{1, 2, 3}, drained)
	require.EqualValues(t, 0, c.Pending())
}
