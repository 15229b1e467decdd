package accel

import "time"

// stubTimer sleeps for a duration but returns early if abortC closes,
// so a delayed stub delivery never outlives a test's teardown.
type stubTimer struct{}

func newStubTimer() stubTimer { return stubTimer{} }

func (stubTimer) sleep(d time.Duration, abortC <-chan struct{}) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-abortC:
	}
}
