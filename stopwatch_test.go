package hailopipe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStopWatchElapsedWhileRunning(t *testing.T) {
	sw := StartNew()
	time.Sleep(5 * time.Millisecond)
	require.GreaterOrEqual(t, sw.Elapsed(), 5*time.Millisecond)
}

func TestStopWatchStopFreezesDuration(t *testing.T) {
	sw := StartNew()
	time.Sleep(2 * time.Millisecond)
	d1 := sw.Stop()
	time.Sleep(2 * time.Millisecond)
	d2 := sw.Total()
	require.Equal(t, d1, d2)
}

func TestStopWatchStoresIntoExternalDuration(t *testing.T) {
	var store time.Duration
	sw := StartNewInto(&store)
	time.Sleep(2 * time.Millisecond)
	sw.Stop()
	require.Equal(t, sw.Total(), store)
	require.Greater(t, store, time.Duration(0))
}

func TestStopWatchRestart(t *testing.T) {
	sw := StartNew()
	time.Sleep(2 * time.Millisecond)
	first := sw.Restart()
	require.Greater(t, first, time.Duration(0))
	time.Sleep(2 * time.Millisecond)
	second := sw.Stop()
	require.Greater(t, second, time.Duration(0))
}
