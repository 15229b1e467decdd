// Package stats implements the pipeline's per-stage and aggregate
// counters (spec.md §4.2, §4.4), grounded on the teacher's atomic
// metrics counters (metrics.go) translated from C++ std::atomic fields
// (original_source/src/HailoProcessor/StageStats.h).
package stats

import "sync/atomic"

// StageStats holds the atomic counters for a single pipeline stage plus
// a back-pointer to the previous stage used to compute Behind().
type StageStats struct {
	processed     atomic.Uint64
	dropped       atomic.Uint64
	lastIteration atomic.Uint64
	totalNs       atomic.Int64
	threadCount   int
	prev          *StageStats
}

// NewStageStats creates a StageStats with the given thread-count hint.
// SetPrev wires the predecessor used by Behind().
func NewStageStats(threadCount int) *StageStats {
	return &StageStats{threadCount: threadCount}
}

// SetPrev wires the stage whose backlog this stage is measured against.
func (s *StageStats) SetPrev(prev *StageStats) {
	s.prev = prev
}

// FrameProcessed records a successfully completed frame: increments
// processed, accumulates duration, and monotonically advances
// last_iteration. Monotone-max is sufficient because, per stage,
// iterations arrive in roughly increasing order across that stage's
// worker threads.
func (s *StageStats) FrameProcessed(duration int64, iteration uint64) {
	s.processed.Add(1)
	s.totalNs.Add(duration)
	s.advanceIteration(iteration)
}

// FrameDropped records a dropped frame: increments dropped and still
// advances last_iteration (a drop still represents forward progress
// through the submission sequence).
func (s *StageStats) FrameDropped(iteration uint64) {
	s.dropped.Add(1)
	s.advanceIteration(iteration)
}

func (s *StageStats) advanceIteration(iteration uint64) {
	for {
		cur := s.lastIteration.Load()
		if iteration <= cur {
			return
		}
		if s.lastIteration.CompareAndSwap(cur, iteration) {
			return
		}
	}
}

// Processed returns the cumulative processed-frame count.
func (s *StageStats) Processed() uint64 { return s.processed.Load() }

// Dropped returns the cumulative dropped-frame count.
func (s *StageStats) Dropped() uint64 { return s.dropped.Load() }

// LastIteration returns the highest iteration index this stage has
// observed.
func (s *StageStats) LastIteration() uint64 { return s.lastIteration.Load() }

// TotalNs returns the cumulative processing time in nanoseconds.
func (s *StageStats) TotalNs() int64 { return s.totalNs.Load() }

// ThreadCount returns this stage's worker-thread hint.
func (s *StageStats) ThreadCount() int { return s.threadCount }

// Fps estimates throughput as thread_count * processed / elapsed_seconds
// using the cumulative processing time as the elapsed-time proxy. Zero
// when no frame has been processed yet.
func (s *StageStats) Fps() float64 {
	processed := s.processed.Load()
	total := s.totalNs.Load()
	if processed == 0 || total <= 0 {
		return 0
	}
	seconds := float64(total) * 1e-9
	return float64(s.threadCount) * float64(processed) / seconds
}

// AvgTimeMs returns the average per-frame processing time, rounded down
// to whole milliseconds. Zero when no frame has been processed yet.
func (s *StageStats) AvgTimeMs() uint64 {
	processed := s.processed.Load()
	if processed == 0 {
		return 0
	}
	total := s.totalNs.Load()
	if total <= 0 {
		return 0
	}
	return uint64(total) / processed / 1_000_000
}

// Behind returns max(0, prev.last_iteration - self.last_iteration), or 0
// when no predecessor is wired.
func (s *StageStats) Behind() uint64 {
	if s.prev == nil {
		return 0
	}
	prevIter := s.prev.lastIteration.Load()
	selfIter := s.lastIteration.Load()
	if prevIter <= selfIter {
		return 0
	}
	return prevIter - selfIter
}
