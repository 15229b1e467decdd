// Package metrics provides a pluggable Observer for pipeline health,
// adapted from the teacher's Observer/Metrics pair (metrics.go): the
// same log-spaced latency histogram, re-keyed by pipeline stage instead
// of by I/O operation type.
package metrics

import "sync/atomic"

// LatencyBuckets are the histogram bucket upper bounds, in nanoseconds,
// log-spaced from 1us to 10s.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numBuckets = 8

// Observer receives pipeline health events. ObserveStage is called once
// per completed (or dropped) frame per stage; the pipeline calls
// ObserveBacklog with read_join's Behind() value at every Submit's
// pre-admission check.
type Observer interface {
	ObserveStage(stage string, latencyNs uint64, dropped bool)
	ObserveBacklog(stage string, behind uint64)
}

// NoOpObserver discards every event.
type NoOpObserver struct{}

func (NoOpObserver) ObserveStage(string, uint64, bool) {}
func (NoOpObserver) ObserveBacklog(string, uint64)     {}

// stageCounters holds one stage's histogram and backlog gauge.
type stageCounters struct {
	processed atomic.Uint64
	dropped   atomic.Uint64
	buckets   [numBuckets]atomic.Uint64
	backlog   atomic.Uint64
}

// HistogramObserver is the default Observer: per-stage latency
// histograms plus a backlog gauge, queryable via Snapshot.
type HistogramObserver struct {
	stages map[string]*stageCounters
}

// NewHistogramObserver creates an observer pre-registered for the four
// named pipeline stages.
func NewHistogramObserver() *HistogramObserver {
	o := &HistogramObserver{stages: make(map[string]*stageCounters)}
	for _, s := range []string{"write", "read_join", "post", "callback"} {
		o.stages[s] = &stageCounters{}
	}
	return o
}

func (o *HistogramObserver) counters(stage string) *stageCounters {
	c, ok := o.stages[stage]
	if !ok {
		// Unknown stage names are tolerated (lazily registered) rather
		// than dropped, so a caller adding a fifth stage doesn't need to
		// touch this package.
		c = &stageCounters{}
		o.stages[stage] = c
	}
	return c
}

// ObserveStage implements Observer.
func (o *HistogramObserver) ObserveStage(stage string, latencyNs uint64, dropped bool) {
	c := o.counters(stage)
	if dropped {
		c.dropped.Add(1)
		return
	}
	c.processed.Add(1)
	for i, b := range LatencyBuckets {
		if latencyNs <= b {
			c.buckets[i].Add(1)
		}
	}
}

// ObserveBacklog implements Observer.
func (o *HistogramObserver) ObserveBacklog(stage string, behind uint64) {
	o.counters(stage).backlog.Store(behind)
}

// StageSnapshot is a point-in-time read of one stage's counters.
type StageSnapshot struct {
	Processed uint64
	Dropped   uint64
	Backlog   uint64
	Histogram [numBuckets]uint64
}

// Snapshot returns a point-in-time view of every registered stage.
func (o *HistogramObserver) Snapshot() map[string]StageSnapshot {
	out := make(map[string]StageSnapshot, len(o.stages))
	for name, c := range o.stages {
		var snap StageSnapshot
		snap.Processed = c.processed.Load()
		snap.Dropped = c.dropped.Load()
		snap.Backlog = c.backlog.Load()
		for i := range c.buckets {
			snap.Histogram[i] = c.buckets[i].Load()
		}
		out[name] = snap
	}
	return out
}

var (
	_ Observer = NoOpObserver{}
	_ Observer = (*HistogramObserver)(nil)
)
