package metrics

import "testing"

func TestObserveStageTracksProcessedAndDropped(t *testing.T) {
	o := NewHistogramObserver()
	o.ObserveStage("write", 5_000_000, false)
	o.ObserveStage("write", 0, true)

	snap := o.Snapshot()["write"]
	if snap.Processed != 1 {
		t.Fatalf("processed = %d, want 1", snap.Processed)
	}
	if snap.Dropped != 1 {
		t.Fatalf("dropped = %d, want 1", snap.Dropped)
	}
}

func TestObserveStageBucketsCumulative(t *testing.T) {
	o := NewHistogramObserver()
	o.ObserveStage("post", 500_000, false) // 500us -> falls in 1ms+ buckets

	snap := o.Snapshot()["post"]
	// 1us and 10us and 100us buckets should NOT have counted 500us.
	if snap.Histogram[0] != 0 || snap.Histogram[2] != 0 {
		t.Fatalf("unexpected sub-500us bucket counts: %v", snap.Histogram)
	}
	if snap.Histogram[3] != 1 {
		t.Fatalf("expected 1ms+ bucket to count the sample, got %v", snap.Histogram)
	}
}

func TestObserveBacklogUpdatesGauge(t *testing.T) {
	o := NewHistogramObserver()
	o.ObserveBacklog("read_join", 3)
	if got := o.Snapshot()["read_join"].Backlog; got != 3 {
		t.Fatalf("backlog = %d, want 3", got)
	}
}

func TestUnknownStageNameIsLazilyRegistered(t *testing.T) {
	o := NewHistogramObserver()
	o.ObserveStage("custom", 1, false)
	if _, ok := o.Snapshot()["custom"]; !ok {
		t.Fatal("expected lazily registered stage to appear in snapshot")
	}
}
