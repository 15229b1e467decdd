package stats

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// PipelineStats aggregates the five named stage counters (spec.md §4.4)
// and wires each stage's Behind() predecessor.
type PipelineStats struct {
	Write    *StageStats
	ReadJoin *StageStats
	Post     *StageStats
	Callback *StageStats
	Total    *StageStats
}

// NewPipelineStats builds a PipelineStats with the dependency wiring
// fixed by spec.md §4.4: read_join.prev = write, post.prev = read_join,
// callback.prev = post, total.prev = read_join.
func NewPipelineStats(readerThreads, postWorkers, callbackWorkers int) *PipelineStats {
	p := &PipelineStats{
		Write:    NewStageStats(1),
		ReadJoin: NewStageStats(readerThreads),
		Post:     NewStageStats(postWorkers),
		Callback: NewStageStats(callbackWorkers),
		Total:    NewStageStats(1),
	}
	p.ReadJoin.SetPrev(p.Write)
	p.Post.SetPrev(p.ReadJoin)
	p.Callback.SetPrev(p.Post)
	p.Total.SetPrev(p.ReadJoin)
	return p
}

// DroppedTotal returns the pipeline-wide sum of dropped frames across
// every stage, used as the "total" row's dropped column instead of
// Total's own (always-zero) drop counter.
func (p *PipelineStats) DroppedTotal() uint64 {
	return p.Write.Dropped() + p.ReadJoin.Dropped() + p.Post.Dropped() + p.Callback.Dropped()
}

// InFlight estimates the number of frames currently somewhere between
// submission and callback delivery.
func (p *PipelineStats) InFlight() uint64 {
	submitted := p.Write.Processed()
	delivered := p.Callback.Processed()
	if delivered >= submitted {
		return 0
	}
	return submitted - delivered
}

// Report writes the fixed {stage, processed, dropped, behind, threads,
// est_fps, avg_ms} table to w.
func (p *PipelineStats) Report(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tPROCESSED\tDROPPED\tBEHIND\tTHREADS\tEST_FPS\tAVG_MS")

	rows := []struct {
		name    string
		s       *StageStats
		dropped uint64
	}{
		{"write", p.Write, p.Write.Dropped()},
		{"read_join", p.ReadJoin, p.ReadJoin.Dropped()},
		{"post", p.Post, p.Post.Dropped()},
		{"callback", p.Callback, p.Callback.Dropped()},
		{"total", p.Total, p.DroppedTotal()},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%.2f\t%d\n",
			r.name, r.s.Processed(), r.dropped, r.s.Behind(), r.s.ThreadCount(), r.s.Fps(), r.s.AvgTimeMs())
	}
	return tw.Flush()
}
