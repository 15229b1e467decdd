package stats

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPipelineStatsWiresBehindChain(t *testing.T) {
	p := NewPipelineStats(3, 4, 2)

	p.Write.FrameProcessed(1, 10)
	require.EqualValues(t, 10, p.ReadJoin.Behind())

	p.ReadJoin.FrameProcessed(1, 10)
	require.EqualValues(t, 0, p.ReadJoin.Behind())
	require.EqualValues(t, 10, p.Post.Behind())
	require.EqualValues(t, 10, p.Total.Behind())
}

func TestDroppedTotalSumsAcrossStages(t *testing.T) {
	p := NewPipelineStats(1, 1, 1)
	p.Write.FrameDropped(1)
	p.ReadJoin.FrameDropped(2)
	p.Post.FrameDropped(3)
	p.Callback.FrameDropped(4)

	require.EqualValues(t, 4, p.DroppedTotal())
}

func TestInFlightIsSubmittedMinusDelivered(t *testing.T) {
	p := NewPipelineStats(1, 1, 1)
	p.Write.FrameProcessed(1, 1)
	p.Write.FrameProcessed(1, 2)
	p.Callback.FrameProcessed(1, 1)

	require.EqualValues(t, 1, p.InFlight())
}

func TestReportPrintsFixedColumns(t *testing.T) {
	p := NewPipelineStats(1, 1, 1)
	p.Write.FrameProcessed(1, 1)

	var buf bytes.Buffer
	require.NoError(t, p.Report(&buf))

	out := buf.String()
	require.True(t, strings.Contains(out, "STAGE"))
	require.True(t, strings.Contains(out, "write"))
	require.True(t, strings.Contains(out, "total"))
}

func TestMarshalIntoRoundTripsStageBlocks(t *testing.T) {
	p := NewPipelineStats(2, 3, 2)
	p.Write.FrameProcessed(int64(5_000_000), 7)

	buf := make([]byte, PipelineStatsDtoSize)
	p.MarshalInto(buf)

	writeDto := UnmarshalStageStatsDto(buf[0:StageStatsDtoSize])
	require.EqualValues(t, 1, writeDto.Processed)
	require.EqualValues(t, 7, writeDto.LastIteration)
	require.EqualValues(t, 5_000_000, writeDto.TotalProcessingTimeNs)
	require.EqualValues(t, 1, writeDto.ThreadCount)
}
