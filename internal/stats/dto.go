package stats

import "encoding/binary"

// StageStatsDtoSize is the wire size in bytes of one StageStatsDto:
// four uint64 fields, one int64, one int32 (spec.md §6, §12).
const StageStatsDtoSize = 8*4 + 8 + 4

// PipelineStatsDtoSize is the wire size of the full stats DTO: five
// StageStatsDto blocks followed by in_flight and dropped_total, both
// uint64.
const PipelineStatsDtoSize = StageStatsDtoSize*5 + 8 + 8

// StageStatsDto is the bit-exact, packed wire representation of one
// stage's counters, field order fixed by spec.md §6:
// { processed:u64, dropped:u64, last_iteration:u64, behind:u64,
//   total_processing_time_ns:i64, thread_count:i32 }.
//
// This struct is never cast across the cgo boundary directly — Go does
// not have a packed-struct attribute, and relying on natural alignment
// here would silently reintroduce the padding the foreign runtime does
// not have. MarshalInto/UnmarshalFrom do the actual byte-exact encoding.
type StageStatsDto struct {
	Processed             uint64
	Dropped               uint64
	LastIteration         uint64
	Behind                uint64
	TotalProcessingTimeNs int64
	ThreadCount           int32
}

// MarshalInto writes d's packed representation to buf[0:StageStatsDtoSize].
func (d StageStatsDto) MarshalInto(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], d.Processed)
	binary.LittleEndian.PutUint64(buf[8:16], d.Dropped)
	binary.LittleEndian.PutUint64(buf[16:24], d.LastIteration)
	binary.LittleEndian.PutUint64(buf[24:32], d.Behind)
	binary.LittleEndian.PutUint64(buf[32:40], uint64(d.TotalProcessingTimeNs))
	binary.LittleEndian.PutUint32(buf[40:44], uint32(d.ThreadCount))
}

// UnmarshalStageStatsDto reads a packed StageStatsDto from buf[0:StageStatsDtoSize].
func UnmarshalStageStatsDto(buf []byte) StageStatsDto {
	return StageStatsDto{
		Processed:             binary.LittleEndian.Uint64(buf[0:8]),
		Dropped:               binary.LittleEndian.Uint64(buf[8:16]),
		LastIteration:         binary.LittleEndian.Uint64(buf[16:24]),
		Behind:                binary.LittleEndian.Uint64(buf[24:32]),
		TotalProcessingTimeNs: int64(binary.LittleEndian.Uint64(buf[32:40])),
		ThreadCount:           int32(binary.LittleEndian.Uint32(buf[40:44])),
	}
}

func dtoFromStage(s *StageStats, droppedOverride *uint64) StageStatsDto {
	dropped := s.Dropped()
	if droppedOverride != nil {
		dropped = *droppedOverride
	}
	return StageStatsDto{
		Processed:             s.Processed(),
		Dropped:               dropped,
		LastIteration:         s.LastIteration(),
		Behind:                s.Behind(),
		TotalProcessingTimeNs: s.TotalNs(),
		ThreadCount:           int32(s.ThreadCount()),
	}
}

// MarshalInto writes the full, bit-exact PipelineStatsDto (five
// StageStatsDto blocks in write/read_join/post/callback/total order,
// then in_flight, then dropped_total) to buf[0:PipelineStatsDtoSize].
func (p *PipelineStats) MarshalInto(buf []byte) {
	droppedTotal := p.DroppedTotal()

	dtos := []StageStatsDto{
		dtoFromStage(p.Write, nil),
		dtoFromStage(p.ReadJoin, nil),
		dtoFromStage(p.Post, nil),
		dtoFromStage(p.Callback, nil),
		dtoFromStage(p.Total, &droppedTotal),
	}
	off := 0
	for _, d := range dtos {
		d.MarshalInto(buf[off : off+StageStatsDtoSize])
		off += StageStatsDtoSize
	}
	binary.LittleEndian.PutUint64(buf[off:off+8], p.InFlight())
	off += 8
	binary.LittleEndian.PutUint64(buf[off:off+8], droppedTotal)
}
