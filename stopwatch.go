package hailopipe

import "time"

// StopWatch is a monotonic elapsed-time accumulator. It can optionally
// compose into external storage so a caller can read the last measured
// duration without holding onto the StopWatch itself.
type StopWatch struct {
	start   time.Time
	elapsed time.Duration
	store   *time.Duration
	running bool
}

// NewStopWatch returns a StopWatch that has not been started.
func NewStopWatch() StopWatch {
	return StopWatch{}
}

// StartNew returns a StopWatch already running.
func StartNew() StopWatch {
	sw := StopWatch{}
	sw.Start()
	return sw
}

// StartNewInto returns a running StopWatch that writes its elapsed
// duration into store every time Stop is called.
func StartNewInto(store *time.Duration) StopWatch {
	sw := StopWatch{store: store}
	sw.Start()
	return sw
}

// Start begins timing. Safe to call again after Stop to resume counting
// from zero.
func (s *StopWatch) Start() {
	s.start = time.Now()
	s.running = true
}

// Stop stops timing and returns the elapsed duration since Start. If a
// storage pointer was provided, it is updated too.
func (s *StopWatch) Stop() time.Duration {
	if s.running {
		s.elapsed = time.Since(s.start)
		s.running = false
	}
	if s.store != nil {
		*s.store = s.elapsed
	}
	return s.elapsed
}

// Restart stops the watch (recording elapsed) and immediately starts it again.
func (s *StopWatch) Restart() time.Duration {
	d := s.Stop()
	s.Start()
	return d
}

// Reset clears any accumulated duration without stopping a running watch.
func (s *StopWatch) Reset() {
	s.elapsed = 0
	if s.running {
		s.start = time.Now()
	}
}

// Elapsed returns the current elapsed duration without stopping the watch.
func (s *StopWatch) Elapsed() time.Duration {
	if s.running {
		return time.Since(s.start)
	}
	return s.elapsed
}

// Total returns the last stopped duration (zero if never stopped).
func (s *StopWatch) Total() time.Duration {
	return s.elapsed
}
