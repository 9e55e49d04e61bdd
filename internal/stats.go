package internal

import (
	"sync/atomic"
	"time"
)

// ScanStats atomic counters for one scan run.
type ScanStats struct {
	start     time.Time
	Found     atomic.Int64
	Processed atomic.Int64
	Threats   atomic.Int64
	Errors    atomic.Int64
}

func (s *ScanStats) Start() {
	s.start = time.Now()
}

func (s *ScanStats) Elapsed() time.Duration {
	return time.Since(s.start)
}
