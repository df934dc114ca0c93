package extract

import (
	"errors"
	"slices"
	"sync"
	"time"
)

type call struct {
	at        time.Time
	latencyMs int64
	failed    bool
	retryable bool
}

// StatsSnapshot summarizes the calls inside the window. Latency figures
// cover successful calls only.
type StatsSnapshot struct {
	Calls     int     `json:"calls"`
	Failures  int     `json:"failures"`
	Retryable int     `json:"retryable_failures"`
	MinMs     int64   `json:"min_ms"`
	MaxMs     int64   `json:"max_ms"`
	AvgMs     float64 `json:"avg_ms"`
	P50Ms     float64 `json:"p50_ms"`
	P95Ms     float64 `json:"p95_ms"`
	P99Ms     float64 `json:"p99_ms"`
}

// CallStats keeps model calls from a rolling window.
type CallStats struct {
	mu     sync.Mutex
	calls  []call
	window time.Duration
	now    func() time.Time
}

func NewCallStats(window time.Duration) *CallStats {
	if window <= 0 {
		window = time.Hour
	}
	return &CallStats{
		calls:  make([]call, 0, 256),
		window: window,
		now:    time.Now,
	}
}

// Record adds a successful call.
func (s *CallStats) Record(latency time.Duration) {
	s.add(call{latencyMs: max(latency.Milliseconds(), 0)})
}

// RecordFailure adds a failed call.
func (s *CallStats) RecordFailure(err error) {
	var re *RetryableError
	s.add(call{failed: true, retryable: errors.As(err, &re)})
}

func (s *CallStats) add(c call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.at = s.now()
	s.pruneLocked(c.at)
	s.calls = append(s.calls, c)
}

func (s *CallStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.now())

	var snap StatsSnapshot
	latencies := make([]int64, 0, len(s.calls))
	var sum int64
	for _, c := range s.calls {
		snap.Calls++
		if c.failed {
			snap.Failures++
			if c.retryable {
				snap.Retryable++
			}
			continue
		}
		latencies = append(latencies, c.latencyMs)
		sum += c.latencyMs
	}
	if len(latencies) == 0 {
		return snap
	}
	slices.Sort(latencies)

	snap.MinMs = latencies[0]
	snap.MaxMs = latencies[len(latencies)-1]
	snap.AvgMs = float64(sum) / float64(len(latencies))
	snap.P50Ms = percentile(latencies, 50)
	snap.P95Ms = percentile(latencies, 95)
	snap.P99Ms = percentile(latencies, 99)
	return snap
}

func (s *CallStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.calls) && s.calls[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.calls = append(s.calls[:0], s.calls[i:]...)
	}
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}
	rank := float64(len(sorted)-1) * pct / 100
	lo := int(rank)
	if lo+1 >= len(sorted) {
		return float64(sorted[lo])
	}
	frac := rank - float64(lo)
	return float64(sorted[lo]) + float64(sorted[lo+1]-sorted[lo])*frac
}
