package utils

import (
	"sort"
	"sync"
	"time"
)

// LatencyTracker keeps the most recent duration samples in a ring and
// computes percentiles over them.
type LatencyTracker struct {
	mu      sync.RWMutex
	samples []time.Duration
	next    int
	filled  bool
	total   uint64
}

// LatencySummary is a point-in-time view of the tracked window.
type LatencySummary struct {
	Samples int
	P50     time.Duration
	P95     time.Duration
	P99     time.Duration
	Max     time.Duration
}

// NewLatencyTracker creates a tracker storing up to maxSize samples.
func NewLatencyTracker(maxSize int) *LatencyTracker {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &LatencyTracker{samples: make([]time.Duration, maxSize)}
}

// Observe records a new duration, overwriting the oldest once the window is full.
func (l *LatencyTracker) Observe(d time.Duration) {
	if d < 0 {
		d = 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.samples[l.next] = d
	l.next++
	if l.next == len(l.samples) {
		l.next = 0
		l.filled = true
	}
	l.total++
}

// Percentile returns the percentile (0-100) duration. Returns zero if no samples.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.RLock()
	sorted := l.sortedLocked()
	l.mu.RUnlock()
	return percentileOf(sorted, p)
}

// Summary returns p50/p95/p99/max over the current window.
func (l *LatencyTracker) Summary() LatencySummary {
	l.mu.RLock()
	sorted := l.sortedLocked()
	l.mu.RUnlock()

	if len(sorted) == 0 {
		return LatencySummary{}
	}
	return LatencySummary{
		Samples: len(sorted),
		P50:     percentileOf(sorted, 50),
		P95:     percentileOf(sorted, 95),
		P99:     percentileOf(sorted, 99),
		Max:     sorted[len(sorted)-1],
	}
}

// Count returns number of samples currently in the window.
func (l *LatencyTracker) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sizeLocked()
}

// Total returns the number of samples observed since creation.
func (l *LatencyTracker) Total() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

func (l *LatencyTracker) sizeLocked() int {
	if l.filled {
		return len(l.samples)
	}
	return l.next
}

func (l *LatencyTracker) sortedLocked() []time.Duration {
	sorted := append([]time.Duration(nil), l.samples[:l.sizeLocked()]...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted
}

func percentileOf(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	index := int((p / 100.0) * float64(len(sorted)-1))
	return sorted[index]
}
