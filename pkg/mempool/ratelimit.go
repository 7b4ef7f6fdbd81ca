// Copyright 2025 BPI Labs

package mempool

import (
	"sync"
	"time"
)

// SlidingWindow is a per-sender submission rate limiter: each sender
// may submit at most limit envelopes within any rolling window
// duration. Generalizes the bound-check vocabulary in
// pkg/consensus/types.go (ValidateThreshold/CalculateRequiredCount
// compare a count against a required fraction of a total) into a
// count-against-a-fixed-cap check over a rolling time window instead
// of a fixed vote tally.
type SlidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	events map[string][]time.Time
}

// NewSlidingWindow constructs a limiter admitting at most limit
// submissions per sender within window.
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:  limit,
		window: window,
		events: make(map[string][]time.Time),
	}
}

// Allow records a submission attempt for sender at time now and
// reports whether it falls within the sender's current-window budget.
// Pruned entries are evicted oldest-first, so DoS shedding within a
// rate-limited sender's own backlog is oldest-first by construction.
func (w *SlidingWindow) Allow(sender string, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.window)
	events := w.events[sender]

	kept := events[:0]
	for _, t := range events {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= w.limit {
		w.events[sender] = kept
		return false
	}

	kept = append(kept, now)
	w.events[sender] = kept
	return true
}

// Count returns the number of submissions currently counted within
// the window for sender, without recording a new attempt.
func (w *SlidingWindow) Count(sender string, now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.window)
	count := 0
	for _, t := range w.events[sender] {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}
