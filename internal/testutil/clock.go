// Package testutil provides deterministic helpers for harness tests:
// a monotonic sequence clock for trace ordering, identity generators,
// and an in-process fake of the external metadata tool.
package testutil

import "sync"

// SequenceClock is a thread-safe monotonic logical clock.
//
// Trace events carry sequence numbers from this clock so scenario traces
// are reproducible; Reset enables the same scenario to run repeatedly
// with identical seq values for golden comparison.
type SequenceClock struct {
	mu  sync.Mutex
	seq int64
}

// NewSequenceClock creates a clock starting at 0.
// The first call to Next() returns 1.
func NewSequenceClock() *SequenceClock {
	return &SequenceClock{}
}

// Next increments and returns the next sequence number.
func (c *SequenceClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the current sequence number without incrementing.
func (c *SequenceClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock to 0. After Reset the next call to Next()
// returns 1 again.
func (c *SequenceClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
