package regen

import "sync"

// Clock issues step sequence numbers. Sequences are monotonically
// increasing within a run and start at 1.
type Clock interface {
	Next() int64
}

// SeqClock is the production Clock: an in-memory monotonic counter.
type SeqClock struct {
	mu  sync.Mutex
	seq int64
}

// NewSeqClock returns a SeqClock starting at 0; the first Next is 1.
func NewSeqClock() *SeqClock {
	return &SeqClock{}
}

// Next increments and returns the next sequence number.
func (c *SeqClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}
