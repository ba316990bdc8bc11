package pipeline

import "sync"

// Cursor tracks the monotonic low-watermark: the highest block number that
// has committed to every dataset with no gap behind it. Blocks within a
// sliding window can commit out of order; the watermark only advances once
// the gap closes, so a resume always starts from a point every dataset
// actually has, never from a block that merely happened to finish first.
type Cursor struct {
	mu        sync.Mutex
	committed map[uint64]bool
	next      uint64 // next block number expected to advance the watermark
	low       uint64
	hasLow    bool
}

// NewCursor starts a cursor expecting startBlock as the first block to
// commit. Low() returns !ok until startBlock itself has committed.
func NewCursor(startBlock uint64) *Cursor {
	return &Cursor{committed: map[uint64]bool{}, next: startBlock}
}

// MarkCommitted records that blockNumber has committed, then advances the
// low-watermark across any newly-contiguous prefix. Returns the new
// watermark and whether one exists yet.
func (c *Cursor) MarkCommitted(blockNumber uint64) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.committed[blockNumber] = true
	for c.committed[c.next] {
		delete(c.committed, c.next)
		c.low = c.next
		c.hasLow = true
		c.next++
	}
	return c.low, c.hasLow
}

// Low returns the current committed low-watermark.
func (c *Cursor) Low() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.low, c.hasLow
}
