package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCursor_NoWatermarkBeforeFirstCommit(t *testing.T) {
	c := NewCursor(100)
	_, ok := c.Low()
	require.False(t, ok)
}

func TestCursor_AdvancesAcrossContiguousPrefix(t *testing.T) {
	c := NewCursor(100)

	low, ok := c.MarkCommitted(100)
	require.True(t, ok)
	require.Equal(t, uint64(100), low)

	low, ok = c.MarkCommitted(101)
	require.True(t, ok)
	require.Equal(t, uint64(101), low)
}

func TestCursor_OutOfOrderCommitsOnlyAdvanceOnceGapCloses(t *testing.T) {
	c := NewCursor(100)

	// 102 commits before 100 and 101 — watermark must not jump ahead.
	low, ok := c.MarkCommitted(102)
	require.False(t, ok, "watermark must not advance past a gap")
	require.Equal(t, uint64(0), low)

	low, ok = c.MarkCommitted(101)
	require.False(t, ok)
	require.Equal(t, uint64(0), low)

	low, ok = c.MarkCommitted(100)
	require.True(t, ok, "the gap has closed, watermark should now jump straight to 102")
	require.Equal(t, uint64(102), low)
}

func TestCursor_DuplicateCommitIsIdempotent(t *testing.T) {
	c := NewCursor(100)
	c.MarkCommitted(100)
	low, ok := c.MarkCommitted(100)
	require.True(t, ok)
	require.Equal(t, uint64(100), low)
}

func TestCursor_LowReflectsLatestMarkCommitted(t *testing.T) {
	c := NewCursor(5)
	c.MarkCommitted(5)
	c.MarkCommitted(6)
	c.MarkCommitted(7)

	low, ok := c.Low()
	require.True(t, ok)
	require.Equal(t, uint64(7), low)
}
