// Package warehouse defines the Sink abstraction the Pipeline Driver writes
// to: a per-dataset append-only target that can bootstrap its own schema, a
// batch of rows, and report back the durable watermark for resume. Two
// implementations satisfy it: internal/warehouse/bigquerywh for production
// and internal/warehouse/sqlitewh for tests and local development, following
// the single-interface/two-implementation split the teacher uses for its
// HermezDb tables (real MDBX) versus its in-memory/test doubles.
package warehouse

import (
	"context"

	"github.com/chainlens/evm-indexer/internal/model"
)

// Sink is the append-only warehouse target for one dataset (blocks,
// transactions, logs, or traces).
type Sink interface {
	// Bootstrap creates the backing table/schema if it doesn't already
	// exist. Idempotent: safe to call on every process start.
	Bootstrap(ctx context.Context) error

	// Append writes rows for a single block, deduplicating on each row's
	// PrimaryKey(). Append must be safe to call twice with the same rows
	// (e.g. after a crash mid-commit) without duplicating data. blockNumber
	// is passed explicitly (not derived from rows) because rows may
	// legitimately be empty — a block with zero logs or zero internal calls
	// still needs to advance MaxContiguousBlock once committed, per spec.md
	// invariant #2 ("empty sets remain empty, but commit still occurred").
	Append(ctx context.Context, blockNumber uint64, rows any) error

	// MaxContiguousBlock returns the dataset's durable watermark N, so the
	// Driver can resume from N+1. sqlitewh returns the highest N such that
	// every block from its lowest committed block up to N has been committed,
	// with no gaps; bigquerywh returns MAX(block_number) and does not check
	// for gaps below it.
	MaxContiguousBlock(ctx context.Context) (uint64, bool, error)
}

// TracesBatch is what Sinks.Commit passes to the Traces sink's Append,
// instead of a bare []model.TraceRow: a block with zero internal calls and a
// block whose traces were skipped for being oversized both produce an empty
// Rows slice, and only the Omitted flag tells a Sink which one happened, so
// it knows whether to advance MaxContiguousBlock for this block.
type TracesBatch struct {
	Rows    []model.TraceRow
	Omitted bool
}

// Sinks bundles the four per-dataset sinks the Driver commits each block to.
// Commit appends to the datasets one after another, not atomically: a
// failure partway through leaves the earlier datasets written for that
// block, and DurableThrough's min across datasets keeps such a block out of
// the resume watermark.
type Sinks struct {
	Blocks       Sink
	Transactions Sink
	Logs         Sink
	Traces       Sink

	// Enabled restricts Bootstrap/Commit/DurableThroughDetail to a subset of
	// {"blocks", "transactions", "logs", "traces"}; nil or empty means every
	// dataset is enabled (spec.md §4.5/§6 "enabled_datasets").
	Enabled map[string]bool
}

// enabled reports whether dataset name should be written to. A nil/empty
// Enabled set means every dataset is enabled.
func (s Sinks) enabled(name string) bool {
	if len(s.Enabled) == 0 {
		return true
	}
	return s.Enabled[name]
}

// Bootstrap initializes every enabled dataset.
func (s Sinks) Bootstrap(ctx context.Context) error {
	named := []struct {
		name string
		sink Sink
	}{
		{"blocks", s.Blocks},
		{"transactions", s.Transactions},
		{"logs", s.Logs},
		{"traces", s.Traces},
	}
	for _, n := range named {
		if !s.enabled(n.name) {
			continue
		}
		if err := n.sink.Bootstrap(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Commit appends one block's row sets across every enabled dataset. Callers
// must never advance the committed cursor until Commit returns nil;
// internal/pipeline.Driver does not retry a failed Commit, the error fails
// the block and ends the run. A disabled dataset is skipped entirely: it never receives
// rows and never contributes to DurableThroughDetail.
func (s Sinks) Commit(ctx context.Context, rows *model.RowSet) error {
	if s.enabled("blocks") {
		if err := s.Blocks.Append(ctx, rows.BlockNumber, rows.Blocks); err != nil {
			return err
		}
	}
	if s.enabled("transactions") {
		if err := s.Transactions.Append(ctx, rows.BlockNumber, rows.Transactions); err != nil {
			return err
		}
	}
	if s.enabled("logs") {
		if err := s.Logs.Append(ctx, rows.BlockNumber, rows.Logs); err != nil {
			return err
		}
	}
	if s.enabled("traces") {
		if err := s.Traces.Append(ctx, rows.BlockNumber, TracesBatch{Rows: rows.Traces, Omitted: rows.TracesOmitted}); err != nil {
			return err
		}
	}
	return nil
}

// DurableThrough returns the lowest MaxContiguousBlock across all enabled
// datasets: the point below which every dataset is guaranteed complete, and
// above which the Driver must re-fetch and re-commit on resume.
func (s Sinks) DurableThrough(ctx context.Context) (uint64, bool, error) {
	min, ok, _, err := s.DurableThroughDetail(ctx)
	return min, ok, err
}

// DurableThroughDetail is DurableThrough plus the per-dataset watermark that
// produced it, keyed by dataset name. The Driver surfaces this under
// Config.ResumeGapCheck so a lagging dataset (one sink durably behind the
// others, e.g. after a crash mid-Sinks.Commit) is visible in the resume log
// line instead of silently folded into the min.
func (s Sinks) DurableThroughDetail(ctx context.Context) (min uint64, ok bool, perDataset map[string]uint64, err error) {
	named := []struct {
		name string
		sink Sink
	}{
		{"blocks", s.Blocks},
		{"transactions", s.Transactions},
		{"logs", s.Logs},
		{"traces", s.Traces},
	}

	perDataset = make(map[string]uint64, len(named))
	var minSet bool
	for _, n := range named {
		if !s.enabled(n.name) {
			continue
		}
		watermark, has, err := n.sink.MaxContiguousBlock(ctx)
		if err != nil {
			return 0, false, nil, err
		}
		if !has {
			return 0, false, perDataset, nil
		}
		perDataset[n.name] = watermark
		if !minSet || watermark < min {
			min = watermark
			minSet = true
		}
	}
	return min, minSet, perDataset, nil
}
