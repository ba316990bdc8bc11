// Package pipeline runs the bounded-concurrency block loop: resolve a start
// point, fetch/parse/transform/commit a sliding window of blocks, and track
// a monotonic low-watermark cursor so a crash-and-restart resumes without
// gaps or duplication. It plays the role zk/stages/stage_l1syncer.go plays
// over zk/syncer.L1Syncer in the teacher: a driver loop around a syncer
// component, except fan-out here uses golang.org/x/sync/errgroup's bounded
// group instead of the teacher's hand-rolled job/result channels.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chainlens/evm-indexer/internal/chainfamily"
	"github.com/chainlens/evm-indexer/internal/ierrors"
	"github.com/chainlens/evm-indexer/internal/metrics"
	"github.com/chainlens/evm-indexer/internal/parser"
	"github.com/chainlens/evm-indexer/internal/transform"
	"github.com/chainlens/evm-indexer/internal/warehouse"
)

// RPCSource is the subset of rpcadapter.Client the Driver calls, so tests can
// substitute a fake chain without dialing a node.
type RPCSource interface {
	ChainID(ctx context.Context) (uint64, error)
	BlockNumber(ctx context.Context) (uint64, error)
	GetBlockWithTxs(ctx context.Context, number uint64) (*RawBlock, error)
	GetReceiptsForBlock(ctx context.Context, number uint64, block *RawBlock) (*RawReceipts, error)
	GetTracesForBlock(ctx context.Context, number uint64) (*RawTraces, error)
}

// RawBlock, RawReceipts and RawTraces mirror rpcadapter's result shapes,
// redeclared here so pipeline depends only on the data it needs rather than
// importing rpcadapter's chain-family-aware method signatures directly; the
// cmd/indexer wiring layer adapts an *rpcadapter.Client to this interface.
type RawBlock struct {
	Raw []byte
}
type RawReceipts struct {
	Raw [][]byte
}
type RawTraces struct {
	Raw     []byte
	Omitted bool
}

// Logger is the minimal logging surface the Driver needs, satisfied by
// github.com/ledgerwatch/log/v3's Logger.
type Logger interface {
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
}

func (l *logWarnerAdapter) Warnf(format string, args ...any) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

type logWarnerAdapter struct{ log Logger }

// Config is the subset of the process Config the Driver itself consumes.
type Config struct {
	ChainID        uint64
	Traits         chainfamily.Traits
	StartBlock     *uint64
	EndBlock       *uint64
	ChainTipBuffer uint64
	Concurrency    int
	HeadCacheTTL   time.Duration
	PollInterval   time.Duration

	// StrictDedup makes the Driver check each block's durable watermark
	// before dispatching fan-out for it, skipping RPC fetch and transform
	// entirely for a block a prior run already committed durably. Without
	// it, a rerun over an already-indexed range still re-fetches and
	// re-appends every block, relying solely on the sink's insertId dedup
	// for correctness (see SPEC_FULL.md Open Question #1).
	StrictDedup bool

	// ResumeGapCheck logs the per-dataset durable watermark at startup
	// instead of only the min across datasets, surfacing a lagging sink
	// (e.g. after a crash mid-Sinks.Commit) rather than silently resuming
	// from the conservative min with no diagnostic.
	ResumeGapCheck bool

	// EnabledDatasets restricts Commit/Bootstrap to a subset of
	// {"blocks", "transactions", "logs", "traces"}; nil or empty enables all
	// four (spec.md §4.5 "enabled_datasets").
	EnabledDatasets map[string]bool
}

// Driver runs the fetch/parse/transform/commit loop for one chain.
type Driver struct {
	cfg    Config
	rpc    RPCSource
	sinks  warehouse.Sinks
	log    Logger
	chain  string
	head   *HeadCache
}

func NewDriver(cfg Config, rpc RPCSource, sinks warehouse.Sinks, log Logger, chainLabel string) *Driver {
	sinks.Enabled = cfg.EnabledDatasets
	d := &Driver{cfg: cfg, rpc: rpc, sinks: sinks, log: log, chain: chainLabel}
	d.head = NewHeadCache(cfg.HeadCacheTTL, rpc.BlockNumber)
	return d
}

// Run resolves the start block against the warehouse's durable watermark,
// then processes blocks until EndBlock (a bounded backfill) or forever,
// tailing the chain tip minus ChainTipBuffer (live mode), until ctx is
// canceled.
func (d *Driver) Run(ctx context.Context) error {
	start, err := d.resolveStart(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: resolve start block: %w", err)
	}

	cursor := NewCursor(start)
	next := start

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		target, done, err := d.resolveTarget(ctx, next)
		if err != nil {
			return fmt.Errorf("pipeline: resolve target block: %w", err)
		}
		if done {
			return nil
		}
		if target < next {
			// Live-tail caught up to the buffered tip; wait and re-poll
			// rather than busy-looping against the node.
			if err := sleepCtx(ctx, d.cfg.PollInterval); err != nil {
				return nil
			}
			continue
		}

		windowEnd := target
		if maxWindow := next + uint64(d.cfg.Concurrency) - 1; maxWindow < windowEnd {
			windowEnd = maxWindow
		}

		if err := d.runWindow(ctx, next, windowEnd, cursor); err != nil {
			return err
		}

		if low, ok := cursor.Low(); ok {
			metrics.CommittedCursor.WithLabelValues(d.chain).Set(float64(low))
		}
		d.reportDurableWatermark(ctx)

		next = windowEnd + 1

		if d.cfg.EndBlock != nil && next > *d.cfg.EndBlock {
			return nil
		}
	}
}

// runWindow processes [from, to] concurrently, bounded by cfg.Concurrency,
// committing each block as soon as it is ready (out of order is fine: the
// Cursor only advances across a contiguous prefix).
func (d *Driver) runWindow(ctx context.Context, from, to uint64, cursor *Cursor) error {
	var alreadyDurable uint64
	var haveAlreadyDurable bool
	if d.cfg.StrictDedup {
		if n, ok, err := d.sinks.DurableThrough(ctx); err == nil && ok {
			alreadyDurable, haveAlreadyDurable = n, true
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)

	for n := from; n <= to; n++ {
		n := n
		g.Go(func() error {
			if haveAlreadyDurable && n <= alreadyDurable {
				// A prior run already committed this block durably across
				// every dataset: skip the RPC fetch and transform entirely
				// rather than leaning only on the sink's insertId dedup,
				// per Config.StrictDedup (SPEC_FULL.md Open Question #1).
				d.log.Info("skipping already-durable block", "chain", d.chain, "block", n)
			} else if err := d.processBlock(gctx, n); err != nil {
				return fmt.Errorf("block %d: %w", n, err)
			}
			low, ok := cursor.MarkCommitted(n)
			if ok {
				d.log.Info("committed through block", "chain", d.chain, "block", low)
			}
			metrics.BlocksCommitted.WithLabelValues(d.chain).Inc()
			return nil
		})
	}

	return g.Wait()
}

// processBlock runs the fetch -> parse -> transform -> commit chain for one
// block. A BlockSkip classification (oversized trace) degrades to an
// omitted-traces commit rather than failing the block, per spec.md §4.2/§7;
// any other error fails the block and is returned for the caller to decide
// whether the whole window aborts.
func (d *Driver) processBlock(ctx context.Context, number uint64) error {
	block, err := d.rpc.GetBlockWithTxs(ctx, number)
	if err != nil {
		return err
	}

	receipts, err := d.rpc.GetReceiptsForBlock(ctx, number, block)
	if err != nil {
		return err
	}

	traces, err := d.rpc.GetTracesForBlock(ctx, number)
	if err != nil {
		if ierrors.Classify(err) != ierrors.BlockSkip {
			return err
		}
		traces = &RawTraces{Omitted: true}
	}

	parsed, err := parser.Parse(d.cfg.Traits, toParserInput(d.cfg.ChainID, number, block, receipts, traces))
	if err != nil {
		return err
	}

	if parsed.TracesOmitted {
		metrics.OversizedTraceBlocks.WithLabelValues(d.chain).Inc()
	}

	warner := &logWarnerAdapter{log: d.log}
	rows, err := transform.Transform(parsed, warner)
	if err != nil {
		return err
	}

	timer := newAppendTimer()
	defer timer.observe("all")

	return d.sinks.Commit(ctx, rows)
}

// resolveStart picks the first block this run processes: the configured
// StartBlock if set and past the warehouse's durable watermark, otherwise
// one past whatever the warehouse already has durably committed, or zero on
// a cold start with no StartBlock given.
func (d *Driver) resolveStart(ctx context.Context) (uint64, error) {
	durable, ok, err := d.durableWatermark(ctx)
	if err != nil {
		return 0, err
	}

	resume := uint64(0)
	if ok {
		resume = durable + 1
	}

	if d.cfg.StartBlock != nil && *d.cfg.StartBlock > resume {
		return *d.cfg.StartBlock, nil
	}
	return resume, nil
}

// durableWatermark is DurableThrough, plus a per-dataset log line under
// Config.ResumeGapCheck so an operator can see which dataset (if any) is
// lagging the others instead of only the conservative min.
func (d *Driver) durableWatermark(ctx context.Context) (uint64, bool, error) {
	if !d.cfg.ResumeGapCheck {
		return d.sinks.DurableThrough(ctx)
	}

	min, ok, perDataset, err := d.sinks.DurableThroughDetail(ctx)
	if err != nil {
		return 0, false, err
	}
	if ok {
		d.log.Info("resume watermark by dataset", "chain", d.chain, "min", min, "datasets", perDataset)
	}
	return min, ok, nil
}

// reportDurableWatermark refreshes the per-dataset durable-watermark gauge
// from the warehouse, called once per window so it reflects this run's
// progress rather than only the value read at startup.
func (d *Driver) reportDurableWatermark(ctx context.Context) {
	_, _, perDataset, err := d.sinks.DurableThroughDetail(ctx)
	if err != nil {
		return
	}
	for dataset, watermark := range perDataset {
		metrics.DurableWatermark.WithLabelValues(dataset, d.chain).Set(float64(watermark))
	}
}

// resolveTarget returns the highest block number currently safe to process:
// EndBlock for a bounded backfill, or the chain tip minus ChainTipBuffer for
// live tailing. done is true once a bounded run's range is exhausted.
func (d *Driver) resolveTarget(ctx context.Context, next uint64) (target uint64, done bool, err error) {
	if d.cfg.EndBlock != nil {
		if next > *d.cfg.EndBlock {
			return 0, true, nil
		}
		return *d.cfg.EndBlock, false, nil
	}

	head, err := d.head.Get(ctx)
	if err != nil {
		return 0, false, err
	}
	if head < d.cfg.ChainTipBuffer {
		return 0, false, nil
	}
	return head - d.cfg.ChainTipBuffer, false, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func toParserInput(chainID, number uint64, block *RawBlock, receipts *RawReceipts, traces *RawTraces) parser.Input {
	receiptMsgs := make([]json.RawMessage, len(receipts.Raw))
	for i, r := range receipts.Raw {
		receiptMsgs[i] = r
	}
	return parser.Input{
		ChainID:       chainID,
		BlockNumber:   number,
		Block:         block.Raw,
		Receipts:      receiptMsgs,
		TracesOmitted: traces.Omitted,
		Traces:        traces.Raw,
	}
}

type appendTimer struct{ start time.Time }

func newAppendTimer() appendTimer { return appendTimer{start: time.Now()} }

func (t appendTimer) observe(dataset string) {
	metrics.WarehouseAppendDuration.WithLabelValues(dataset).Observe(time.Since(t.start).Seconds())
}
