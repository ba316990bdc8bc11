package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chainlens/evm-indexer/internal/chainfamily"
	"github.com/chainlens/evm-indexer/internal/ierrors"
	"github.com/chainlens/evm-indexer/internal/warehouse"
	"github.com/chainlens/evm-indexer/internal/warehouse/sqlitewh"
)

// blockJSON builds a minimal, no-transaction block for a given number, enough
// for the parser/transformer chain to run end to end without needing per-test
// receipt/log fixtures.
func blockJSON(number uint64) []byte {
	return []byte(fmt.Sprintf(`{
		"number": "0x%x",
		"hash": "0x%064x",
		"parentHash": "0x%064x",
		"timestamp": "0x%x",
		"miner": "0x%040x",
		"gasUsed": "0x0",
		"gasLimit": "0x1c9c380",
		"baseFeePerGas": "0x3b9aca00",
		"size": "0x100",
		"extraData": "0x",
		"stateRoot": "0x%064x",
		"receiptsRoot": "0x%064x",
		"logsBloom": "0x00",
		"transactions": []
	}`, number, number+1, number, 1700000000+number, number+2, number+3, number+4))
}

// fakeSource is an in-memory RPCSource: a fixed chain tip, a no-op receipt
// set (no transactions per block keeps commits trivial), and per-block
// control over the trace fetch so tests can exercise the oversized-trace
// BlockSkip path.
type fakeSource struct {
	mu          sync.Mutex
	chainID     uint64
	head        uint64
	omitTraces  map[uint64]bool
	minAllowed  uint64 // GetBlockWithTxs fails below this, to catch an accidental re-fetch on resume
	blockCalls  map[uint64]int
}

func newFakeSource(chainID, head uint64) *fakeSource {
	return &fakeSource{
		chainID:    chainID,
		head:       head,
		omitTraces: map[uint64]bool{},
		blockCalls: map[uint64]int{},
	}
}

func (f *fakeSource) ChainID(ctx context.Context) (uint64, error) { return f.chainID, nil }

func (f *fakeSource) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeSource) GetBlockWithTxs(ctx context.Context, number uint64) (*RawBlock, error) {
	f.mu.Lock()
	f.blockCalls[number]++
	below := number < f.minAllowed
	f.mu.Unlock()
	if below {
		return nil, fmt.Errorf("fakeSource: block %d fetched but resume should have started at %d", number, f.minAllowed)
	}
	return &RawBlock{Raw: blockJSON(number)}, nil
}

func (f *fakeSource) GetReceiptsForBlock(ctx context.Context, number uint64, block *RawBlock) (*RawReceipts, error) {
	return &RawReceipts{Raw: nil}, nil
}

func (f *fakeSource) GetTracesForBlock(ctx context.Context, number uint64) (*RawTraces, error) {
	f.mu.Lock()
	omit := f.omitTraces[number]
	f.mu.Unlock()
	if omit {
		return nil, &ierrors.OversizedTraceError{BlockNumber: number}
	}
	return &RawTraces{Raw: []byte(`[]`)}, nil
}

func (f *fakeSource) callCount(number uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blockCalls[number]
}

// testLogger discards everything; the Driver only needs something satisfying
// the Logger interface, not an assertion target.
type testLogger struct{}

func (testLogger) Info(msg string, ctx ...interface{})  {}
func (testLogger) Warn(msg string, ctx ...interface{})  {}
func (testLogger) Error(msg string, ctx ...interface{}) {}

func newTestSinks(t *testing.T) warehouse.Sinks {
	t.Helper()
	db, err := sqlitewh.Open(filepath.Join(t.TempDir(), "warehouse.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sinks := warehouse.Sinks{
		Blocks:       sqlitewh.NewBlocksSink(db, "blocks"),
		Transactions: sqlitewh.NewTransactionsSink(db, "transactions"),
		Logs:         sqlitewh.NewLogsSink(db, "logs"),
		Traces:       sqlitewh.NewTracesSink(db, "traces"),
	}
	require.NoError(t, sinks.Bootstrap(context.Background()))
	return sinks
}

func ptrU64(n uint64) *uint64 { return &n }

func TestDriver_BoundedBackfillCommitsEveryBlockThroughEndBlock(t *testing.T) {
	ctx := context.Background()
	sinks := newTestSinks(t)
	src := newFakeSource(1, 100)
	traits := chainfamily.DefaultRegistry().Traits(1)

	driver := NewDriver(Config{
		ChainID:      1,
		Traits:       traits,
		EndBlock:     ptrU64(4),
		Concurrency:  3,
		HeadCacheTTL: time.Second,
		PollInterval: 10 * time.Millisecond,
	}, src, sinks, testLogger{}, "testchain")

	require.NoError(t, driver.Run(ctx))

	min, ok, err := sinks.DurableThrough(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(4), min)

	for n := uint64(0); n <= 4; n++ {
		require.Equal(t, 1, src.callCount(n), "block %d should be fetched exactly once", n)
	}
}

func TestDriver_RestartResumesFromDurableWatermarkWithoutRefetching(t *testing.T) {
	ctx := context.Background()
	sinks := newTestSinks(t)

	firstSrc := newFakeSource(1, 100)
	traits := chainfamily.DefaultRegistry().Traits(1)

	first := NewDriver(Config{
		ChainID:      1,
		Traits:       traits,
		EndBlock:     ptrU64(2),
		Concurrency:  2,
		HeadCacheTTL: time.Second,
		PollInterval: 10 * time.Millisecond,
	}, firstSrc, sinks, testLogger{}, "testchain")
	require.NoError(t, first.Run(ctx))

	min, ok, err := sinks.DurableThrough(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2), min)

	// A fresh process against the same warehouse must resume at block 3, not
	// re-fetch anything already durable: minAllowed makes an accidental
	// re-fetch of 0..2 fail loudly instead of silently re-processing.
	secondSrc := newFakeSource(1, 100)
	secondSrc.minAllowed = 3

	second := NewDriver(Config{
		ChainID:      1,
		Traits:       traits,
		EndBlock:     ptrU64(4),
		Concurrency:  2,
		HeadCacheTTL: time.Second,
		PollInterval: 10 * time.Millisecond,
	}, secondSrc, sinks, testLogger{}, "testchain")
	require.NoError(t, second.Run(ctx))

	min, ok, err = sinks.DurableThrough(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(4), min)
	require.Equal(t, 0, secondSrc.callCount(0))
	require.Equal(t, 0, secondSrc.callCount(2))
	require.Equal(t, 1, secondSrc.callCount(3))
	require.Equal(t, 1, secondSrc.callCount(4))
}

func TestDriver_ChainTipBufferExcludesRecentBlocks(t *testing.T) {
	sinks := newTestSinks(t)
	src := newFakeSource(1, 10) // head = 10
	traits := chainfamily.DefaultRegistry().Traits(1)

	driver := NewDriver(Config{
		ChainID:        1,
		Traits:         traits,
		ChainTipBuffer: 3, // safe target = 10 - 3 = 7
		Concurrency:    4,
		HeadCacheTTL:   20 * time.Millisecond,
		PollInterval:   15 * time.Millisecond,
	}, src, sinks, testLogger{}, "testchain")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, driver.Run(ctx))

	min, ok, err := sinks.DurableThrough(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7), min)

	for n := uint64(8); n <= 10; n++ {
		require.Equal(t, 0, src.callCount(n), "block %d is within the tip buffer and must not be fetched", n)
	}
}

func TestDriver_OversizedTraceDegradesCommitButStallsTracesWatermark(t *testing.T) {
	ctx := context.Background()
	sinks := newTestSinks(t)
	src := newFakeSource(1, 100)
	src.omitTraces[2] = true
	traits := chainfamily.DefaultRegistry().Traits(1)

	driver := NewDriver(Config{
		ChainID:      1,
		Traits:       traits,
		EndBlock:     ptrU64(3),
		Concurrency:  1, // force strictly sequential commits for a deterministic marker pattern
		HeadCacheTTL: time.Second,
		PollInterval: 10 * time.Millisecond,
	}, src, sinks, testLogger{}, "testchain")

	require.NoError(t, driver.Run(ctx))

	_, _, perDataset, err := sinks.DurableThroughDetail(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), perDataset["blocks"], "blocks dataset has no gap and reaches EndBlock")
	require.Equal(t, uint64(1), perDataset["traces"], "traces dataset stalls at the block before the omitted one")

	min, ok, err := sinks.DurableThrough(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), min, "the overall commit watermark is gated by the lagging traces dataset")
}
