package warehouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainlens/evm-indexer/internal/model"
)

// fakeSink is a minimal Sink double that records whether Bootstrap/Append
// were called, so tests can assert a disabled dataset is skipped entirely.
type fakeSink struct {
	bootstrapped bool
	appended     int
	watermark    uint64
	have         bool
}

func (f *fakeSink) Bootstrap(ctx context.Context) error {
	f.bootstrapped = true
	return nil
}

func (f *fakeSink) Append(ctx context.Context, blockNumber uint64, rows any) error {
	f.appended++
	f.watermark = blockNumber
	f.have = true
	return nil
}

func (f *fakeSink) MaxContiguousBlock(ctx context.Context) (uint64, bool, error) {
	return f.watermark, f.have, nil
}

func newFakeSinks() (Sinks, map[string]*fakeSink) {
	blocks, txs, logs, traces := &fakeSink{}, &fakeSink{}, &fakeSink{}, &fakeSink{}
	sinks := Sinks{Blocks: blocks, Transactions: txs, Logs: logs, Traces: traces}
	return sinks, map[string]*fakeSink{
		"blocks": blocks, "transactions": txs, "logs": logs, "traces": traces,
	}
}

func TestSinks_NilEnabledMeansEveryDatasetWritten(t *testing.T) {
	sinks, fakes := newFakeSinks()
	ctx := context.Background()

	require.NoError(t, sinks.Bootstrap(ctx))
	for name, f := range fakes {
		require.True(t, f.bootstrapped, "dataset %s should bootstrap when Enabled is nil", name)
	}

	rows := &model.RowSet{BlockNumber: 10}
	require.NoError(t, sinks.Commit(ctx, rows))
	for name, f := range fakes {
		require.Equal(t, 1, f.appended, "dataset %s should receive the commit when Enabled is nil", name)
	}
}

func TestSinks_CommitSkipsDisabledDataset(t *testing.T) {
	sinks, fakes := newFakeSinks()
	sinks.Enabled = map[string]bool{"blocks": true, "transactions": true}
	ctx := context.Background()

	rows := &model.RowSet{BlockNumber: 10}
	require.NoError(t, sinks.Commit(ctx, rows))

	require.Equal(t, 1, fakes["blocks"].appended)
	require.Equal(t, 1, fakes["transactions"].appended)
	require.Equal(t, 0, fakes["logs"].appended, "logs is not in Enabled and must never be appended to")
	require.Equal(t, 0, fakes["traces"].appended, "traces is not in Enabled and must never be appended to")
}

func TestSinks_BootstrapSkipsDisabledDataset(t *testing.T) {
	sinks, fakes := newFakeSinks()
	sinks.Enabled = map[string]bool{"blocks": true}
	ctx := context.Background()

	require.NoError(t, sinks.Bootstrap(ctx))

	require.True(t, fakes["blocks"].bootstrapped)
	require.False(t, fakes["transactions"].bootstrapped)
	require.False(t, fakes["logs"].bootstrapped)
	require.False(t, fakes["traces"].bootstrapped)
}

func TestSinks_DurableThroughDetailIgnoresDisabledDatasets(t *testing.T) {
	sinks, fakes := newFakeSinks()
	sinks.Enabled = map[string]bool{"blocks": true, "transactions": true}
	ctx := context.Background()

	fakes["blocks"].watermark, fakes["blocks"].have = 5, true
	fakes["transactions"].watermark, fakes["transactions"].have = 8, true
	// logs/traces never committed to and never queried since they're disabled.

	min, ok, perDataset, err := sinks.DurableThroughDetail(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(5), min)
	require.Len(t, perDataset, 2)
	_, hasLogs := perDataset["logs"]
	require.False(t, hasLogs)
}

func TestSinks_DurableThroughDetailWaitsOnEveryEnabledDataset(t *testing.T) {
	sinks, fakes := newFakeSinks()
	fakes["blocks"].watermark, fakes["blocks"].have = 5, true
	// transactions/logs/traces never committed: have stays false.

	_, ok, _, err := sinks.DurableThroughDetail(context.Background())
	require.NoError(t, err)
	require.False(t, ok, "durable-through must be false until every enabled dataset has a watermark")
}
