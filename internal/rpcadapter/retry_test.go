package rpcadapter

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chainlens/evm-indexer/internal/ierrors"
)

func TestRetryConfig_DelayNeverExceedsMaxDelay(t *testing.T) {
	cfg := DefaultRetryConfig()
	rng := rand.New(rand.NewSource(1))
	for attempt := 0; attempt < 20; attempt++ {
		d := cfg.delay(attempt, rng)
		require.LessOrEqual(t, d, cfg.MaxDelay)
		require.GreaterOrEqual(t, d, time.Duration(0))
	}
}

func TestRetryConfig_DelayStaysCappedPastGrowth(t *testing.T) {
	cfg := DefaultRetryConfig()
	rng := rand.New(rand.NewSource(2))

	// Attempt 0's ceiling is BaseDelay; the ceiling doubles per attempt and
	// first reaches MaxDelay at attempt 7 (250ms * 2^6 = 16s < 30s,
	// 250ms * 2^7 = 32s > 30s), so sample well past the point growth
	// flattens out and check the cap holds exactly.
	d := cfg.delay(10, rng)
	require.LessOrEqual(t, d, cfg.MaxDelay)
}

func TestWithRetry_SucceedsWithoutRetryingOnFirstSuccess(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), DefaultRetryConfig(), nil, "test_op", func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestWithRetry_StopsImmediatelyOnNonRetriableError(t *testing.T) {
	fatalErr := errors.New("malformed response body")
	calls := 0
	err := withRetry(context.Background(), DefaultRetryConfig(), nil, "test_op", func(ctx context.Context) error {
		calls++
		return fatalErr
	})
	require.ErrorIs(t, err, fatalErr)
	require.Equal(t, 1, calls, "a Fatal-classified error must not be retried")
}

func TestWithRetry_RetriesRetriableErrorUntilSuccess(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 10, BaseDelay: time.Millisecond, Multiplier: 2.0, MaxDelay: 10 * time.Millisecond}
	calls := 0
	err := withRetry(context.Background(), cfg, nil, "test_op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &ierrors.NullBlockError{BlockNumber: 1}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestWithRetry_ExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2.0, MaxDelay: 5 * time.Millisecond}
	calls := 0
	retriable := &ierrors.NullBlockError{BlockNumber: 42}
	err := withRetry(context.Background(), cfg, nil, "test_op", func(ctx context.Context) error {
		calls++
		return retriable
	})
	require.Equal(t, retriable, err)
	require.Equal(t, 3, calls)
}

func TestWithRetry_ReturnsImmediatelyOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond, Multiplier: 2.0, MaxDelay: 5 * time.Millisecond}
	calls := 0
	err := withRetry(ctx, cfg, nil, "test_op", func(ctx context.Context) error {
		calls++
		return &ierrors.NullBlockError{BlockNumber: 1}
	})
	require.Error(t, err)
	require.Equal(t, 0, calls, "should not attempt fn at all once context is already done")
}

type countingRetryCounter struct {
	retries int
}

func (c *countingRetryCounter) IncRPCRetry(op string) {
	c.retries++
}

func TestWithRetry_IncrementsCounterOnEachRetry(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 4, BaseDelay: time.Millisecond, Multiplier: 2.0, MaxDelay: 5 * time.Millisecond}
	counter := &countingRetryCounter{}
	calls := 0
	_ = withRetry(context.Background(), cfg, counter, "test_op", func(ctx context.Context) error {
		calls++
		return &ierrors.NullBlockError{BlockNumber: 1}
	})
	require.Equal(t, cfg.MaxAttempts, calls)
	require.Equal(t, cfg.MaxAttempts, counter.retries)
}
