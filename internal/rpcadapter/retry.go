package rpcadapter

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/chainlens/evm-indexer/internal/ierrors"
)

// RetryConfig holds the full-jitter backoff parameters from spec.md §4.2.
// The corpus does not reach for a generic backoff library for this: every
// retry loop we grounded this on (zk/syncer/l1_syncer.go's
// getSequencedLogs/GetOldAccInputHash) is a small hand-written loop, so this
// stays a standalone type rather than importing e.g. cenkalti/backoff.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// DefaultRetryConfig matches spec.md's defaults: A=10, d0=250ms, m=2.0, dmax=30s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 10,
		BaseDelay:   250 * time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    30 * time.Second,
	}
}

// delay computes the full-jitter delay for attempt k (0-indexed):
// uniform(0, min(d_max, d0*m^k)).
func (c RetryConfig) delay(attempt int, rng *rand.Rand) time.Duration {
	raw := float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(attempt))
	capped := math.Min(raw, float64(c.MaxDelay))
	if capped <= 0 {
		return 0
	}
	return time.Duration(rng.Int63n(int64(capped) + 1))
}

// retryCounter is implemented by the metrics package; kept as a narrow
// interface here so rpcadapter does not import internal/metrics directly.
type retryCounter interface {
	IncRPCRetry(op string)
}

type noopCounter struct{}

func (noopCounter) IncRPCRetry(string) {}

// withRetry runs fn until it succeeds, a non-retriable error is returned, or
// MaxAttempts is exhausted. op names the call for metrics/log context.
func withRetry(ctx context.Context, cfg RetryConfig, counter retryCounter, op string, fn func(ctx context.Context) error) error {
	if counter == nil {
		counter = noopCounter{}
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !ierrors.IsRetriable(lastErr) {
			return lastErr
		}

		counter.IncRPCRetry(op)

		if attempt == cfg.MaxAttempts-1 {
			break
		}

		d := cfg.delay(attempt, rng)
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
