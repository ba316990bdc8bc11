package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HeadCache memoizes eth_blockNumber behind a rate.Limiter-gated refresh, the
// way zk/syncer.L1Syncer caches latestL1Block in an atomic field instead of
// calling out on every loop iteration. A chain head rarely moves more than
// once per TTL window, so this keeps live-tail from hammering the node.
type HeadCache struct {
	fetch   func(ctx context.Context) (uint64, error)
	limiter *rate.Limiter

	mu    sync.Mutex
	value uint64
	have  bool
}

// NewHeadCache builds a cache that allows at most one refresh per ttl,
// bursting to a single immediate fetch on cold start.
func NewHeadCache(ttl time.Duration, fetch func(ctx context.Context) (uint64, error)) *HeadCache {
	return &HeadCache{
		fetch:   fetch,
		limiter: rate.NewLimiter(rate.Every(ttl), 1),
	}
}

// Get returns the cached head, refreshing it first if the limiter allows a
// new fetch this call.
func (h *HeadCache) Get(ctx context.Context) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	allowed := h.limiter.Allow()
	if h.have && !allowed {
		return h.value, nil
	}

	v, err := h.fetch(ctx)
	if err != nil {
		// A stale cached value is still useful if the refresh failed and we
		// have one; only propagate the error on a true cold start.
		if h.have {
			return h.value, nil
		}
		return 0, err
	}

	h.value = v
	h.have = true
	return v, nil
}
