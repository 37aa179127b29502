package operators

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheSize = 1024
	DefaultCacheTTL  = 5 * time.Minute

	// DefaultLookupTimeout bounds a shared lookup once it no longer follows
	// the caller that started it.
	DefaultLookupTimeout = 10 * time.Second
)

// CachedRegistry memoizes membership answers from an inner registry for a
// fixed TTL. Concurrent misses for the same address share one lookup.
// Errors are not cached.
type CachedRegistry struct {
	inner Registry
	cache *expirable.LRU[common.Address, bool]
	group singleflight.Group

	// LookupTimeout bounds each shared lookup.
	LookupTimeout time.Duration
}

var _ Registry = (*CachedRegistry)(nil)

// NewCachedRegistry wraps inner. Zero size or ttl select the defaults.
func NewCachedRegistry(inner Registry, size int, ttl time.Duration) *CachedRegistry {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedRegistry{
		inner:         inner,
		cache:         expirable.NewLRU[common.Address, bool](size, nil, ttl),
		LookupTimeout: DefaultLookupTimeout,
	}
}

// IsOperator implements Registry. The shared lookup is detached from the
// caller that started it, so one caller giving up does not fail the others;
// each caller still returns early when its own ctx is done.
func (c *CachedRegistry) IsOperator(ctx context.Context, addr common.Address) (bool, error) {
	if ok, hit := c.cache.Get(addr); hit {
		return ok, nil
	}

	ch := c.group.DoChan(addr.Hex(), func() (interface{}, error) {
		timeout := c.LookupTimeout
		if timeout <= 0 {
			timeout = DefaultLookupTimeout
		}
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		ok, err := c.inner.IsOperator(lookupCtx, addr)
		if err != nil {
			return false, err
		}
		c.cache.Add(addr, ok)
		return ok, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		return res.Val.(bool), nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Purge drops every cached answer.
func (c *CachedRegistry) Purge() {
	c.cache.Purge()
}
