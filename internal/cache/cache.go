// v2
// internal/cache/cache.go
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Endalebob/smart-home-telemetry/internal/metrics"
)

// Clock supplies the current time. Production wiring passes time.Now; tests
// pass a controllable clock so TTL expiry is deterministic.
type Clock func() time.Time

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache memoizes query results per key with a TTL and collapses duplicate
// concurrent misses into one computation. A key moves Absent -> Pending ->
// Fresh on success and Pending -> Absent on failure, so errors are never
// cached and the next caller retries.
type Cache struct {
	clock Clock

	mu   sync.Mutex
	data map[string]entry

	group singleflight.Group
}

// New builds an empty cache around the supplied clock.
func New(clock Clock) *Cache {
	if clock == nil {
		clock = time.Now
	}
	return &Cache{clock: clock, data: make(map[string]entry)}
}

// GetOrCompute returns the fresh cached value for key, or runs compute at
// most once across all concurrent callers and caches its result for ttl.
// Callers abandoning the wait through their context still leave the
// computation running for the remaining callers.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (any, error)) (any, error) {
	if v, ok := c.lookup(key); ok {
		metrics.ObserveCacheLookup(true)
		return v, nil
	}
	metrics.ObserveCacheLookup(false)

	ch := c.group.DoChan(key, func() (any, error) {
		// Another flight may have stored the value between our lookup and
		// joining the group.
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, v, ttl)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			metrics.ObserveCacheShared()
		}
		return res.Val, nil
	}
}

func (c *Cache) lookup(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if !c.clock().Before(e.expiresAt) {
		// Stale entries are treated as absent and removed on sight.
		delete(c.data, key)
		return nil, false
	}
	return e.value, true
}

func (c *Cache) store(key string, v any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry{value: v, expiresAt: c.clock().Add(ttl)}
}

// Invalidate drops the entry for key if present.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}
