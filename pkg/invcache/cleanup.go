package invcache

import (
	"context"
	"time"

	"github.com/vnykmshr/invcache-go/internal/entry"
	"github.com/vnykmshr/invcache-go/pkg/metrics"
)

// Cleanup removes all expired entries and returns how many were removed
func (c *Cache[V]) Cleanup() int {
	start := time.Now()
	defer func() {
		c.recordCacheOperation(metrics.OperationCleanup, time.Since(start))
	}()

	c.mu.Lock()
	now := c.now()
	var expired []*entry.Entry[V]
	for _, e := range c.entries {
		if e.IsExpired(now) {
			expired = append(expired, e)
		}
	}
	for _, e := range expired {
		c.unlinkLocked(e)
	}
	c.stats.expirations.Add(int64(len(expired)))
	c.mu.Unlock()

	if len(expired) == 0 {
		return 0
	}

	ctx := context.Background()
	for _, e := range expired {
		c.hooks.invokeOnEvict(ctx, e.Key, evictedValue(e), EvictReasonTTL)
	}
	c.logger.WithField("removed", len(expired)).Debug("swept expired cache entries")
	c.markDirty()
	return len(expired)
}

func (c *Cache[V]) cleanupLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Cleanup()
		case <-c.stop:
			return
		}
	}
}
