package invcache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vnykmshr/invcache-go/internal/entry"
	"github.com/vnykmshr/invcache-go/pkg/metrics"
)

// InvalidateByTag removes every entry carrying tag and returns how many were
// removed. Unknown tags remove nothing.
func (c *Cache[V]) InvalidateByTag(tag string) int {
	return c.InvalidateByTagContext(context.Background(), tag)
}

// InvalidateByTagContext is InvalidateByTag with a context passed through to hooks
func (c *Cache[V]) InvalidateByTagContext(ctx context.Context, tag string) int {
	return c.invalidate(ctx, InvalidateCauseTag, func() []string {
		if !c.index.HasTag(tag) {
			return nil
		}
		keys := c.index.TagKeys(tag)
		c.index.DropTag(tag)
		return keys
	})
}

// InvalidateByDependency removes every entry declaring dependency and
// returns how many were removed
func (c *Cache[V]) InvalidateByDependency(dependency string) int {
	return c.InvalidateByDependencyContext(context.Background(), dependency)
}

// InvalidateByDependencyContext is InvalidateByDependency with a context
// passed through to hooks
func (c *Cache[V]) InvalidateByDependencyContext(ctx context.Context, dependency string) int {
	return c.invalidate(ctx, InvalidateCauseDependency, func() []string {
		if !c.index.HasDependency(dependency) {
			return nil
		}
		keys := c.index.DependencyKeys(dependency)
		c.index.DropDependency(dependency)
		return keys
	})
}

// invalidate removes the keys returned by collect, which runs under the
// cache lock
func (c *Cache[V]) invalidate(ctx context.Context, cause InvalidateCause, collect func() []string) int {
	start := time.Now()
	defer func() {
		c.recordCacheOperation(metrics.OperationInvalidate, time.Since(start))
	}()

	c.mu.Lock()
	keys := collect()
	removed := make([]*entry.Entry[V], 0, len(keys))
	for _, key := range keys {
		if e, ok := c.entries[key]; ok {
			c.unlinkLocked(e)
			removed = append(removed, e)
		}
	}
	c.stats.invalidations.Add(int64(len(removed)))
	c.mu.Unlock()

	if len(removed) == 0 {
		return 0
	}

	for _, e := range removed {
		c.hooks.invokeOnInvalidate(ctx, e.Key, cause)
	}
	c.logger.WithFields(logrus.Fields{
		"cause":   cause.String(),
		"removed": len(removed),
	}).Debug("invalidated cache entries")
	c.markDirty()
	return len(removed)
}
