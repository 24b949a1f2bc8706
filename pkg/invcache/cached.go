package invcache

import (
	"context"
	"time"

	"github.com/vnykmshr/invcache-go/pkg/metrics"
)

// Fetcher produces the value for a key on a cache miss
type Fetcher[V any] func(ctx context.Context) (V, error)

// Cached returns the cached value for key, or calls fetch and caches its
// result. Fetch errors are returned unchanged and nothing is cached. Each
// call records a function_call timing labelled hit, miss or error.
//
// Without Singleflight, concurrent misses for the same key each call fetch
// and the last write wins.
func (c *Cache[V]) Cached(ctx context.Context, key string, fetch Fetcher[V], opts ...SetOption) (V, error) {
	var zero V
	if fetch == nil {
		return zero, ErrNilFetcher
	}

	o, err := c.resolveOptions(key, opts)
	if err != nil {
		return zero, err
	}

	start := time.Now()
	if value, ok := c.GetContext(ctx, key); ok {
		c.recordFetch(metrics.ResultHit, time.Since(start))
		return value, nil
	}

	var value V
	if c.sf != nil {
		res, err, _ := c.sf.Do(key, func() (any, error) {
			return c.fetchAndStore(ctx, key, fetch, o)
		})
		if err != nil {
			c.recordFetch(metrics.ResultError, time.Since(start))
			return zero, err
		}
		value, _ = res.(V)
	} else {
		res, err := c.fetchAndStore(ctx, key, fetch, o)
		if err != nil {
			c.recordFetch(metrics.ResultError, time.Since(start))
			return zero, err
		}
		value = res
	}

	c.recordFetch(metrics.ResultMiss, time.Since(start))
	return value, nil
}

func (c *Cache[V]) fetchAndStore(ctx context.Context, key string, fetch Fetcher[V], o setOptions) (V, error) {
	value, err := fetch(ctx)
	if err != nil {
		return value, err
	}

	if err := c.set(ctx, key, value, o); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("failed to cache fetched value")
	}
	return value, nil
}

func (c *Cache[V]) recordFetch(result metrics.Result, duration time.Duration) {
	labels := make(metrics.Labels, len(c.metricsLabels)+1)
	for k, v := range c.metricsLabels {
		labels[k] = v
	}
	labels[metrics.ResultLabel] = string(result)
	c.recordOperation(metrics.OperationFunctionCall, duration, labels)
}
