// Package apicache puts an invcache.Cache in front of a JSON API client.
// Reads go through the cache keyed by endpoint; writes invalidate the
// entries that depend on the endpoint they touched.
package apicache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vnykmshr/invcache-go/pkg/invcache"
)

const (
	// DefaultMaxAge is the TTL of cached GET responses
	DefaultMaxAge = 5 * time.Minute

	// DefaultTag is attached to every cached response and invalidated by every write
	DefaultTag = "api"

	keyPrefix = "api-get-"
)

// Client is a JSON API client
type Client interface {
	Get(ctx context.Context, endpoint string) (json.RawMessage, error)
	Post(ctx context.Context, endpoint string, body any) (json.RawMessage, error)
	Put(ctx context.Context, endpoint string, body any) (json.RawMessage, error)
	Delete(ctx context.Context, endpoint string) (json.RawMessage, error)
}

// Wrapper caches Client reads and invalidates them on writes
type Wrapper struct {
	client Client
	cache  *invcache.Cache[json.RawMessage]
	logger logrus.FieldLogger
}

// NewWrapper creates a Wrapper. A nil logger uses the logrus standard logger.
func NewWrapper(client Client, cache *invcache.Cache[json.RawMessage], logger logrus.FieldLogger) *Wrapper {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Wrapper{
		client: client,
		cache:  cache,
		logger: logger.WithField("component", "apicache"),
	}
}

// CacheKey returns the cache key used for GET requests to endpoint
func CacheKey(endpoint string) string {
	return keyPrefix + endpoint
}

type getOptions struct {
	key          string
	maxAge       time.Duration
	tags         []string
	dependencies []string
	bypass       bool
}

// GetOption configures a cached read
type GetOption func(*getOptions)

// WithCacheKey overrides the cache key
func WithCacheKey(key string) GetOption {
	return func(o *getOptions) { o.key = key }
}

// WithMaxAge overrides the TTL
func WithMaxAge(maxAge time.Duration) GetOption {
	return func(o *getOptions) { o.maxAge = maxAge }
}

// WithTags replaces the default tags
func WithTags(tags ...string) GetOption {
	return func(o *getOptions) { o.tags = tags }
}

// WithDependencies replaces the default dependencies
func WithDependencies(dependencies ...string) GetOption {
	return func(o *getOptions) { o.dependencies = dependencies }
}

// Bypass skips the cache entirely: nothing is read or written
func Bypass() GetOption {
	return func(o *getOptions) { o.bypass = true }
}

// Get returns the response for endpoint from the cache or the client
func (w *Wrapper) Get(ctx context.Context, endpoint string, opts ...GetOption) (json.RawMessage, error) {
	o := getOptions{
		key:          CacheKey(endpoint),
		maxAge:       DefaultMaxAge,
		tags:         []string{DefaultTag},
		dependencies: []string{endpoint},
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.bypass {
		return w.client.Get(ctx, endpoint)
	}

	return w.cache.Cached(ctx, o.key, func(ctx context.Context) (json.RawMessage, error) {
		return w.client.Get(ctx, endpoint)
	},
		invcache.WithTTL(o.maxAge),
		invcache.WithTags(o.tags...),
		invcache.WithDependencies(o.dependencies...),
	)
}

type mutateOptions struct {
	tags         []string
	dependencies []string
}

// MutateOption configures what a write invalidates
type MutateOption func(*mutateOptions)

// InvalidateTags replaces the tags invalidated after the write
func InvalidateTags(tags ...string) MutateOption {
	return func(o *mutateOptions) { o.tags = tags }
}

// InvalidateDependencies replaces the dependencies invalidated after the write
func InvalidateDependencies(dependencies ...string) MutateOption {
	return func(o *mutateOptions) { o.dependencies = dependencies }
}

// Post sends body to endpoint and invalidates on success
func (w *Wrapper) Post(ctx context.Context, endpoint string, body any, opts ...MutateOption) (json.RawMessage, error) {
	return w.mutate(ctx, endpoint, opts, func() (json.RawMessage, error) {
		return w.client.Post(ctx, endpoint, body)
	})
}

// Put sends body to endpoint and invalidates on success
func (w *Wrapper) Put(ctx context.Context, endpoint string, body any, opts ...MutateOption) (json.RawMessage, error) {
	return w.mutate(ctx, endpoint, opts, func() (json.RawMessage, error) {
		return w.client.Put(ctx, endpoint, body)
	})
}

// Delete deletes endpoint and invalidates on success
func (w *Wrapper) Delete(ctx context.Context, endpoint string, opts ...MutateOption) (json.RawMessage, error) {
	return w.mutate(ctx, endpoint, opts, func() (json.RawMessage, error) {
		return w.client.Delete(ctx, endpoint)
	})
}

func (w *Wrapper) mutate(ctx context.Context, endpoint string, opts []MutateOption, call func() (json.RawMessage, error)) (json.RawMessage, error) {
	o := mutateOptions{
		tags:         []string{DefaultTag},
		dependencies: []string{endpoint},
	}
	for _, opt := range opts {
		opt(&o)
	}

	result, err := call()
	if err != nil {
		return nil, err
	}

	removed := 0
	for _, tag := range o.tags {
		removed += w.cache.InvalidateByTagContext(ctx, tag)
	}
	for _, dependency := range o.dependencies {
		removed += w.cache.InvalidateByDependencyContext(ctx, dependency)
	}

	w.logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"removed":  removed,
	}).Debug("invalidated cached responses after write")

	return result, nil
}
