package invcache

import (
	"fmt"
	"time"
)

// SetOption configures a single Set or Cached call
type SetOption func(*setOptions)

type setOptions struct {
	ttl          time.Duration
	tags         []string
	dependencies []string
	compress     *bool
}

// WithTTL overrides the default TTL. Zero selects Config.DefaultTTL.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) {
		o.ttl = ttl
	}
}

// WithTags attaches tags to the entry
func WithTags(tags ...string) SetOption {
	return func(o *setOptions) {
		o.tags = append(o.tags, tags...)
	}
}

// WithDependencies attaches dependency names to the entry
func WithDependencies(dependencies ...string) SetOption {
	return func(o *setOptions) {
		o.dependencies = append(o.dependencies, dependencies...)
	}
}

// WithCompress overrides the configured compression default for the entry
func WithCompress(compress bool) SetOption {
	return func(o *setOptions) {
		o.compress = &compress
	}
}

func (c *Cache[V]) resolveOptions(key string, opts []SetOption) (setOptions, error) {
	var o setOptions
	if key == "" {
		return o, ErrEmptyKey
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.ttl < 0 {
		return o, fmt.Errorf("%w: %v for key %q", ErrInvalidTTL, o.ttl, key)
	}
	if o.ttl == 0 {
		o.ttl = c.config.DefaultTTL
	}

	var err error
	if o.tags, err = dedupe(key, o.tags); err != nil {
		return o, err
	}
	if o.dependencies, err = dedupe(key, o.dependencies); err != nil {
		return o, err
	}

	if o.compress == nil {
		enabled := c.config.Compression != nil && c.config.Compression.Enabled
		o.compress = &enabled
	}
	return o, nil
}

// dedupe drops repeated labels, keeping first-seen order
func dedupe(key string, labels []string) ([]string, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l == "" {
			return nil, fmt.Errorf("%w: key %q", ErrInvalidLabel, key)
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out, nil
}
