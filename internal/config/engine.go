package config

import (
	"github.com/sirupsen/logrus"

	"github.com/vnykmshr/invcache-go/internal/eviction"
	"github.com/vnykmshr/invcache-go/pkg/apicache"
	"github.com/vnykmshr/invcache-go/pkg/compression"
	"github.com/vnykmshr/invcache-go/pkg/invcache"
)

var storeTypes = map[string]invcache.StoreType{
	"memory": invcache.StoreTypeMemory,
	"file":   invcache.StoreTypeFile,
	"redis":  invcache.StoreTypeRedis,
}

// EngineConfig maps the cache and persistence sections onto an engine
// configuration. Metrics and hooks are left for the caller to attach.
func (c *Config) EngineConfig(logger logrus.FieldLogger) *invcache.Config {
	cfg := invcache.NewDefaultConfig().
		WithMaxEntries(c.Cache.MaxEntries).
		WithDefaultTTL(c.Cache.DefaultTTL).
		WithCleanupInterval(c.Cache.CleanupInterval).
		WithEvictionType(eviction.EvictionType(c.Cache.Eviction)).
		WithSingleflight(c.Cache.Singleflight).
		WithLogger(logger).
		WithCompression(compression.NewDefaultConfig().
			WithEnabled(c.Cache.Compression.Enabled).
			WithAlgorithm(compression.CompressorType(c.Cache.Compression.Algorithm)).
			WithMinSize(c.Cache.Compression.MinSize).
			WithLevel(c.Cache.Compression.Level))

	if p := c.Persistence; p.Enabled {
		persistence := &invcache.PersistenceConfig{
			Enabled:  true,
			Backend:  storeTypes[p.Backend],
			Key:      p.Key,
			Debounce: p.Debounce,
			Dir:      p.Dir,
		}
		if persistence.Backend == invcache.StoreTypeRedis {
			persistence.Redis = &invcache.RedisConfig{
				Addr:      p.Redis.Addr,
				Password:  p.Redis.Password,
				DB:        p.Redis.DB,
				KeyPrefix: p.Redis.KeyPrefix,
			}
		}
		cfg.WithPersistence(persistence)
	}

	return cfg
}

// HTTPConfig maps the upstream section onto the API client configuration
func (c *Config) HTTPConfig() *apicache.HTTPConfig {
	cfg := apicache.DefaultHTTPConfig(c.Upstream.BaseURL)
	cfg.Timeout = c.Upstream.Timeout

	b := c.Upstream.Breaker
	if b.MaxRequests > 0 {
		cfg.Breaker.MaxRequests = b.MaxRequests
	}
	if b.Interval > 0 {
		cfg.Breaker.Interval = b.Interval
	}
	if b.Timeout > 0 {
		cfg.Breaker.Timeout = b.Timeout
	}
	if b.Failures > 0 {
		cfg.Breaker.ReadyToTrip = b.Failures
	}
	return cfg
}
