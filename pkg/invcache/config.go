package invcache

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"

	"github.com/vnykmshr/invcache-go/internal/eviction"
	"github.com/vnykmshr/invcache-go/pkg/compression"
	"github.com/vnykmshr/invcache-go/pkg/metrics"
)

const (
	// DefaultMaxEntries is the default capacity
	DefaultMaxEntries = 100

	// DefaultTTL is the default time-to-live of an entry
	DefaultTTL = 5 * time.Minute

	// DefaultCleanupInterval is how often expired entries are swept
	DefaultCleanupInterval = time.Minute

	// DefaultPersistKey is the durable slot name
	DefaultPersistKey = "app_cache"

	// DefaultPersistDebounce delays snapshot writes so bursts of mutations
	// produce one write
	DefaultPersistDebounce = 250 * time.Millisecond
)

// StoreType selects the durable backend used for persistence
type StoreType int

const (
	// StoreTypeMemory keeps snapshots in process memory
	StoreTypeMemory StoreType = iota

	// StoreTypeFile writes snapshots to a directory
	StoreTypeFile

	// StoreTypeRedis writes snapshots to Redis
	StoreTypeRedis
)

func (t StoreType) String() string {
	switch t {
	case StoreTypeMemory:
		return "memory"
	case StoreTypeFile:
		return "file"
	case StoreTypeRedis:
		return "redis"
	default:
		return "unknown"
	}
}

// Config holds cache configuration
type Config struct {
	// MaxEntries bounds the number of entries; a new key at capacity evicts one
	MaxEntries int

	// DefaultTTL applies to entries set without an explicit TTL
	DefaultTTL time.Duration

	// CleanupInterval is the period of the expired-entry sweep; 0 disables it
	CleanupInterval time.Duration

	// EvictionType selects the LRU implementation
	EvictionType eviction.EvictionType

	// Compression controls payload compression. Enabled sets the default for
	// entries; a per-entry WithCompress option overrides it.
	Compression *compression.Config

	// Persistence enables snapshotting to durable storage
	Persistence *PersistenceConfig

	// Metrics configures metrics export
	Metrics *MetricsConfig

	// Hooks receive cache events
	Hooks *Hooks

	// Logger receives recovered internal errors and sweep reports
	Logger logrus.FieldLogger

	// Clock returns the current time; defaults to time.Now
	Clock func() time.Time

	// Singleflight coalesces concurrent Cached misses for the same key
	Singleflight bool
}

// PersistenceConfig holds persistence settings
type PersistenceConfig struct {
	Enabled bool

	// Backend selects the store created by the cache when Store is nil
	Backend StoreType

	// Store is a caller-owned durable store; it takes precedence over Backend
	Store DurableStore

	// Key is the slot the snapshot is written to
	Key string

	// Debounce delays writes after a mutation; 0 writes synchronously
	Debounce time.Duration

	// Dir is the snapshot directory for StoreTypeFile
	Dir string

	// Redis configures StoreTypeRedis
	Redis *RedisConfig
}

// RedisConfig holds Redis connection settings for persistence
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// MetricsConfig holds metrics export settings
type MetricsConfig struct {
	// Exporter receives metrics; required when Enabled
	Exporter metrics.Exporter

	Enabled bool

	// CacheName is attached to every metric as cache_name
	CacheName string

	// Labels are additional constant labels
	Labels metrics.Labels

	// ReportingInterval is how often stats are exported; 0 disables reporting
	ReportingInterval time.Duration
}

// NewDefaultConfig returns the default configuration: 100 entries, 5 minute
// TTL, a 60 second sweep and gzip compression above 1KB.
func NewDefaultConfig() *Config {
	return &Config{
		MaxEntries:      DefaultMaxEntries,
		DefaultTTL:      DefaultTTL,
		CleanupInterval: DefaultCleanupInterval,
		EvictionType:    eviction.LRU,
		Compression:     compression.NewDefaultConfig().WithEnabled(true),
	}
}

// NewSimpleConfig returns the default configuration with the given capacity and TTL
func NewSimpleConfig(maxEntries int, defaultTTL time.Duration) *Config {
	return NewDefaultConfig().
		WithMaxEntries(maxEntries).
		WithDefaultTTL(defaultTTL)
}

// WithMaxEntries sets the capacity
func (c *Config) WithMaxEntries(maxEntries int) *Config {
	c.MaxEntries = maxEntries
	return c
}

// WithDefaultTTL sets the default TTL
func (c *Config) WithDefaultTTL(ttl time.Duration) *Config {
	c.DefaultTTL = ttl
	return c
}

// WithCleanupInterval sets the sweep interval
func (c *Config) WithCleanupInterval(interval time.Duration) *Config {
	c.CleanupInterval = interval
	return c
}

// WithEvictionType sets the LRU implementation
func (c *Config) WithEvictionType(evictionType eviction.EvictionType) *Config {
	c.EvictionType = evictionType
	return c
}

// WithCompression sets the compression configuration
func (c *Config) WithCompression(compressionConfig *compression.Config) *Config {
	c.Compression = compressionConfig
	return c
}

// WithPersistence sets the persistence configuration
func (c *Config) WithPersistence(persistence *PersistenceConfig) *Config {
	c.Persistence = persistence
	return c
}

// WithMetrics sets the metrics configuration
func (c *Config) WithMetrics(metricsConfig *MetricsConfig) *Config {
	c.Metrics = metricsConfig
	return c
}

// WithHooks sets the event hooks
func (c *Config) WithHooks(hooks *Hooks) *Config {
	c.Hooks = hooks
	return c
}

// WithLogger sets the logger
func (c *Config) WithLogger(logger logrus.FieldLogger) *Config {
	c.Logger = logger
	return c
}

// WithClock sets the time source
func (c *Config) WithClock(clock func() time.Time) *Config {
	c.Clock = clock
	return c
}

// WithSingleflight toggles coalescing of concurrent misses
func (c *Config) WithSingleflight(enabled bool) *Config {
	c.Singleflight = enabled
	return c
}

// NewPersistenceConfig returns an enabled persistence configuration writing to store
func NewPersistenceConfig(store DurableStore) *PersistenceConfig {
	return &PersistenceConfig{
		Enabled:  true,
		Backend:  StoreTypeMemory,
		Store:    store,
		Key:      DefaultPersistKey,
		Debounce: DefaultPersistDebounce,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxEntries, validation.Required, validation.Min(1)),
		validation.Field(&c.DefaultTTL, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.CleanupInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.EvictionType, validation.In(eviction.LRU, eviction.LRUList)),
		validation.Field(&c.Persistence),
		validation.Field(&c.Metrics),
	)
}

// Validate checks the persistence configuration
func (p *PersistenceConfig) Validate() error {
	if p == nil || !p.Enabled {
		return nil
	}
	return validation.ValidateStruct(p,
		validation.Field(&p.Debounce, validation.Min(time.Duration(0))),
		validation.Field(&p.Backend, validation.In(StoreTypeMemory, StoreTypeFile, StoreTypeRedis)),
		validation.Field(&p.Dir, validation.When(p.Store == nil && p.Backend == StoreTypeFile, validation.Required)),
		validation.Field(&p.Redis, validation.When(p.Store == nil && p.Backend == StoreTypeRedis, validation.Required)),
	)
}

// Validate checks the metrics configuration
func (m *MetricsConfig) Validate() error {
	if m == nil || !m.Enabled {
		return nil
	}
	return validation.ValidateStruct(m,
		validation.Field(&m.Exporter, validation.Required),
		validation.Field(&m.ReportingInterval, validation.Min(time.Duration(0))),
	)
}

func defaultLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}
