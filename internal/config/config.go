// Package config loads invcached settings from a YAML file, the environment
// and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/vnykmshr/invcache-go/internal/logging"
)

// EnvPrefix is prepended to every environment override, e.g. INVCACHE_CACHE_MAX_ENTRIES
const EnvPrefix = "INVCACHE"

// Config is the invcached configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Upstream    UpstreamConfig    `mapstructure:"upstream"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Log         logging.Config    `mapstructure:"log"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// UpstreamConfig describes the API whose responses are cached
type UpstreamConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig holds circuit breaker settings for upstream calls
type BreakerConfig struct {
	MaxRequests uint32        `mapstructure:"max_requests"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Failures    uint32        `mapstructure:"failures"`
}

// CacheConfig holds engine settings
type CacheConfig struct {
	MaxEntries      int               `mapstructure:"max_entries"`
	DefaultTTL      time.Duration     `mapstructure:"default_ttl"`
	CleanupInterval time.Duration     `mapstructure:"cleanup_interval"`
	Eviction        string            `mapstructure:"eviction"`
	Singleflight    bool              `mapstructure:"singleflight"`
	Compression     CompressionConfig `mapstructure:"compression"`
}

// CompressionConfig holds payload compression settings
type CompressionConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Algorithm string `mapstructure:"algorithm"`
	MinSize   int    `mapstructure:"min_size"`
	Level     int    `mapstructure:"level"`
}

// PersistenceConfig holds snapshot settings
type PersistenceConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Backend  string        `mapstructure:"backend"` // memory, file, redis
	Key      string        `mapstructure:"key"`
	Debounce time.Duration `mapstructure:"debounce"`
	Dir      string        `mapstructure:"dir"`
	Redis    RedisConfig   `mapstructure:"redis"`

	// FlushSchedule is a cron spec for forced snapshot writes; empty disables it
	FlushSchedule string `mapstructure:"flush_schedule"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// MetricsConfig holds metrics export settings
type MetricsConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Namespace         string        `mapstructure:"namespace"`
	CacheName         string        `mapstructure:"cache_name"`
	ReportingInterval time.Duration `mapstructure:"reporting_interval"`
	OTel              bool          `mapstructure:"otel"`

	// StatsSchedule is a cron spec for logging cache stats; empty disables it
	StatsSchedule string `mapstructure:"stats_schedule"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("upstream.base_url", "http://localhost:9000")
	v.SetDefault("upstream.timeout", "10s")
	v.SetDefault("upstream.breaker.max_requests", 5)
	v.SetDefault("upstream.breaker.interval", "60s")
	v.SetDefault("upstream.breaker.timeout", "30s")
	v.SetDefault("upstream.breaker.failures", 5)

	v.SetDefault("cache.max_entries", 100)
	v.SetDefault("cache.default_ttl", "5m")
	v.SetDefault("cache.cleanup_interval", "1m")
	v.SetDefault("cache.eviction", "lru")
	v.SetDefault("cache.singleflight", true)
	v.SetDefault("cache.compression.enabled", true)
	v.SetDefault("cache.compression.algorithm", "gzip")
	v.SetDefault("cache.compression.min_size", 1024)
	v.SetDefault("cache.compression.level", -1)

	v.SetDefault("persistence.enabled", false)
	v.SetDefault("persistence.backend", "file")
	v.SetDefault("persistence.key", "app_cache")
	v.SetDefault("persistence.debounce", "250ms")
	v.SetDefault("persistence.dir", "./data")
	v.SetDefault("persistence.redis.addr", "localhost:6379")
	v.SetDefault("persistence.redis.password", "")
	v.SetDefault("persistence.redis.db", 0)
	v.SetDefault("persistence.redis.key_prefix", "invcache:")
	v.SetDefault("persistence.flush_schedule", "@every 1m")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "invcache")
	v.SetDefault("metrics.cache_name", "api")
	v.SetDefault("metrics.reporting_interval", "15s")
	v.SetDefault("metrics.otel", false)
	v.SetDefault("metrics.stats_schedule", "@every 5m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration. When path is empty, invcached.yaml is looked up in
// ./config and the working directory; a missing file is not an error.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("invcached")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server),
		validation.Field(&c.Upstream),
		validation.Field(&c.Cache),
		validation.Field(&c.Persistence),
		validation.Field(&c.Metrics),
		validation.Field(&c.Log),
	)
}

// Validate checks the server settings
func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
		validation.Field(&s.Mode, validation.In("debug", "release", "test")),
		validation.Field(&s.ShutdownTimeout, validation.Min(time.Duration(0))),
	)
}

// Validate checks the upstream settings
func (u UpstreamConfig) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.BaseURL, validation.Required),
		validation.Field(&u.Timeout, validation.Min(time.Duration(0))),
	)
}

// Validate checks the cache settings
func (c CacheConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxEntries, validation.Required, validation.Min(1)),
		validation.Field(&c.DefaultTTL, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.CleanupInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.Eviction, validation.In("lru", "lru-list")),
		validation.Field(&c.Compression),
	)
}

// Validate checks the compression settings
func (c CompressionConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Algorithm, validation.In("none", "gzip", "deflate", "zstd")),
		validation.Field(&c.MinSize, validation.Min(0)),
	)
}

// Validate checks the persistence settings
func (p PersistenceConfig) Validate() error {
	if !p.Enabled {
		return nil
	}
	return validation.ValidateStruct(&p,
		validation.Field(&p.Backend, validation.Required, validation.In("memory", "file", "redis")),
		validation.Field(&p.Key, validation.Required),
		validation.Field(&p.Debounce, validation.Min(time.Duration(0))),
		validation.Field(&p.Dir, validation.When(p.Backend == "file", validation.Required)),
		validation.Field(&p.Redis, validation.When(p.Backend == "redis", validation.By(func(interface{}) error {
			return validation.Validate(p.Redis.Addr, validation.Required)
		}))),
	)
}

// Validate checks the metrics settings
func (m MetricsConfig) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.ReportingInterval, validation.Min(time.Duration(0))),
		validation.Field(&m.CacheName, validation.When(m.Enabled, validation.Required)),
	)
}
