package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/invcache-go/internal/eviction"
	"github.com/vnykmshr/invcache-go/pkg/compression"
	"github.com/vnykmshr/invcache-go/pkg/invcache"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "invcached.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 100, cfg.Cache.MaxEntries)
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, time.Minute, cfg.Cache.CleanupInterval)
	assert.True(t, cfg.Cache.Compression.Enabled)
	assert.Equal(t, 1024, cfg.Cache.Compression.MinSize)
	assert.False(t, cfg.Persistence.Enabled)
	assert.Equal(t, "app_cache", cfg.Persistence.Key)
	assert.Equal(t, 250*time.Millisecond, cfg.Persistence.Debounce)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
cache:
  max_entries: 500
  default_ttl: 30s
  eviction: lru-list
  compression:
    algorithm: zstd
persistence:
  enabled: true
  backend: redis
  redis:
    addr: "redis:6379"
    db: 2
log:
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 500, cfg.Cache.MaxEntries)
	assert.Equal(t, 30*time.Second, cfg.Cache.DefaultTTL)
	assert.Equal(t, "lru-list", cfg.Cache.Eviction)
	assert.Equal(t, "zstd", cfg.Cache.Compression.Algorithm)
	assert.Equal(t, "redis", cfg.Persistence.Backend)
	assert.Equal(t, "redis:6379", cfg.Persistence.Redis.Addr)
	assert.Equal(t, 2, cfg.Persistence.Redis.DB)
	assert.Equal(t, "json", cfg.Log.Format)

	// untouched keys keep their defaults
	assert.Equal(t, time.Minute, cfg.Cache.CleanupInterval)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("INVCACHE_CACHE_MAX_ENTRIES", "42")
	t.Setenv("INVCACHE_PERSISTENCE_ENABLED", "true")
	t.Setenv("INVCACHE_PERSISTENCE_BACKEND", "memory")

	path := writeConfig(t, "cache:\n  max_entries: 500\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 42, cfg.Cache.MaxEntries)
	assert.True(t, cfg.Persistence.Enabled)
	assert.Equal(t, "memory", cfg.Persistence.Backend)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero capacity", "cache:\n  max_entries: 0\n"},
		{"unknown eviction", "cache:\n  eviction: fifo\n"},
		{"unknown algorithm", "cache:\n  compression:\n    algorithm: brotli\n"},
		{"unknown backend", "persistence:\n  enabled: true\n  backend: s3\n"},
		{"file backend without dir", "persistence:\n  enabled: true\n  backend: file\n  dir: \"\"\n"},
		{"unknown log level", "log:\n  level: loud\n"},
		{"unknown server mode", "server:\n  mode: staging\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEngineConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
cache:
  max_entries: 10
  default_ttl: 1m
  eviction: lru-list
  compression:
    enabled: false
    algorithm: deflate
persistence:
  enabled: true
  backend: redis
  key: api_cache
  redis:
    addr: "localhost:6380"
    key_prefix: "test:"
`))
	require.NoError(t, err)

	engine := cfg.EngineConfig(nil)
	require.NoError(t, engine.Validate())

	assert.Equal(t, 10, engine.MaxEntries)
	assert.Equal(t, time.Minute, engine.DefaultTTL)
	assert.Equal(t, eviction.LRUList, engine.EvictionType)
	assert.True(t, engine.Singleflight)
	assert.False(t, engine.Compression.Enabled)
	assert.Equal(t, compression.CompressorDeflate, engine.Compression.Algorithm)

	require.NotNil(t, engine.Persistence)
	assert.Equal(t, invcache.StoreTypeRedis, engine.Persistence.Backend)
	assert.Equal(t, "api_cache", engine.Persistence.Key)
	require.NotNil(t, engine.Persistence.Redis)
	assert.Equal(t, "localhost:6380", engine.Persistence.Redis.Addr)
	assert.Equal(t, "test:", engine.Persistence.Redis.KeyPrefix)
}

func TestEngineConfigWithoutPersistence(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Nil(t, cfg.EngineConfig(nil).Persistence)
}

func TestHTTPConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
upstream:
  base_url: "https://api.example.com"
  timeout: 3s
  breaker:
    failures: 2
`))
	require.NoError(t, err)

	httpCfg := cfg.HTTPConfig()
	require.NoError(t, httpCfg.Validate())
	assert.Equal(t, "https://api.example.com", httpCfg.BaseURL)
	assert.Equal(t, 3*time.Second, httpCfg.Timeout)
	assert.Equal(t, uint32(2), httpCfg.Breaker.ReadyToTrip)
	assert.Equal(t, 30*time.Second, httpCfg.Breaker.Timeout)
}
