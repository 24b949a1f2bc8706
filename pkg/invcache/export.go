package invcache

import (
	"sort"
	"time"

	"github.com/vnykmshr/invcache-go/internal/eviction"
	"github.com/vnykmshr/invcache-go/pkg/compression"
)

// Export is a debugging view of the whole cache
type Export[V any] struct {
	Entries         []ExportedEntry[V]  `json:"entries"`
	TagIndex        map[string][]string `json:"tagIndex"`
	DependencyIndex map[string][]string `json:"dependencyIndex"`
	TagCount        int                 `json:"tagCount"`
	DependencyCount int                 `json:"dependencyCount"`
	Metrics         StatsSnapshot       `json:"metrics"`
	Config          ExportedConfig      `json:"config"`
}

// ExportedEntry describes one entry. Value is unset for compressed entries.
type ExportedEntry[V any] struct {
	Key            string        `json:"key"`
	Value          V             `json:"value,omitempty"`
	Compressed     bool          `json:"compressed"`
	Codec          string        `json:"codec,omitempty"`
	Size           int           `json:"size"`
	CreatedAt      time.Time     `json:"createdAt"`
	LastAccessedAt time.Time     `json:"lastAccessed"`
	TTL            time.Duration `json:"ttl"`
	Remaining      time.Duration `json:"remaining"`
	AccessCount    int64         `json:"accessCount"`
	Tags           []string      `json:"tags,omitempty"`
	Dependencies   []string      `json:"dependencies,omitempty"`
	Expired        bool          `json:"expired"`
}

// ExportedConfig is the effective configuration
type ExportedConfig struct {
	MaxEntries           int                        `json:"maxEntries"`
	DefaultTTL           time.Duration              `json:"defaultTTL"`
	CleanupInterval      time.Duration              `json:"cleanupInterval"`
	EvictionType         eviction.EvictionType      `json:"evictionType"`
	CompressionEnabled   bool                       `json:"compressionEnabled"`
	CompressionAlgorithm compression.CompressorType `json:"compressionAlgorithm"`
	CompressionMinSize   int                        `json:"compressionMinSize"`
	PersistenceEnabled   bool                       `json:"persistenceEnabled"`
	PersistenceKey       string                     `json:"persistenceKey,omitempty"`
	Singleflight         bool                       `json:"singleflight"`
}

// Export returns entries sorted by key together with both indexes, the
// counters and the configuration. It does not touch any entry.
func (c *Cache[V]) Export() Export[V] {
	metricsSnapshot := c.GetStats()

	c.mu.RLock()
	now := c.now()
	entries := make([]ExportedEntry[V], 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, ExportedEntry[V]{
			Key:            e.Key,
			Value:          e.Value,
			Compressed:     e.IsCompressed,
			Codec:          e.Codec,
			Size:           e.Size,
			CreatedAt:      e.CreatedAt,
			LastAccessedAt: e.LastAccessedAt,
			TTL:            e.TTL,
			Remaining:      e.Remaining(now),
			AccessCount:    e.AccessCount,
			Tags:           append([]string(nil), e.Tags...),
			Dependencies:   append([]string(nil), e.Dependencies...),
			Expired:        e.IsExpired(now),
		})
	}
	tags, deps := c.index.Snapshot()
	tagCount, depCount := c.index.Len()
	c.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})

	return Export[V]{
		Entries:         entries,
		TagIndex:        tags,
		DependencyIndex: deps,
		TagCount:        tagCount,
		DependencyCount: depCount,
		Metrics:         metricsSnapshot,
		Config:          c.exportConfig(),
	}
}

func (c *Cache[V]) exportConfig() ExportedConfig {
	cfg := ExportedConfig{
		MaxEntries:      c.config.MaxEntries,
		DefaultTTL:      c.config.DefaultTTL,
		CleanupInterval: c.config.CleanupInterval,
		EvictionType:    c.config.EvictionType,
		Singleflight:    c.config.Singleflight,
	}
	if cfg.EvictionType == "" {
		cfg.EvictionType = eviction.LRU
	}
	if comp := c.config.Compression; comp != nil {
		cfg.CompressionEnabled = comp.Enabled
		cfg.CompressionAlgorithm = comp.Algorithm
		cfg.CompressionMinSize = comp.MinSize
	}
	if c.persister != nil {
		cfg.PersistenceEnabled = true
		cfg.PersistenceKey = c.persister.key
	}
	return cfg
}
