package invcache

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/vnykmshr/invcache-go/internal/entry"
	"github.com/vnykmshr/invcache-go/internal/eviction"
	"github.com/vnykmshr/invcache-go/internal/index"
	"github.com/vnykmshr/invcache-go/pkg/compression"
	"github.com/vnykmshr/invcache-go/pkg/metrics"
)

func (c *Cache[V]) hit(ctx context.Context, key string, value V) {
	c.hooks.invokeOnHit(ctx, key, value)
}

func (c *Cache[V]) miss(ctx context.Context, key string) {
	c.hooks.invokeOnMiss(ctx, key)
}

// Cache is an in-process cache with TTL expiry, LRU eviction, tag and
// dependency invalidation, optional compression and snapshot persistence.
// All methods are safe for concurrent use.
type Cache[V any] struct {
	config   *Config
	entries  map[string]*entry.Entry[V]
	index    *index.Index
	strategy eviction.Strategy
	seq      uint64
	stats    *Stats
	hooks    *Hooks
	logger   logrus.FieldLogger
	now      func() time.Time
	sf       *singleflight.Group
	mu       sync.RWMutex

	// Compression
	compressor compression.Compressor
	codecs     sync.Map

	// Persistence
	persister *persister

	// Metrics
	metricsExporter metrics.Exporter
	metricsLabels   metrics.Labels

	// Background work
	stop      chan struct{}
	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New creates a cache with the given configuration. When persistence is
// enabled the last snapshot is restored before New returns.
func New[V any](config *Config) (*Cache[V], error) {
	if config == nil {
		config = NewDefaultConfig()
	}
	// defaults are filled into a private copy
	cfg := *config
	config = &cfg
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache configuration: %w", err)
	}

	cache := &Cache[V]{
		config:  config,
		entries: make(map[string]*entry.Entry[V], config.MaxEntries),
		index:   index.New(),
		strategy: eviction.NewStrategy(eviction.Config{
			Type:     config.EvictionType,
			Capacity: config.MaxEntries,
		}),
		stats:  &Stats{},
		hooks:  config.Hooks,
		logger: config.Logger,
		now:    config.Clock,
		stop:   make(chan struct{}),
	}
	if cache.logger == nil {
		cache.logger = defaultLogger()
	}
	cache.logger = cache.logger.WithField("component", "invcache")
	if cache.now == nil {
		cache.now = time.Now
	}
	if config.Singleflight {
		cache.sf = &singleflight.Group{}
	}

	if err := cache.initializeCompression(); err != nil {
		return nil, fmt.Errorf("failed to initialize compression: %w", err)
	}

	if err := cache.initializePersistence(); err != nil {
		return nil, fmt.Errorf("failed to initialize persistence: %w", err)
	}

	cache.initializeMetrics()

	if config.CleanupInterval > 0 {
		cache.wg.Add(1)
		go cache.cleanupLoop(config.CleanupInterval)
	}

	return cache, nil
}

// NewSimple creates a cache with the default configuration and the given
// capacity and TTL
func NewSimple[V any](maxEntries int, defaultTTL time.Duration) (*Cache[V], error) {
	return New[V](NewSimpleConfig(maxEntries, defaultTTL))
}

// Get retrieves a value by key. Expired and undecodable entries are removed
// and reported as misses. A hit refreshes the entry's recency.
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.GetContext(context.Background(), key)
}

// GetContext is Get with a context passed through to hooks
func (c *Cache[V]) GetContext(ctx context.Context, key string) (V, bool) {
	start := time.Now()
	defer func() {
		c.recordCacheOperation(metrics.OperationGet, time.Since(start))
	}()

	var zero V

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.stats.misses.Add(1)
		c.mu.Unlock()
		c.miss(ctx, key)
		return zero, false
	}

	now := c.now()
	if e.IsExpired(now) {
		c.unlinkLocked(e)
		c.stats.misses.Add(1)
		c.stats.expirations.Add(1)
		c.mu.Unlock()
		c.hooks.invokeOnEvict(ctx, key, evictedValue(e), EvictReasonTTL)
		c.miss(ctx, key)
		c.markDirty()
		return zero, false
	}

	e.Touch(now)
	c.strategy.Touch(key, now)

	if !e.IsCompressed {
		value := e.Value
		c.stats.hits.Add(1)
		c.mu.Unlock()
		c.hit(ctx, key, value)
		return value, true
	}

	payload, codec := e.Payload, e.Codec
	c.mu.Unlock()

	value, err := c.decompressValue(payload, codec)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("dropping cache entry that failed to decode")

		c.mu.Lock()
		if current, ok := c.entries[key]; ok && current == e {
			c.unlinkLocked(e)
		}
		c.stats.misses.Add(1)
		c.mu.Unlock()

		c.hooks.invokeOnEvict(ctx, key, nil, EvictReasonCorrupt)
		c.miss(ctx, key)
		c.markDirty()
		return zero, false
	}

	c.stats.hits.Add(1)
	c.hit(ctx, key, value)
	return value, true
}

// Set stores value under key, replacing any existing entry. When the cache
// is full and key is new, the least recently used entry is evicted first.
func (c *Cache[V]) Set(key string, value V, opts ...SetOption) error {
	return c.SetContext(context.Background(), key, value, opts...)
}

// SetContext is Set with a context passed through to hooks
func (c *Cache[V]) SetContext(ctx context.Context, key string, value V, opts ...SetOption) error {
	o, err := c.resolveOptions(key, opts)
	if err != nil {
		return err
	}
	return c.set(ctx, key, value, o)
}

func (c *Cache[V]) set(ctx context.Context, key string, value V, o setOptions) error {
	start := time.Now()
	defer func() {
		c.recordCacheOperation(metrics.OperationSet, time.Since(start))
	}()

	if c.closed.Load() {
		return ErrClosed
	}

	e := c.buildEntry(key, value, o)

	c.mu.Lock()
	now := c.now()
	e.CreatedAt = now
	e.LastAccessedAt = now
	evicted := c.insertLocked(e)
	c.stats.sets.Add(1)
	if e.IsCompressed {
		c.stats.compressions.Add(1)
	}
	c.mu.Unlock()

	for _, victim := range evicted {
		c.hooks.invokeOnEvict(ctx, victim.Key, evictedValue(victim), EvictReasonLRU)
	}
	c.hooks.invokeOnSet(ctx, key, value)
	c.markDirty()
	return nil
}

// insertLocked links e into the cache, replacing an entry with the same key
// or evicting the least recently used entries to stay within capacity.
func (c *Cache[V]) insertLocked(e *entry.Entry[V]) []*entry.Entry[V] {
	var evicted []*entry.Entry[V]

	if old, ok := c.entries[e.Key]; ok {
		c.unlinkLocked(old)
	} else {
		for len(c.entries) >= c.config.MaxEntries {
			victimKey, ok := c.strategy.SelectVictim()
			if !ok {
				break
			}
			victim, ok := c.entries[victimKey]
			if !ok {
				c.strategy.Remove(victimKey)
				continue
			}
			c.unlinkLocked(victim)
			c.stats.evictions.Add(1)
			evicted = append(evicted, victim)
		}
	}

	c.linkLocked(e)
	return evicted
}

func (c *Cache[V]) linkLocked(e *entry.Entry[V]) {
	if e.Seq == 0 {
		c.seq++
		e.Seq = c.seq
	} else if e.Seq > c.seq {
		c.seq = e.Seq
	}
	c.entries[e.Key] = e
	c.index.Add(e.Key, e.Tags, e.Dependencies)
	c.strategy.Add(e.Key, e.LastAccessedAt, e.Seq)
}

func (c *Cache[V]) unlinkLocked(e *entry.Entry[V]) {
	delete(c.entries, e.Key)
	c.index.Remove(e.Key, e.Tags, e.Dependencies)
	c.strategy.Remove(e.Key)
}

// Delete removes key and reports whether it was present
func (c *Cache[V]) Delete(key string) bool {
	return c.DeleteContext(context.Background(), key)
}

// DeleteContext is Delete with a context passed through to hooks
func (c *Cache[V]) DeleteContext(ctx context.Context, key string) bool {
	start := time.Now()
	defer func() {
		c.recordCacheOperation(metrics.OperationDelete, time.Since(start))
	}()

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		c.unlinkLocked(e)
		c.stats.invalidations.Add(1)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	c.hooks.invokeOnInvalidate(ctx, key, InvalidateCauseDelete)
	c.markDirty()
	return true
}

// Clear removes every entry, empties the tag and dependency indexes, resets
// the counters and deletes the persisted snapshot.
func (c *Cache[V]) Clear() {
	c.ClearContext(context.Background())
}

// ClearContext is Clear with a context used for hooks and the durable store
func (c *Cache[V]) ClearContext(ctx context.Context) {
	c.mu.Lock()
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	c.entries = make(map[string]*entry.Entry[V], c.config.MaxEntries)
	c.index.Clear()
	c.strategy.Clear()
	c.stats.reset()
	c.mu.Unlock()

	sort.Strings(keys)
	for _, key := range keys {
		c.hooks.invokeOnInvalidate(ctx, key, InvalidateCauseClear)
	}

	if c.persister != nil {
		if err := c.persister.remove(ctx); err != nil {
			c.logger.WithError(err).Warn("failed to delete persisted cache snapshot")
		}
	}
}

// Has reports whether key holds an unexpired entry without touching it
func (c *Cache[V]) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	return ok && !e.IsExpired(c.now())
}

// TTL returns the remaining time to live of key
func (c *Cache[V]) TTL(key string) (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	now := c.now()
	if e.IsExpired(now) {
		return 0, false
	}
	return e.Remaining(now), true
}

// Len returns the number of stored entries, expired ones not yet swept included
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the stored keys in sorted order
func (c *Cache[V]) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	c.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Stats returns the live counters with key count and memory usage refreshed
func (c *Cache[V]) Stats() *Stats {
	c.refreshGauges()
	return c.stats
}

// GetStats returns a snapshot of the counters
func (c *Cache[V]) GetStats() StatsSnapshot {
	c.refreshGauges()
	return StatsSnapshot{
		Size:          int(c.stats.KeyCount()),
		MaxSize:       c.config.MaxEntries,
		HitRate:       c.stats.HitRate(),
		Hits:          c.stats.Hits(),
		Misses:        c.stats.Misses(),
		Sets:          c.stats.Sets(),
		Evictions:     c.stats.Evictions(),
		Expirations:   c.stats.Expirations(),
		Compressions:  c.stats.Compressions(),
		Invalidations: c.stats.Invalidations(),
		MemoryUsage:   c.stats.MemoryUsage(),
	}
}

func (c *Cache[V]) refreshGauges() {
	c.mu.RLock()
	var size int64
	for _, e := range c.entries {
		size += e.StoredSize()
	}
	count := int64(len(c.entries))
	c.mu.RUnlock()

	c.stats.keyCount.Store(count)
	c.stats.memoryUsage.Store(size)
}

// Close stops the background sweep and reporters, flushes pending
// persistence and releases stores the cache created. It is idempotent.
func (c *Cache[V]) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.stop)
		c.wg.Wait()

		c.exportCurrentStats()
		if c.metricsExporter != nil {
			_ = c.metricsExporter.Close()
		}

		if c.persister != nil {
			c.closeErr = c.persister.close(context.Background())
		}
	})
	return c.closeErr
}

func (c *Cache[V]) buildEntry(key string, value V, o setOptions) *entry.Entry[V] {
	var e *entry.Entry[V]

	data, err := compression.Serialize(value)
	switch {
	case err != nil:
		c.logger.WithError(err).WithField("key", key).Debug("value is not serializable, storing uncompressed")
		e = entry.New(key, value, o.ttl, time.Time{})
		e.Size = approximateSize(value)
	case *o.compress && compression.ShouldCompress(len(data), c.minCompressSize()) && decodesTo(data, value):
		packed, cerr := c.compressor.Compress(data)
		if cerr != nil {
			c.logger.WithError(cerr).WithField("key", key).Warn("compression failed, storing uncompressed")
			e = entry.New(key, value, o.ttl, time.Time{})
		} else {
			e = entry.NewCompressed[V](key, packed, c.compressor.Name(), o.ttl, time.Time{})
		}
		e.Size = len(data)
	default:
		e = entry.New(key, value, o.ttl, time.Time{})
		e.Size = len(data)
	}

	e.Tags = o.tags
	e.Dependencies = o.dependencies
	return e
}

// decodesTo reports whether data decodes back to value. Interface typed
// values, unexported fields and numbers held as any do not survive JSON, so
// such values stay uncompressed.
func decodesTo[V any](data []byte, value V) bool {
	var decoded V
	if err := json.Unmarshal(data, &decoded); err != nil {
		return false
	}
	return reflect.DeepEqual(decoded, value)
}

func (c *Cache[V]) minCompressSize() int {
	if c.config.Compression == nil {
		return compression.DefaultMinSize
	}
	return c.config.Compression.MinSize
}

func (c *Cache[V]) decompressValue(payload []byte, codec string) (V, error) {
	var value V

	compressor, err := c.codecFor(codec)
	if err != nil {
		return value, err
	}
	if err := compression.DecompressAndDeserialize(payload, true, compressor, &value); err != nil {
		return value, err
	}
	return value, nil
}

// codecFor returns the compressor that produced payloads tagged with name.
// Restored snapshots may carry a codec other than the configured one.
func (c *Cache[V]) codecFor(name string) (compression.Compressor, error) {
	if name == c.compressor.Name() {
		return c.compressor, nil
	}
	if cached, ok := c.codecs.Load(name); ok {
		return cached.(compression.Compressor), nil
	}

	compressor, err := compression.NewCompressor(&compression.Config{
		Enabled:   true,
		Algorithm: compression.CompressorType(name),
		Level:     -1,
	})
	if err != nil {
		return nil, err
	}
	actual, _ := c.codecs.LoadOrStore(name, compressor)
	return actual.(compression.Compressor), nil
}

// evictedValue is the value reported to evict hooks; compressed entries are
// not decoded for it
func evictedValue[V any](e *entry.Entry[V]) any {
	if e.IsCompressed {
		return nil
	}
	return e.Value
}

// approximateSize estimates the size of values that cannot be serialized
func approximateSize(value any) int {
	if value == nil {
		return 0
	}

	switch v := value.(type) {
	case string:
		return len(v)
	case []byte:
		return len(v)
	case int, int8, int16, int32, int64:
		return 8
	case uint, uint8, uint16, uint32, uint64:
		return 8
	case float32:
		return 4
	case float64:
		return 8
	case bool:
		return 1
	default:
		rv := reflect.ValueOf(value)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			return rv.Len() * 8
		case reflect.Map:
			return rv.Len() * 16
		case reflect.Struct:
			return rv.NumField() * 8
		default:
			return 64
		}
	}
}

func (c *Cache[V]) initializeCompression() error {
	if c.config.Compression == nil {
		c.config.Compression = compression.NewDefaultConfig()
	}

	// Always built: WithCompress(true) may ask for it per entry.
	codecConfig := *c.config.Compression
	codecConfig.Enabled = true
	if codecConfig.Algorithm == "" {
		codecConfig.Algorithm = compression.CompressorGzip
	}

	compressor, err := compression.NewCompressor(&codecConfig)
	if err != nil {
		return fmt.Errorf("failed to create compressor: %w", err)
	}

	c.compressor = compressor
	return nil
}

func (c *Cache[V]) initializeMetrics() {
	if c.config.Metrics == nil || !c.config.Metrics.Enabled || c.config.Metrics.Exporter == nil {
		c.metricsExporter = metrics.NewNoOpExporter()
		return
	}

	c.metricsExporter = c.config.Metrics.Exporter

	c.metricsLabels = make(metrics.Labels)
	if c.config.Metrics.CacheName != "" {
		c.metricsLabels["cache_name"] = c.config.Metrics.CacheName
	} else {
		c.metricsLabels["cache_name"] = "default"
	}
	for k, v := range c.config.Metrics.Labels {
		c.metricsLabels[k] = v
	}

	if c.config.Metrics.ReportingInterval > 0 {
		c.wg.Add(1)
		go c.metricsReporter(c.config.Metrics.ReportingInterval)
	}
}

func (c *Cache[V]) metricsReporter(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.exportCurrentStats()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache[V]) exportCurrentStats() {
	if c.metricsExporter == nil {
		return
	}
	if err := c.metricsExporter.ExportStats(c.Stats(), c.metricsLabels); err != nil {
		c.logger.WithError(err).Debug("failed to export cache stats")
	}
}

func (c *Cache[V]) recordCacheOperation(operation metrics.Operation, duration time.Duration) {
	c.recordOperation(operation, duration, c.metricsLabels)
}

func (c *Cache[V]) recordOperation(operation metrics.Operation, duration time.Duration, labels metrics.Labels) {
	if c.metricsExporter == nil {
		return
	}
	if err := c.metricsExporter.RecordCacheOperation(operation, duration, labels); err != nil {
		c.logger.WithError(err).WithField("operation", operation).Debug("failed to record cache operation")
	}
}
