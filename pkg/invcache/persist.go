package invcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vnykmshr/invcache-go/internal/entry"
	"github.com/vnykmshr/invcache-go/internal/store"
	"github.com/vnykmshr/invcache-go/internal/store/file"
	"github.com/vnykmshr/invcache-go/internal/store/memory"
	redisstore "github.com/vnykmshr/invcache-go/internal/store/redis"
	"github.com/vnykmshr/invcache-go/pkg/metrics"
)

// DurableStore is a named-slot string store that survives the cache
type DurableStore = store.Store

// NewMemoryStore returns a process-local durable store, useful for tests and
// for sharing a snapshot between caches in one process
func NewMemoryStore() DurableStore {
	return memory.New()
}

// NewFileStore returns a durable store writing one file per slot under dir
func NewFileStore(dir string) (DurableStore, error) {
	return file.New(dir)
}

// staleAfter is how many default TTLs a snapshot stays loadable
const staleAfter = 2

// snapshot is the persisted form of the cache
type snapshot struct {
	Cache     []persistedPair `json:"cache"`
	Metrics   counters        `json:"metrics"`
	Timestamp time.Time       `json:"timestamp"`
}

// persistedPair encodes as a two element [key, entry] array
type persistedPair struct {
	Key   string
	Entry persistedEntry
}

func (p persistedPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Key, p.Entry})
}

func (p *persistedPair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("expected [key, entry] pair, got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Key); err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Entry); err != nil {
		return fmt.Errorf("invalid entry for key %q: %w", p.Key, err)
	}
	return nil
}

type persistedEntry struct {
	Value          json.RawMessage `json:"value,omitempty"`
	Payload        []byte          `json:"payload,omitempty"`
	Compressed     bool            `json:"compressed"`
	Codec          string          `json:"codec,omitempty"`
	Size           int             `json:"size"`
	CreatedAt      time.Time       `json:"createdAt"`
	LastAccessedAt time.Time       `json:"lastAccessed"`
	TTLMillis      int64           `json:"ttl"`
	AccessCount    int64           `json:"accessCount"`
	Tags           []string        `json:"tags,omitempty"`
	Dependencies   []string        `json:"dependencies,omitempty"`
	Seq            uint64          `json:"seq"`
}

// persister owns the durable slot and serializes writes to it
type persister struct {
	store    DurableStore
	owned    bool
	key      string
	debounce time.Duration
	encode   func() ([]byte, error)
	logger   logrus.FieldLogger

	dirty   chan struct{}
	pending atomic.Bool
	mu      sync.Mutex
}

func (p *persister) write(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending.Store(false)
	data, err := p.encode()
	if err != nil {
		return fmt.Errorf("failed to encode cache snapshot: %w", err)
	}
	if err := p.store.Set(ctx, p.key, string(data)); err != nil {
		return fmt.Errorf("failed to write cache snapshot: %w", err)
	}
	return nil
}

func (p *persister) remove(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending.Store(false)
	return p.store.Delete(ctx, p.key)
}

func (p *persister) close(ctx context.Context) error {
	var errs []error
	if p.pending.Load() {
		errs = append(errs, p.write(ctx))
	}
	if p.owned {
		errs = append(errs, p.store.Close())
	}
	return errors.Join(errs...)
}

func (c *Cache[V]) initializePersistence() error {
	cfg := c.config.Persistence
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	durable, owned, err := openStore(cfg)
	if err != nil {
		return err
	}

	key := cfg.Key
	if key == "" {
		key = DefaultPersistKey
	}

	c.persister = &persister{
		store:    durable,
		owned:    owned,
		key:      key,
		debounce: cfg.Debounce,
		encode:   c.encodeSnapshot,
		logger:   c.logger.WithField("slot", key),
		dirty:    make(chan struct{}, 1),
	}

	c.restore(context.Background())

	if cfg.Debounce > 0 {
		c.wg.Add(1)
		go c.persistLoop()
	}
	return nil
}

func openStore(cfg *PersistenceConfig) (DurableStore, bool, error) {
	if cfg.Store != nil {
		return cfg.Store, false, nil
	}

	switch cfg.Backend {
	case StoreTypeMemory:
		return memory.New(), true, nil
	case StoreTypeFile:
		s, err := file.New(cfg.Dir)
		if err != nil {
			return nil, false, err
		}
		return s, true, nil
	case StoreTypeRedis:
		if cfg.Redis == nil {
			return nil, false, errors.New("redis configuration is required when using StoreTypeRedis")
		}
		s, err := redisstore.New(context.Background(), &redisstore.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, false, err
		}
		return s, true, nil
	default:
		return nil, false, fmt.Errorf("unsupported store type: %v", cfg.Backend)
	}
}

// Persist writes a snapshot immediately, bypassing the debounce.
//
// Values are stored as JSON, so a restore reproduces them exactly only when V
// is a concrete JSON-representable type. With an interface V such as any,
// restored values take their JSON decoded form (float64 numbers, maps for
// structs), and unexported struct fields are never persisted.
func (c *Cache[V]) Persist(ctx context.Context) error {
	if c.persister == nil {
		return ErrPersistenceDisabled
	}

	start := time.Now()
	defer func() {
		c.recordCacheOperation(metrics.OperationPersist, time.Since(start))
	}()
	return c.persister.write(ctx)
}

// markDirty schedules a snapshot write after a mutation
func (c *Cache[V]) markDirty() {
	p := c.persister
	if p == nil || c.closed.Load() {
		return
	}

	p.pending.Store(true)
	if p.debounce == 0 {
		if err := c.Persist(context.Background()); err != nil {
			p.logger.WithError(err).Warn("cache persistence failed")
		}
		return
	}

	select {
	case p.dirty <- struct{}{}:
	default:
	}
}

func (c *Cache[V]) persistLoop() {
	defer c.wg.Done()

	p := c.persister
	for {
		select {
		case <-c.stop:
			return
		case <-p.dirty:
			timer := time.NewTimer(p.debounce)
			select {
			case <-timer.C:
				if !p.pending.Load() {
					continue
				}
				if err := c.Persist(context.Background()); err != nil {
					p.logger.WithError(err).Warn("cache persistence failed")
				}
			case <-c.stop:
				timer.Stop()
				return
			}
		}
	}
}

func (c *Cache[V]) encodeSnapshot() ([]byte, error) {
	c.mu.RLock()
	snap := snapshot{
		Cache:     make([]persistedPair, 0, len(c.entries)),
		Metrics:   c.stats.counters(),
		Timestamp: c.now(),
	}
	for key, e := range c.entries {
		pe, err := encodeEntry(e)
		if err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("skipping unpersistable cache entry")
			continue
		}
		snap.Cache = append(snap.Cache, persistedPair{Key: key, Entry: pe})
	}
	c.mu.RUnlock()

	sort.Slice(snap.Cache, func(i, j int) bool {
		return snap.Cache[i].Entry.Seq < snap.Cache[j].Entry.Seq
	})
	return json.Marshal(snap)
}

func encodeEntry[V any](e *entry.Entry[V]) (persistedEntry, error) {
	pe := persistedEntry{
		Compressed:     e.IsCompressed,
		Codec:          e.Codec,
		Size:           e.Size,
		CreatedAt:      e.CreatedAt,
		LastAccessedAt: e.LastAccessedAt,
		TTLMillis:      e.TTL.Milliseconds(),
		AccessCount:    e.AccessCount,
		Tags:           e.Tags,
		Dependencies:   e.Dependencies,
		Seq:            e.Seq,
	}
	if e.IsCompressed {
		pe.Payload = e.Payload
		return pe, nil
	}

	value, err := json.Marshal(e.Value)
	if err != nil {
		return pe, err
	}
	pe.Value = value
	return pe, nil
}

func decodeEntry[V any](key string, pe persistedEntry) (*entry.Entry[V], error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	ttl := time.Duration(pe.TTLMillis) * time.Millisecond
	var e *entry.Entry[V]
	if pe.Compressed {
		if len(pe.Payload) == 0 {
			return nil, fmt.Errorf("compressed entry %q has no payload", key)
		}
		e = entry.NewCompressed[V](key, pe.Payload, pe.Codec, ttl, pe.CreatedAt)
	} else {
		var value V
		if len(pe.Value) > 0 {
			if err := json.Unmarshal(pe.Value, &value); err != nil {
				return nil, fmt.Errorf("invalid value for key %q: %w", key, err)
			}
		}
		e = entry.New(key, value, ttl, pe.CreatedAt)
	}

	e.Size = pe.Size
	e.LastAccessedAt = pe.LastAccessedAt
	e.AccessCount = pe.AccessCount
	e.Tags = pe.Tags
	e.Dependencies = pe.Dependencies
	e.Seq = pe.Seq
	return e, nil
}

// restore loads the persisted snapshot. Missing, stale and unreadable
// snapshots leave the cache empty; unreadable ones are deleted.
func (c *Cache[V]) restore(ctx context.Context) {
	start := time.Now()
	defer func() {
		c.recordCacheOperation(metrics.OperationRestore, time.Since(start))
	}()

	p := c.persister
	raw, ok, err := p.store.Get(ctx, p.key)
	if err != nil {
		p.logger.WithError(err).Warn("failed to read cache snapshot")
		return
	}
	if !ok {
		return
	}

	now := c.now()
	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		c.discardSnapshot(ctx, err)
		return
	}

	if age := now.Sub(snap.Timestamp); age > staleAfter*c.config.DefaultTTL {
		p.logger.WithField("age", age).Info("ignoring stale cache snapshot")
		return
	}

	byKey := make(map[string]*entry.Entry[V], len(snap.Cache))
	for _, pair := range snap.Cache {
		e, err := decodeEntry[V](pair.Key, pair.Entry)
		if err != nil {
			c.discardSnapshot(ctx, err)
			return
		}
		if e.IsExpired(now) {
			continue
		}
		byKey[e.Key] = e
	}

	restored := make([]*entry.Entry[V], 0, len(byKey))
	for _, e := range byKey {
		restored = append(restored, e)
	}
	sort.Slice(restored, func(i, j int) bool {
		a, b := restored[i], restored[j]
		if !a.LastAccessedAt.Equal(b.LastAccessedAt) {
			return a.LastAccessedAt.Before(b.LastAccessedAt)
		}
		return a.Seq < b.Seq
	})
	if excess := len(restored) - c.config.MaxEntries; excess > 0 {
		restored = restored[excess:]
	}

	c.mu.Lock()
	for _, e := range restored {
		c.linkLocked(e)
	}
	c.stats.restore(snap.Metrics)
	c.mu.Unlock()

	p.logger.WithField("entries", len(restored)).Debug("restored cache snapshot")
}

func (c *Cache[V]) discardSnapshot(ctx context.Context, cause error) {
	p := c.persister
	p.logger.WithError(cause).Warn("discarding unreadable cache snapshot")
	if err := p.store.Delete(ctx, p.key); err != nil {
		p.logger.WithError(err).Warn("failed to delete unreadable cache snapshot")
	}
}
