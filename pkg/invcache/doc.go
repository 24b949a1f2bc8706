// Package invcache provides a thread-safe, in-process cache with TTL expiry,
// LRU eviction, tag and dependency invalidation, payload compression and
// snapshot persistence.
//
// # Overview
//
// A Cache holds values of one type. Entries carry a TTL, optional tags and
// optional dependency names. Invalidating a tag or a dependency removes every
// entry that declared it, which lets callers drop related data in one call
// after a write.
//
// # Key Features
//
//   - Lazy expiry on read plus a periodic sweep
//   - LRU eviction when the entry limit is reached
//   - Tag and dependency indexes kept consistent with the entries
//   - gzip, deflate or zstd compression above a size threshold
//   - Debounced snapshots to memory, a directory or Redis, restored on start
//   - Fetch-through helper with optional singleflight
//   - Hooks and Prometheus or OpenTelemetry metrics
//
// # Basic Usage
//
//	cache, err := invcache.New[User](invcache.NewDefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cache.Close()
//
//	err = cache.Set("user:123", user,
//	    invcache.WithTTL(10*time.Minute),
//	    invcache.WithTags("users"),
//	    invcache.WithDependencies("/users/123"))
//
//	if u, ok := cache.Get("user:123"); ok {
//	    fmt.Println(u.Name)
//	}
//
//	// After updating the user
//	cache.InvalidateByDependency("/users/123")
//
// # Fetch Through
//
// Cached returns a cached value or calls the fetcher and stores the result.
// Errors from the fetcher are returned and nothing is cached.
//
//	user, err := cache.Cached(ctx, "user:123", func(ctx context.Context) (User, error) {
//	    return db.LoadUser(ctx, 123)
//	}, invcache.WithTags("users"))
//
// Enable Config.Singleflight to run a single fetch for concurrent misses on
// the same key.
//
// # Persistence
//
// With persistence enabled, every mutation schedules a snapshot write to the
// configured slot. New restores the snapshot unless it is older than twice
// the default TTL. Unreadable snapshots are deleted and the cache starts
// empty.
//
//	config := invcache.NewDefaultConfig().
//	    WithPersistence(invcache.NewPersistenceConfig(invcache.NewMemoryStore()))
//
// # Hooks
//
//	hooks := invcache.NewHooks()
//	hooks.AddOnEvict(func(ctx context.Context, key string, value any, reason invcache.EvictReason) {
//	    log.Printf("evicted %s: %s", key, reason)
//	})
//	cache, _ := invcache.New[string](invcache.NewDefaultConfig().WithHooks(hooks))
//
// Hooks run synchronously on the calling goroutine after the cache lock is
// released.
package invcache
