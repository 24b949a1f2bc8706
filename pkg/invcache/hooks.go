package invcache

import (
	"context"
	"sort"
)

// Hook defines a cache event hook with optional priority and condition
type Hook struct {
	// Priority determines execution order (higher values execute first)
	Priority int

	// Condition optionally filters hook execution; nil always executes
	Condition func(ctx context.Context, key string) bool

	// Set exactly one of the handlers
	OnHit        func(ctx context.Context, key string, value any)
	OnMiss       func(ctx context.Context, key string)
	OnSet        func(ctx context.Context, key string, value any)
	OnEvict      func(ctx context.Context, key string, value any, reason EvictReason)
	OnInvalidate func(ctx context.Context, key string, cause InvalidateCause)
}

// Hooks contains all registered cache event hooks. Register hooks before
// passing them to New; registration is not synchronized with cache use.
type Hooks struct {
	onHit        []Hook
	onMiss       []Hook
	onSet        []Hook
	onEvict      []Hook
	onInvalidate []Hook
}

// NewHooks creates a new Hooks instance
func NewHooks() *Hooks {
	return &Hooks{}
}

// EvictReason indicates why the cache dropped an entry on its own
type EvictReason int

const (
	// EvictReasonLRU indicates the entry was evicted to make room for a new key
	EvictReasonLRU EvictReason = iota

	// EvictReasonTTL indicates the entry expired
	EvictReasonTTL

	// EvictReasonCorrupt indicates the stored payload could not be decoded
	EvictReasonCorrupt
)

func (r EvictReason) String() string {
	switch r {
	case EvictReasonLRU:
		return "LRU"
	case EvictReasonTTL:
		return "TTL"
	case EvictReasonCorrupt:
		return "Corrupt"
	default:
		return "Unknown"
	}
}

// InvalidateCause indicates which operation removed an entry on request
type InvalidateCause int

const (
	// InvalidateCauseDelete is an explicit Delete
	InvalidateCauseDelete InvalidateCause = iota

	// InvalidateCauseTag is an InvalidateByTag
	InvalidateCauseTag

	// InvalidateCauseDependency is an InvalidateByDependency
	InvalidateCauseDependency

	// InvalidateCauseClear is a Clear
	InvalidateCauseClear
)

func (c InvalidateCause) String() string {
	switch c {
	case InvalidateCauseDelete:
		return "Delete"
	case InvalidateCauseTag:
		return "Tag"
	case InvalidateCauseDependency:
		return "Dependency"
	case InvalidateCauseClear:
		return "Clear"
	default:
		return "Unknown"
	}
}

// AddOnHit registers a hook that executes on cache hits
func (h *Hooks) AddOnHit(fn func(ctx context.Context, key string, value any), opts ...HookOption) {
	h.onHit = append(h.onHit, newHook(Hook{OnHit: fn}, opts))
}

// AddOnMiss registers a hook that executes on cache misses
func (h *Hooks) AddOnMiss(fn func(ctx context.Context, key string), opts ...HookOption) {
	h.onMiss = append(h.onMiss, newHook(Hook{OnMiss: fn}, opts))
}

// AddOnSet registers a hook that executes after an entry is stored
func (h *Hooks) AddOnSet(fn func(ctx context.Context, key string, value any), opts ...HookOption) {
	h.onSet = append(h.onSet, newHook(Hook{OnSet: fn}, opts))
}

// AddOnEvict registers a hook that executes when entries are evicted or
// expire. The value is nil for entries held compressed.
func (h *Hooks) AddOnEvict(fn func(ctx context.Context, key string, value any, reason EvictReason), opts ...HookOption) {
	h.onEvict = append(h.onEvict, newHook(Hook{OnEvict: fn}, opts))
}

// AddOnInvalidate registers a hook that executes when entries are removed
// by Delete, Clear or an invalidation
func (h *Hooks) AddOnInvalidate(fn func(ctx context.Context, key string, cause InvalidateCause), opts ...HookOption) {
	h.onInvalidate = append(h.onInvalidate, newHook(Hook{OnInvalidate: fn}, opts))
}

func newHook(hook Hook, opts []HookOption) Hook {
	for _, opt := range opts {
		opt(&hook)
	}
	return hook
}

// HookOption configures a hook
type HookOption func(*Hook)

// WithPriority sets the hook execution priority (higher values execute first)
func WithPriority(priority int) HookOption {
	return func(h *Hook) {
		h.Priority = priority
	}
}

// WithCondition sets a condition that must be true for the hook to execute
func WithCondition(condition func(ctx context.Context, key string) bool) HookOption {
	return func(h *Hook) {
		h.Condition = condition
	}
}

func (h *Hooks) invokeOnHit(ctx context.Context, key string, value any) {
	if h == nil {
		return
	}
	h.invokeHooks(ctx, key, h.onHit, func(hook Hook) {
		hook.OnHit(ctx, key, value)
	})
}

func (h *Hooks) invokeOnMiss(ctx context.Context, key string) {
	if h == nil {
		return
	}
	h.invokeHooks(ctx, key, h.onMiss, func(hook Hook) {
		hook.OnMiss(ctx, key)
	})
}

func (h *Hooks) invokeOnSet(ctx context.Context, key string, value any) {
	if h == nil {
		return
	}
	h.invokeHooks(ctx, key, h.onSet, func(hook Hook) {
		hook.OnSet(ctx, key, value)
	})
}

func (h *Hooks) invokeOnEvict(ctx context.Context, key string, value any, reason EvictReason) {
	if h == nil {
		return
	}
	h.invokeHooks(ctx, key, h.onEvict, func(hook Hook) {
		hook.OnEvict(ctx, key, value, reason)
	})
}

func (h *Hooks) invokeOnInvalidate(ctx context.Context, key string, cause InvalidateCause) {
	if h == nil {
		return
	}
	h.invokeHooks(ctx, key, h.onInvalidate, func(hook Hook) {
		hook.OnInvalidate(ctx, key, cause)
	})
}

// invokeHooks executes hooks whose condition holds in priority order (highest first)
func (h *Hooks) invokeHooks(ctx context.Context, key string, hooks []Hook, execute func(Hook)) {
	if len(hooks) == 0 {
		return
	}

	if len(hooks) > 1 {
		sorted := make([]Hook, len(hooks))
		copy(sorted, hooks)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Priority > sorted[j].Priority
		})
		hooks = sorted
	}

	for _, hook := range hooks {
		if hook.Condition == nil || hook.Condition(ctx, key) {
			execute(hook)
		}
	}
}
