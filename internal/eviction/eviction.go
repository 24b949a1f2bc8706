package eviction

import (
	"time"
)

// Strategy tracks key recency and picks the next victim when the cache is
// full. Implementations are not safe for concurrent use; the cache calls
// them while holding its own mutation lock.
type Strategy interface {
	// Add starts tracking key, or replaces its record when already tracked
	Add(key string, accessedAt time.Time, seq uint64)

	// Touch marks key as accessed at the given time
	Touch(key string, accessedAt time.Time)

	// Remove stops tracking key
	Remove(key string) bool

	// SelectVictim returns the least recently used key without removing it
	SelectVictim() (string, bool)

	// Contains checks if a key is tracked
	Contains(key string) bool

	// Len returns the number of tracked keys
	Len() int

	// Clear removes all keys
	Clear()
}

// EvictionType represents the type of eviction strategy
type EvictionType string

const (
	// LRU scans every entry for the oldest access time. Default.
	LRU EvictionType = "lru"

	// LRUList keeps a recency list so victim selection is O(1)
	LRUList EvictionType = "lru-list"
)

// Config holds configuration for eviction strategies
type Config struct {
	Type     EvictionType
	Capacity int
}

// NewStrategy creates a new eviction strategy based on the given config
func NewStrategy(config Config) Strategy {
	switch config.Type {
	case LRUList:
		return NewListStrategy(config.Capacity)
	default:
		return NewScanStrategy()
	}
}
