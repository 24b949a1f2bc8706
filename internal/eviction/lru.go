package eviction

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// ListStrategy implements LRU with a recency list from golang-lru.
// Add and Touch move a key to the front; the victim is the oldest element.
type ListStrategy struct {
	list *simplelru.LRU[string, struct{}]
}

// NewListStrategy creates a list-backed LRU strategy. The list is sized one
// above capacity so it never evicts on its own; the cache decides when.
func NewListStrategy(capacity int) *ListStrategy {
	if capacity < 1 {
		capacity = 1
	}

	list, err := simplelru.NewLRU[string, struct{}](capacity+1, nil)
	if err != nil {
		// This should not happen with a positive size
		panic("failed to create LRU list: " + err.Error())
	}

	return &ListStrategy{list: list}
}

// Add tracks key as the most recently used
func (l *ListStrategy) Add(key string, _ time.Time, _ uint64) {
	l.list.Remove(key)
	l.list.Add(key, struct{}{})
}

// Touch marks key as the most recently used
func (l *ListStrategy) Touch(key string, _ time.Time) {
	l.list.Get(key)
}

// Remove stops tracking key
func (l *ListStrategy) Remove(key string) bool {
	return l.list.Remove(key)
}

// SelectVictim returns the oldest key in the recency list
func (l *ListStrategy) SelectVictim() (string, bool) {
	key, _, ok := l.list.GetOldest()
	return key, ok
}

// Contains checks if a key is tracked
func (l *ListStrategy) Contains(key string) bool {
	return l.list.Contains(key)
}

// Len returns the number of tracked keys
func (l *ListStrategy) Len() int {
	return l.list.Len()
}

// Clear removes all keys
func (l *ListStrategy) Clear() {
	l.list.Purge()
}

