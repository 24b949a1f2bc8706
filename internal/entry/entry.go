package entry

import (
	"time"
)

// Entry represents a cache entry with its value, access bookkeeping and
// invalidation metadata. A compressed entry keeps only Payload; an
// uncompressed one keeps only Value.
type Entry[V any] struct {
	Key   string
	Value V

	// Payload holds the compressed serialized value when IsCompressed is set
	Payload      []byte
	IsCompressed bool
	Codec        string

	// Size is the serialized size of the value in bytes, measured at write time
	Size int

	CreatedAt      time.Time
	LastAccessedAt time.Time
	TTL            time.Duration
	AccessCount    int64

	Tags         []string
	Dependencies []string

	// Seq is the insertion order, used to break ties between equal access times
	Seq uint64
}

// New creates an uncompressed entry created at now
func New[V any](key string, value V, ttl time.Duration, now time.Time) *Entry[V] {
	return &Entry[V]{
		Key:            key,
		Value:          value,
		CreatedAt:      now,
		LastAccessedAt: now,
		TTL:            ttl,
	}
}

// NewCompressed creates an entry that stores only the compressed payload
func NewCompressed[V any](key string, payload []byte, codec string, ttl time.Duration, now time.Time) *Entry[V] {
	return &Entry[V]{
		Key:            key,
		Payload:        payload,
		IsCompressed:   true,
		Codec:          codec,
		CreatedAt:      now,
		LastAccessedAt: now,
		TTL:            ttl,
	}
}

// IsExpired reports whether more than TTL has elapsed since creation
func (e *Entry[V]) IsExpired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

// Remaining returns the TTL left at now, or zero once expired
func (e *Entry[V]) Remaining(now time.Time) time.Duration {
	left := e.TTL - now.Sub(e.CreatedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Touch records a successful read
func (e *Entry[V]) Touch(now time.Time) {
	e.AccessCount++
	e.LastAccessedAt = now
}

// StoredSize approximates the bytes the entry occupies, key included
func (e *Entry[V]) StoredSize() int64 {
	if e.IsCompressed {
		return int64(len(e.Key) + len(e.Payload))
	}
	return int64(len(e.Key) + e.Size)
}

