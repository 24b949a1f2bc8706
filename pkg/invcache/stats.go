package invcache

import (
	"sync/atomic"
)

// Stats tracks cache counters. All methods are safe for concurrent use.
type Stats struct {
	hits          atomic.Int64
	misses        atomic.Int64
	sets          atomic.Int64
	evictions     atomic.Int64
	expirations   atomic.Int64
	compressions  atomic.Int64
	invalidations atomic.Int64
	keyCount      atomic.Int64
	memoryUsage   atomic.Int64
}

// Hits returns the number of successful reads
func (s *Stats) Hits() int64 { return s.hits.Load() }

// Misses returns the number of reads that found nothing usable
func (s *Stats) Misses() int64 { return s.misses.Load() }

// Sets returns the number of stored entries
func (s *Stats) Sets() int64 { return s.sets.Load() }

// Evictions returns the number of capacity evictions
func (s *Stats) Evictions() int64 { return s.evictions.Load() }

// Expirations returns the number of entries removed after their TTL
func (s *Stats) Expirations() int64 { return s.expirations.Load() }

// Compressions returns the number of entries stored compressed
func (s *Stats) Compressions() int64 { return s.compressions.Load() }

// Invalidations returns the number of entries removed by Delete or invalidation
func (s *Stats) Invalidations() int64 { return s.invalidations.Load() }

// KeyCount returns the entry count at the last refresh
func (s *Stats) KeyCount() int64 { return s.keyCount.Load() }

// MemoryUsage returns the approximate stored bytes at the last refresh
func (s *Stats) MemoryUsage() int64 { return s.memoryUsage.Load() }

// HitRate returns hits / (hits + misses) as a fraction in [0, 1]
func (s *Stats) HitRate() float64 {
	hits := s.Hits()
	total := hits + s.Misses()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Total returns the number of reads
func (s *Stats) Total() int64 {
	return s.Hits() + s.Misses()
}

func (s *Stats) reset() {
	s.hits.Store(0)
	s.misses.Store(0)
	s.sets.Store(0)
	s.evictions.Store(0)
	s.expirations.Store(0)
	s.compressions.Store(0)
	s.invalidations.Store(0)
	s.keyCount.Store(0)
	s.memoryUsage.Store(0)
}

// counters is the persisted form of Stats
type counters struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Sets          int64 `json:"sets"`
	Evictions     int64 `json:"evictions"`
	Expirations   int64 `json:"expirations"`
	Compressions  int64 `json:"compressions"`
	Invalidations int64 `json:"invalidations"`
}

func (s *Stats) counters() counters {
	return counters{
		Hits:          s.Hits(),
		Misses:        s.Misses(),
		Sets:          s.Sets(),
		Evictions:     s.Evictions(),
		Expirations:   s.Expirations(),
		Compressions:  s.Compressions(),
		Invalidations: s.Invalidations(),
	}
}

func (s *Stats) restore(c counters) {
	s.hits.Store(c.Hits)
	s.misses.Store(c.Misses)
	s.sets.Store(c.Sets)
	s.evictions.Store(c.Evictions)
	s.expirations.Store(c.Expirations)
	s.compressions.Store(c.Compressions)
	s.invalidations.Store(c.Invalidations)
}

// StatsSnapshot is a point-in-time copy of the cache counters
type StatsSnapshot struct {
	Size          int     `json:"size"`
	MaxSize       int     `json:"maxSize"`
	HitRate       float64 `json:"hitRate"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Sets          int64   `json:"sets"`
	Evictions     int64   `json:"evictions"`
	Expirations   int64   `json:"expirations"`
	Compressions  int64   `json:"compressions"`
	Invalidations int64   `json:"invalidations"`
	MemoryUsage   int64   `json:"memoryUsage"`
}
