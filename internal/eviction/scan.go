package eviction

import (
	"time"
)

type record struct {
	accessedAt time.Time
	seq        uint64
}

// ScanStrategy selects the victim with a linear scan over all tracked keys:
// minimum access time wins, ties go to the lowest insertion sequence.
// Fine for the bounded capacities this cache is built for.
type ScanStrategy struct {
	records map[string]record
}

// NewScanStrategy creates an empty scan-based LRU strategy
func NewScanStrategy() *ScanStrategy {
	return &ScanStrategy{records: make(map[string]record)}
}

// Add starts tracking key
func (s *ScanStrategy) Add(key string, accessedAt time.Time, seq uint64) {
	s.records[key] = record{accessedAt: accessedAt, seq: seq}
}

// Touch updates the access time of key
func (s *ScanStrategy) Touch(key string, accessedAt time.Time) {
	if r, ok := s.records[key]; ok {
		r.accessedAt = accessedAt
		s.records[key] = r
	}
}

// Remove stops tracking key
func (s *ScanStrategy) Remove(key string) bool {
	if _, ok := s.records[key]; !ok {
		return false
	}
	delete(s.records, key)
	return true
}

// SelectVictim returns the least recently accessed key
func (s *ScanStrategy) SelectVictim() (string, bool) {
	var (
		victim string
		best   record
		found  bool
	)

	for key, r := range s.records {
		if !found || r.accessedAt.Before(best.accessedAt) ||
			(r.accessedAt.Equal(best.accessedAt) && r.seq < best.seq) {
			victim, best, found = key, r, true
		}
	}

	return victim, found
}

// Contains checks if a key is tracked
func (s *ScanStrategy) Contains(key string) bool {
	_, ok := s.records[key]
	return ok
}

// Len returns the number of tracked keys
func (s *ScanStrategy) Len() int {
	return len(s.records)
}

// Clear removes all keys
func (s *ScanStrategy) Clear() {
	s.records = make(map[string]record)
}
