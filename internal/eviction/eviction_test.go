package eviction

import (
	"testing"
	"time"
)

func strategies() map[string]func() Strategy {
	return map[string]func() Strategy{
		"scan": func() Strategy { return NewStrategy(Config{Type: LRU, Capacity: 3}) },
		"list": func() Strategy { return NewStrategy(Config{Type: LRUList, Capacity: 3}) },
	}
}

func TestNewStrategy(t *testing.T) {
	if _, ok := NewStrategy(Config{Type: LRU}).(*ScanStrategy); !ok {
		t.Error("Expected LRU to create a ScanStrategy")
	}
	if _, ok := NewStrategy(Config{Type: LRUList, Capacity: 10}).(*ListStrategy); !ok {
		t.Error("Expected LRUList to create a ListStrategy")
	}
	if _, ok := NewStrategy(Config{}).(*ScanStrategy); !ok {
		t.Error("Expected empty type to default to ScanStrategy")
	}
}

func TestSelectVictimInsertionOrder(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, newStrategy := range strategies() {
		t.Run(name, func(t *testing.T) {
			s := newStrategy()
			s.Add("a", base, 1)
			s.Add("b", base.Add(time.Millisecond), 2)
			s.Add("c", base.Add(2*time.Millisecond), 3)

			victim, ok := s.SelectVictim()
			if !ok || victim != "a" {
				t.Fatalf("Expected victim a, got %q (ok=%v)", victim, ok)
			}
		})
	}
}

func TestSelectVictimAfterTouch(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, newStrategy := range strategies() {
		t.Run(name, func(t *testing.T) {
			s := newStrategy()
			s.Add("a", base, 1)
			s.Add("b", base.Add(time.Millisecond), 2)
			s.Add("c", base.Add(2*time.Millisecond), 3)

			s.Touch("a", base.Add(3*time.Millisecond))

			victim, _ := s.SelectVictim()
			if victim != "b" {
				t.Fatalf("Expected victim b after touching a, got %q", victim)
			}
		})
	}
}

func TestScanTieBreaksOnSequence(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s := NewScanStrategy()
	s.Add("late", at, 9)
	s.Add("early", at, 2)
	s.Add("middle", at, 5)

	for i := 0; i < 5; i++ {
		victim, _ := s.SelectVictim()
		if victim != "early" {
			t.Fatalf("Expected deterministic victim early, got %q", victim)
		}
	}
}

func TestRemoveAndClear(t *testing.T) {
	now := time.Now()

	for name, newStrategy := range strategies() {
		t.Run(name, func(t *testing.T) {
			s := newStrategy()
			s.Add("a", now, 1)
			s.Add("b", now, 2)

			if !s.Remove("a") {
				t.Error("Expected Remove to report true for tracked key")
			}
			if s.Remove("a") {
				t.Error("Expected second Remove to report false")
			}
			if s.Contains("a") || !s.Contains("b") {
				t.Error("Unexpected membership after Remove")
			}
			if s.Len() != 1 {
				t.Errorf("Expected Len 1, got %d", s.Len())
			}

			s.Clear()
			if s.Len() != 0 {
				t.Errorf("Expected Len 0 after Clear, got %d", s.Len())
			}
			if _, ok := s.SelectVictim(); ok {
				t.Error("Expected no victim from empty strategy")
			}
		})
	}
}

func TestListStrategyDoesNotSelfEvict(t *testing.T) {
	s := NewListStrategy(2)
	now := time.Now()

	s.Add("a", now, 1)
	s.Add("b", now, 2)
	s.Add("c", now, 3)

	if s.Len() != 3 {
		t.Fatalf("Expected list to hold capacity+1 keys, got %d", s.Len())
	}
	if victim, ok := s.SelectVictim(); !ok || victim != "a" {
		t.Errorf("Expected a as victim, got %q", victim)
	}
}

func TestReAddMovesToFront(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, newStrategy := range strategies() {
		t.Run(name, func(t *testing.T) {
			s := newStrategy()
			s.Add("a", base, 1)
			s.Add("b", base.Add(time.Millisecond), 2)
			s.Add("a", base.Add(2*time.Millisecond), 3)

			victim, _ := s.SelectVictim()
			if victim != "b" {
				t.Fatalf("Expected b after replacing a, got %q", victim)
			}
		})
	}
}
