package entry

import (
	"testing"
	"time"
)

func TestIsExpired(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := New("k", 1, time.Second, base)

	tests := []struct {
		name    string
		now     time.Time
		expired bool
	}{
		{"at creation", base, false},
		{"exactly ttl", base.Add(time.Second), false},
		{"past ttl", base.Add(time.Second + time.Nanosecond), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.IsExpired(tt.now); got != tt.expired {
				t.Errorf("IsExpired(%v) = %v, want %v", tt.now.Sub(base), got, tt.expired)
			}
		})
	}
}

func TestRemaining(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := New("k", "v", 10*time.Second, base)

	if got := e.Remaining(base.Add(4 * time.Second)); got != 6*time.Second {
		t.Errorf("Expected 6s remaining, got %v", got)
	}
	if got := e.Remaining(base.Add(time.Minute)); got != 0 {
		t.Errorf("Expected 0 remaining after expiry, got %v", got)
	}
}

func TestTouch(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := New("k", "v", time.Minute, base)

	later := base.Add(5 * time.Second)
	e.Touch(later)
	e.Touch(later)

	if e.AccessCount != 2 {
		t.Errorf("Expected AccessCount 2, got %d", e.AccessCount)
	}
	if !e.LastAccessedAt.Equal(later) {
		t.Errorf("Expected LastAccessedAt %v, got %v", later, e.LastAccessedAt)
	}
	if !e.CreatedAt.Equal(base) {
		t.Error("Touch must not move CreatedAt")
	}
}

func TestStoredSize(t *testing.T) {
	now := time.Now()

	plain := New("abc", "value", time.Minute, now)
	plain.Size = 7
	if got := plain.StoredSize(); got != 10 {
		t.Errorf("Expected stored size 10, got %d", got)
	}

	packed := NewCompressed[string]("abc", []byte{1, 2, 3, 4}, "gzip", time.Minute, now)
	packed.Size = 4096
	if got := packed.StoredSize(); got != 7 {
		t.Errorf("Expected compressed stored size 7, got %d", got)
	}
	if !packed.IsCompressed || packed.Codec != "gzip" {
		t.Error("Expected compressed entry to carry codec metadata")
	}
}

