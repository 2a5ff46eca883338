package backoff

import (
	"testing"
	"time"
)

func TestBackoffGrows(t *testing.T) {
	s := New(time.Second, 2, time.Minute)

	first := s.Backoff()
	if first != time.Second {
		t.Fatalf("expected first backoff to equal base duration, got %v", first)
	}

	second := s.Backoff()
	if second <= first {
		t.Fatalf("expected second backoff %v to exceed first %v", second, first)
	}
}

func TestBackoffCapsAtMax(t *testing.T) {
	s := New(time.Second, 10, 5*time.Second)

	var last time.Duration
	for i := 0; i < 10; i++ {
		last = s.Backoff()
	}
	if last != 5*time.Second {
		t.Fatalf("expected backoff to cap at 5s, got %v", last)
	}
}

func TestResetReturnsToInitialState(t *testing.T) {
	s := New(time.Second, 2, time.Minute)
	s.Backoff()
	s.Backoff()
	s.Reset()

	if got := s.Backoff(); got != time.Second {
		t.Fatalf("expected backoff after reset to equal base duration, got %v", got)
	}
}
