package ingest

import (
	"testing"
	"time"
)

// withinJitter checks a delay against the expected base value plus or minus
// the jitter fraction (and the 100ms floor).
func withinJitter(delay, base time.Duration, jitter float64) bool {
	lo := time.Duration(float64(base) * (1 - jitter))
	hi := time.Duration(float64(base) * (1 + jitter))
	if lo < 100*time.Millisecond {
		lo = 100 * time.Millisecond
	}
	return delay >= lo && delay <= hi
}

func TestBackoffGrowth(t *testing.T) {
	b := NewBackoff()

	for i, base := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second} {
		delay := b.Next()
		if !withinJitter(delay, base, b.Jitter) {
			t.Fatalf("attempt %d: delay %v outside jitter band of %v", i+1, delay, base)
		}
	}
	if got := b.Attempts(); got != 4 {
		t.Fatalf("Attempts = %d, want 4", got)
	}
}

func TestBackoffCapsAtMax(t *testing.T) {
	b := NewBackoff()
	var delay time.Duration
	for i := 0; i < 12; i++ {
		delay = b.Next()
	}
	if !withinJitter(delay, b.Max, b.Jitter) {
		t.Fatalf("delay %v did not settle at cap %v", delay, b.Max)
	}
}

func TestBackoffFloor(t *testing.T) {
	b := &Backoff{Initial: time.Millisecond, Max: time.Second, Multiplier: 2, Jitter: 0.5}
	for i := 0; i < 3; i++ {
		if delay := b.Next(); delay < 100*time.Millisecond {
			t.Fatalf("delay %v below 100ms floor", delay)
		}
	}
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoff()
	for i := 0; i < 5; i++ {
		b.Next()
	}
	b.Reset()

	if got := b.Attempts(); got != 0 {
		t.Fatalf("Attempts after reset = %d, want 0", got)
	}
	if delay := b.Next(); !withinJitter(delay, b.Initial, b.Jitter) {
		t.Fatalf("delay after reset %v outside jitter band of %v", delay, b.Initial)
	}
}
