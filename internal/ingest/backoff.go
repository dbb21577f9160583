package ingest

import (
	"math/rand"
	"sync"
	"time"
)

const (
	defaultInitialDelay = time.Second
	defaultMaxDelay     = 60 * time.Second
	defaultMultiplier   = 2.0
	defaultJitter       = 0.1
	minDelay            = 100 * time.Millisecond
)

// Backoff computes reconnect delays: exponential growth with jitter, capped
// at Max and floored at 100ms. Safe for use from a single connect loop plus
// concurrent Stats reads.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64

	mu       sync.Mutex
	current  time.Duration
	attempts int
}

// NewBackoff returns a Backoff with the feed client defaults: 1s initial,
// 60s cap, 2x growth, 10% jitter.
func NewBackoff() *Backoff {
	return &Backoff{
		Initial:    defaultInitialDelay,
		Max:        defaultMaxDelay,
		Multiplier: defaultMultiplier,
		Jitter:     defaultJitter,
	}
}

// Next returns the delay to wait before the next attempt, then advances the
// internal state (current delay multiplied and capped, attempt count
// incremented). Jitter of +/- Jitter fraction is applied to the returned
// value only.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == 0 {
		b.current = b.Initial
	}

	delay := b.current
	jitter := time.Duration(float64(delay) * b.Jitter)
	if jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(2*jitter))) - jitter
	}
	if delay < minDelay {
		delay = minDelay
	}

	next := time.Duration(float64(b.current) * b.Multiplier)
	if next > b.Max {
		next = b.Max
	}
	b.current = next
	b.attempts++

	return delay
}

// Reset restores the initial delay and zeroes the attempt count. Called
// after a successful connection.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.Initial
	b.attempts = 0
}

// Attempts reports how many delays have been handed out since the last
// reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}
