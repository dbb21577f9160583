package pubsub

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ArslanKamchybekov/trademaxxer/internal/metrics"
)

// Callback receives one published payload. Callbacks run concurrently with
// each other; a slow or panicking callback never affects its peers or the
// publisher.
type Callback func(ctx context.Context, payload any)

// Subscription is the identity handle for one (channel set, callback) pair.
// Registering the same handle on several channels is what makes per-publish
// dedup possible.
type Subscription struct {
	cb Callback
}

// Bus is the in-memory fan-out hub: a map from channel name to an ordered
// subscriber list. Subscribe/Unsubscribe/Publish are safe to interleave;
// the lock covers list mutation only, never callback execution.
type Bus struct {
	log zerolog.Logger

	mu   sync.RWMutex
	subs map[string][]*Subscription
}

// NewBus returns an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{log: log, subs: make(map[string][]*Subscription)}
}

// Subscribe registers cb on each of the given channels and returns the
// subscription handle used for dedup and removal.
func (b *Bus) Subscribe(cb Callback, channels ...string) *Subscription {
	sub := &Subscription{cb: cb}
	b.Add(sub, channels...)
	return sub
}

// Add registers an existing subscription on more channels.
func (b *Bus) Add(sub *Subscription, channels ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range channels {
		b.subs[ch] = append(b.subs[ch], sub)
	}
}

// Unsubscribe removes the subscription from the given channels, or from
// every channel when none are given. Removing an absent subscription is a
// no-op; emptied channels are deleted.
func (b *Bus) Unsubscribe(sub *Subscription, channels ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(channels) == 0 {
		for ch := range b.subs {
			b.removeLocked(ch, sub)
		}
		return
	}
	for _, ch := range channels {
		b.removeLocked(ch, sub)
	}
}

func (b *Bus) removeLocked(channel string, sub *Subscription) {
	list := b.subs[channel]
	for i, s := range list {
		if s == sub {
			b.subs[channel] = append(list[:i], list[i+1:]...)
			if len(b.subs[channel]) == 0 {
				delete(b.subs, channel)
			}
			return
		}
	}
}

// Publish fans the payload out to the union of subscribers across the given
// channels, each invoked at most once per call no matter how many channels
// it matched. Callbacks run as concurrent goroutines; Publish returns after
// the slowest finishes. Returns the number of unique callbacks invoked.
func (b *Bus) Publish(ctx context.Context, channels []string, payload any) int {
	b.mu.RLock()
	seen := make(map[*Subscription]struct{})
	targets := make([]*Subscription, 0, 8)
	for _, ch := range channels {
		for _, sub := range b.subs[ch] {
			if _, dup := seen[sub]; dup {
				continue
			}
			seen[sub] = struct{}{}
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	metrics.PublishTotal.Inc()
	if len(targets) == 0 {
		return 0
	}

	var wg sync.WaitGroup
	wg.Add(len(targets))
	for _, sub := range targets {
		go func(sub *Subscription) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.log.Error().Interface("panic", r).Msg("subscriber callback panicked")
				}
			}()
			sub.cb(ctx, payload)
		}(sub)
	}
	wg.Wait()

	metrics.FanoutCallbacks.Add(float64(len(targets)))
	return len(targets)
}

// ChannelCount reports how many channels currently have subscribers.
func (b *Bus) ChannelCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// SubscriberCount is the raw subscription count summed across channels; a
// subscription registered on k channels counts k times.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0
	for _, list := range b.subs {
		total += len(list)
	}
	return total
}
