package pubsub

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

func TestPublishDedupsAcrossChannels(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var calls atomic.Int64
	bus.Subscribe(func(context.Context, any) { calls.Add(1) },
		"all", "category:crypto", "ticker:BTC")

	n := bus.Publish(context.Background(), []string{"all", "category:crypto", "ticker:BTC"}, "payload")
	if n != 1 {
		t.Fatalf("Publish returned %d unique callbacks, want 1", n)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("callback invoked %d times, want 1", got)
	}
}

func TestPublishFanOut(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	// s1 on all; s2 on crypto+BTC; s3 on politics only
	var s1, s2, s3 atomic.Int64
	bus.Subscribe(func(context.Context, any) { s1.Add(1) }, "all")
	bus.Subscribe(func(context.Context, any) { s2.Add(1) }, "category:crypto", "ticker:BTC")
	bus.Subscribe(func(context.Context, any) { s3.Add(1) }, "category:politics")

	n := bus.Publish(context.Background(), []string{"all", "category:crypto", "ticker:BTC"}, "payload")
	if n != 2 {
		t.Fatalf("Publish returned %d, want 2", n)
	}
	if s1.Load() != 1 || s2.Load() != 1 || s3.Load() != 0 {
		t.Fatalf("fan-out wrong: s1=%d s2=%d s3=%d", s1.Load(), s2.Load(), s3.Load())
	}
}

func TestPublishBreakingItemReachesEachSubscriberOnce(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var s1, s2, s3 atomic.Int64
	bus.Subscribe(func(context.Context, any) { s1.Add(1) }, "all")
	bus.Subscribe(func(context.Context, any) { s2.Add(1) }, "urgency:breaking", "category:crypto")
	bus.Subscribe(func(context.Context, any) { s3.Add(1) }, "ticker:BTC")

	// breaking crypto item with one ticker matches all three subscribers,
	// s2 through both of its channels
	channels := []string{"all", "urgency:breaking", "category:crypto", "ticker:BTC"}
	n := bus.Publish(context.Background(), channels, "payload")
	if n != 3 {
		t.Fatalf("Publish returned %d unique callbacks, want 3", n)
	}
	if s1.Load() != 1 || s2.Load() != 1 || s3.Load() != 1 {
		t.Fatalf("fan-out wrong: s1=%d s2=%d s3=%d", s1.Load(), s2.Load(), s3.Load())
	}
}

func TestPublishNoSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	if n := bus.Publish(context.Background(), []string{"all"}, "payload"); n != 0 {
		t.Fatalf("Publish on empty bus returned %d", n)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var calls atomic.Int64
	sub := bus.Subscribe(func(context.Context, any) { calls.Add(1) }, "all", "category:crypto")

	bus.Unsubscribe(sub, "category:crypto")
	bus.Publish(context.Background(), []string{"category:crypto"}, "payload")
	if calls.Load() != 0 {
		t.Fatalf("callback reached after channel unsubscribe")
	}

	bus.Publish(context.Background(), []string{"all"}, "payload")
	if calls.Load() != 1 {
		t.Fatalf("remaining channel lost: %d calls", calls.Load())
	}

	bus.Unsubscribe(sub)
	bus.Publish(context.Background(), []string{"all"}, "payload")
	if calls.Load() != 1 {
		t.Fatalf("callback reached after full unsubscribe")
	}
	if bus.ChannelCount() != 0 {
		t.Fatalf("emptied channels not deleted: %d", bus.ChannelCount())
	}
}

func TestUnsubscribeAbsentIsNoop(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	sub := bus.Subscribe(func(context.Context, any) {}, "all")

	bus.Unsubscribe(sub, "never-registered")
	bus.Unsubscribe(&Subscription{}, "all")

	if bus.SubscriberCount() != 1 {
		t.Fatalf("subscriber count changed: %d", bus.SubscriberCount())
	}
}

func TestSubscriberCountCountsPerChannel(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	bus.Subscribe(func(context.Context, any) {}, "all", "category:crypto", "ticker:BTC")
	bus.Subscribe(func(context.Context, any) {}, "all")

	if got := bus.ChannelCount(); got != 3 {
		t.Fatalf("ChannelCount = %d, want 3", got)
	}
	if got := bus.SubscriberCount(); got != 4 {
		t.Fatalf("SubscriberCount = %d, want 4", got)
	}
}

func TestPublishSurvivesPanickingSubscriber(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var calls atomic.Int64
	bus.Subscribe(func(context.Context, any) { panic("boom") }, "all")
	bus.Subscribe(func(context.Context, any) { calls.Add(1) }, "all")

	n := bus.Publish(context.Background(), []string{"all"}, "payload")
	if n != 2 {
		t.Fatalf("Publish returned %d, want 2", n)
	}
	if calls.Load() != 1 {
		t.Fatalf("healthy subscriber starved by panicking peer")
	}
}

func TestAddExtendsSubscription(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var calls atomic.Int64
	sub := bus.Subscribe(func(context.Context, any) { calls.Add(1) }, "all")
	bus.Add(sub, "category:crypto")

	// still one unique callback even though two channels match
	n := bus.Publish(context.Background(), []string{"all", "category:crypto"}, "payload")
	if n != 1 || calls.Load() != 1 {
		t.Fatalf("extended subscription double-delivered: n=%d calls=%d", n, calls.Load())
	}
}
