package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ArslanKamchybekov/trademaxxer/internal/news"
	"github.com/ArslanKamchybekov/trademaxxer/internal/pubsub"
)

func testMarket() Market {
	return Market{
		Address:            "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		Question:           "Will BTC close above 100k this month?",
		CurrentProbability: 0.42,
		Tags:               []string{"crypto"},
	}
}

type stubScorer struct {
	mu        sync.Mutex
	decisions []Decision
	err       error
	calls     int
}

func (s *stubScorer) Score(_ context.Context, story Story, market Market) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return Decision{}, s.err
	}
	d := Decision{
		Action:        ActionYes,
		Confidence:    0.7,
		MarketAddress: market.Address,
		StoryID:       story.ID,
	}
	s.decisions = append(s.decisions, d)
	return d, nil
}

func (s *stubScorer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func cryptoItem(t *testing.T, id string) *news.TaggedItem {
	t.Helper()
	item, err := news.NewTaggedItem(news.TaggedItem{
		ID:         id,
		Timestamp:  time.Now().UTC(),
		ReceivedAt: time.Now().UTC(),
		Headline:   "Bitcoin surges past $100k",
		Urgency:    news.UrgencyHigh,
		Categories: []news.Category{news.CategoryCrypto},
		Tickers:    []string{"BTC"},
	})
	if err != nil {
		t.Fatalf("build item: %v", err)
	}
	return item
}

func TestNewListenerRejectsInvalidMarket(t *testing.T) {
	bad := testMarket()
	bad.Question = ""
	if _, err := NewListener(bad, &stubScorer{}, pubsub.NewBus(zerolog.Nop()), zerolog.Nop()); err == nil {
		t.Fatalf("expected error for invalid market")
	}
}

func TestListenerChannels(t *testing.T) {
	m := testMarket()
	m.Tags = []string{"crypto", "CRYPTO", "macro", "not-a-category"}
	l, err := NewListener(m, &stubScorer{}, pubsub.NewBus(zerolog.Nop()), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}

	got := l.Channels()
	want := []string{"all", "category:crypto", "category:economics"}
	if len(got) != len(want) {
		t.Fatalf("Channels = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("channel %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestListenerScoresAndPublishesDecision(t *testing.T) {
	bus := pubsub.NewBus(zerolog.Nop())
	scorer := &stubScorer{}

	l, err := NewListener(testMarket(), scorer, bus, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	l.Start()
	defer l.Stop()

	decisions := make(chan *DecisionRecord, 4)
	bus.Subscribe(func(_ context.Context, payload any) {
		if rec, ok := payload.(*DecisionRecord); ok {
			decisions <- rec
		}
	}, pubsub.ChannelDecisions)

	item := cryptoItem(t, "news-1")
	bus.Publish(context.Background(), pubsub.ChannelsFor(item), item)

	select {
	case rec := <-decisions:
		if rec.Action != ActionYes || rec.StoryID != "news-1" {
			t.Fatalf("unexpected decision: %+v", rec)
		}
		if rec.MarketQuestion != testMarket().Question {
			t.Fatalf("decision missing market context: %+v", rec)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for decision")
	}

	// the bus dedups: one story on overlapping channels means one score call
	if scorer.callCount() != 1 {
		t.Fatalf("scorer called %d times, want 1", scorer.callCount())
	}
	if stats := l.Stats(); stats.StoriesReceived != 1 || stats.DecisionsYes != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestListenerToleratesScorerFailure(t *testing.T) {
	bus := pubsub.NewBus(zerolog.Nop())
	scorer := &stubScorer{err: errors.New("llm down")}

	l, err := NewListener(testMarket(), scorer, bus, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	l.Start()
	defer l.Stop()

	decisions := make(chan *DecisionRecord, 1)
	bus.Subscribe(func(_ context.Context, payload any) {
		if rec, ok := payload.(*DecisionRecord); ok {
			decisions <- rec
		}
	}, pubsub.ChannelDecisions)

	item := cryptoItem(t, "news-2")
	bus.Publish(context.Background(), pubsub.ChannelsFor(item), item)

	select {
	case rec := <-decisions:
		t.Fatalf("decision published despite failure: %+v", rec)
	case <-time.After(200 * time.Millisecond):
	}

	if stats := l.Stats(); stats.Errors != 1 || stats.StoriesReceived != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	// next story still flows
	scorer.mu.Lock()
	scorer.err = nil
	scorer.mu.Unlock()
	bus.Publish(context.Background(), pubsub.ChannelsFor(cryptoItem(t, "news-3")), cryptoItem(t, "news-3"))

	select {
	case <-decisions:
	case <-time.After(time.Second):
		t.Fatal("listener stopped consuming after failure")
	}
}

func TestListenerIgnoresNonItemPayloads(t *testing.T) {
	bus := pubsub.NewBus(zerolog.Nop())
	scorer := &stubScorer{}

	l, err := NewListener(testMarket(), scorer, bus, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	l.Start()
	defer l.Stop()

	bus.Publish(context.Background(), []string{pubsub.ChannelAll}, "not an item")

	if scorer.callCount() != 0 {
		t.Fatalf("scorer called for foreign payload")
	}
	if stats := l.Stats(); stats.StoriesReceived != 0 {
		t.Fatalf("foreign payload counted: %+v", stats)
	}
}

func TestNormalizeAction(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"YES", ActionYes, true},
		{"no", ActionNo, true},
		{" Skip ", ActionSkip, true},
		{"MORE likely to resolve YES", ActionYes, true},
		{"the answer is NO", ActionNo, true},
		{"this story is irrelevant", ActionSkip, true},
		{"too ambiguous to call", ActionSkip, true},
		{"YES or NO, hard to say", "", false},
		{"banana", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeAction(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("NormalizeAction(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
