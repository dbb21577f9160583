package pubsub

import (
	"testing"
	"time"

	"github.com/ArslanKamchybekov/trademaxxer/internal/news"
)

func taggedItem(t *testing.T) *news.TaggedItem {
	t.Helper()
	item, err := news.NewTaggedItem(news.TaggedItem{
		ID:         "news-1",
		Timestamp:  time.Now().UTC(),
		ReceivedAt: time.Now().UTC(),
		Headline:   "Bitcoin surges",
		Urgency:    news.UrgencyBreaking,
		Categories: []news.Category{news.CategoryCrypto, news.CategoryFinancials},
		Tickers:    []string{"BTC", "ETH"},
	})
	if err != nil {
		t.Fatalf("build item: %v", err)
	}
	return item
}

func TestChannelsFor(t *testing.T) {
	item := taggedItem(t)
	got := ChannelsFor(item)

	want := []string{
		"all",
		"urgency:breaking",
		"category:crypto",
		"category:financials",
		"ticker:BTC",
		"ticker:ETH",
	}
	if len(got) != len(want) {
		t.Fatalf("ChannelsFor returned %d channels, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("channel %d = %q, want %q", i, got[i], want[i])
		}
	}

	// pure: a second call yields the same result
	again := ChannelsFor(item)
	for i := range got {
		if again[i] != got[i] {
			t.Fatalf("ChannelsFor not stable at %d: %q vs %q", i, again[i], got[i])
		}
	}
}

func TestTickerChannelUpperCases(t *testing.T) {
	if got := TickerChannel("btc"); got != "ticker:BTC" {
		t.Fatalf("TickerChannel(btc) = %q", got)
	}
	if got := TickerChannel("BTC"); got != "ticker:BTC" {
		t.Fatalf("TickerChannel(BTC) = %q", got)
	}
}

func TestDecisionsChannelNotInFanOut(t *testing.T) {
	for _, ch := range ChannelsFor(taggedItem(t)) {
		if ch == ChannelDecisions {
			t.Fatalf("decisions channel leaked into item fan-out")
		}
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	raw, err := EncodeEnvelope("ticker:BTC", []byte(`{"id":"news-1"}`))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	channel, data, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if channel != "ticker:BTC" {
		t.Fatalf("channel = %q", channel)
	}
	if string(data) != `{"id":"news-1"}` {
		t.Fatalf("data = %s", data)
	}
}

func TestDecodeEnvelopeRejectsMalformed(t *testing.T) {
	cases := [][]byte{
		[]byte("{not json"),
		[]byte(`{"data":{"id":"n1"}}`),
		[]byte(`{"channel":"all"}`),
	}
	for _, raw := range cases {
		if _, _, err := DecodeEnvelope(raw); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}
