package news

import (
	"strings"
	"testing"
	"time"
)

func TestWireRoundTrip(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 30, 0, 123456789, time.UTC)
	orig, err := NewTaggedItem(TaggedItem{
		ID:             "news-1",
		Timestamp:      ts,
		ReceivedAt:     ts.Add(50 * time.Millisecond),
		Headline:       "Bitcoin surges past $100k",
		Body:           "Bitcoin surges past $100k on ETF inflows.",
		SourceType:     SourceWire,
		Tickers:        []string{"BTC"},
		TickerReasons:  []string{"mentioned"},
		Categories:     []Category{CategoryCrypto, CategoryFinancials},
		Keywords:       []string{"bitcoin", "etf"},
		Sentiment:      SentimentBullish,
		SentimentScore: 0.62,
		Urgency:        UrgencyHigh,
		UrgencyTags:    []string{"WARM"},
	})
	if err != nil {
		t.Fatalf("build item: %v", err)
	}

	data, err := orig.MarshalWire()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"sentimentScore"`, `"highlightedWords"`, `"isHighlight"`, `"economicEventType"`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("wire json missing %s: %s", key, data)
		}
	}

	got, err := UnmarshalWire(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != orig.ID || got.Headline != orig.Headline {
		t.Fatalf("identity fields changed: %+v", got)
	}
	if !got.Timestamp.Equal(orig.Timestamp) {
		t.Fatalf("timestamp changed: %v != %v", got.Timestamp, orig.Timestamp)
	}
	if got.Sentiment != SentimentBullish || got.SentimentScore != 0.62 {
		t.Fatalf("sentiment changed: %s %.2f", got.Sentiment, got.SentimentScore)
	}
	if got.Urgency != UrgencyHigh {
		t.Fatalf("urgency changed: %s", got.Urgency)
	}
	if len(got.Categories) != 2 || got.Categories[0] != CategoryCrypto {
		t.Fatalf("categories changed: %+v", got.Categories)
	}
	if len(got.Keywords) != 2 || got.Keywords[0] != "bitcoin" {
		t.Fatalf("keywords changed: %+v", got.Keywords)
	}
}

func TestUnmarshalWireRejectsBadInput(t *testing.T) {
	if _, err := UnmarshalWire([]byte("{not json")); err == nil {
		t.Fatalf("expected error for invalid json")
	}
	if _, err := UnmarshalWire([]byte(`{"id":"n1","timestamp":"not-a-time","receivedAt":"also-not"}`)); err == nil {
		t.Fatalf("expected error for invalid timestamp")
	}
	if _, err := UnmarshalWire([]byte(`{"timestamp":"2025-06-01T00:00:00Z","receivedAt":"2025-06-01T00:00:00Z"}`)); err == nil {
		t.Fatalf("expected error for missing id")
	}
}
