package news

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireItem is the JSON shape shared by the websocket broadcast and the
// broker transport. Field names are camelCase to match the frontend wire
// format.
type wireItem struct {
	ID                string   `json:"id"`
	Timestamp         string   `json:"timestamp"`
	ReceivedAt        string   `json:"receivedAt"`
	Headline          string   `json:"headline"`
	Body              string   `json:"body"`
	SourceType        string   `json:"sourceType"`
	SourceHandle      string   `json:"sourceHandle"`
	SourceURL         string   `json:"sourceUrl"`
	SourceDescription string   `json:"sourceDescription"`
	SourceAvatar      string   `json:"sourceAvatar"`
	MediaURL          string   `json:"mediaUrl"`
	Tickers           []string `json:"tickers"`
	TickerReasons     []string `json:"tickerReasons"`
	Categories        []string `json:"categories"`
	HighlightedWords  []string `json:"highlightedWords"`
	Sentiment         string   `json:"sentiment"`
	SentimentScore    float64  `json:"sentimentScore"`
	Urgency           string   `json:"urgency"`
	UrgencyTags       []string `json:"urgencyTags"`
	IsHighlight       bool     `json:"isHighlight"`
	IsNarrative       bool     `json:"isNarrative"`
	EconomicEventType string   `json:"economicEventType"`
}

// MarshalWire encodes the item into the camelCase wire JSON.
func (t *TaggedItem) MarshalWire() ([]byte, error) {
	categories := make([]string, len(t.Categories))
	for i, c := range t.Categories {
		categories[i] = string(c)
	}
	w := wireItem{
		ID:                t.ID,
		Timestamp:         t.Timestamp.Format(time.RFC3339Nano),
		ReceivedAt:        t.ReceivedAt.Format(time.RFC3339Nano),
		Headline:          t.Headline,
		Body:              t.Body,
		SourceType:        string(t.SourceType),
		SourceHandle:      t.SourceHandle,
		SourceURL:         t.SourceURL,
		SourceDescription: t.SourceDescription,
		SourceAvatar:      t.SourceAvatar,
		MediaURL:          t.MediaURL,
		Tickers:           emptyIfNil(t.Tickers),
		TickerReasons:     emptyIfNil(t.TickerReasons),
		Categories:        categories,
		HighlightedWords:  emptyIfNil(t.Keywords),
		Sentiment:         string(t.Sentiment),
		SentimentScore:    t.SentimentScore,
		Urgency:           string(t.Urgency),
		UrgencyTags:       emptyIfNil(t.UrgencyTags),
		IsHighlight:       t.IsHighlight,
		IsNarrative:       t.IsNarrative,
		EconomicEventType: t.EconomicEventType,
	}
	return json.Marshal(w)
}

// UnmarshalWire decodes wire JSON back into a validated TaggedItem.
func UnmarshalWire(data []byte) (*TaggedItem, error) {
	var w wireItem
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode wire item: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
	if err != nil {
		return nil, &ValidationError{Field: "timestamp", Msg: err.Error()}
	}
	received, err := time.Parse(time.RFC3339Nano, w.ReceivedAt)
	if err != nil {
		return nil, &ValidationError{Field: "receivedAt", Msg: err.Error()}
	}
	categories := make([]Category, 0, len(w.Categories))
	for _, c := range w.Categories {
		if cat, ok := CategoryFromString(c); ok {
			categories = append(categories, cat)
		}
	}
	return NewTaggedItem(TaggedItem{
		ID:                w.ID,
		Timestamp:         ts,
		ReceivedAt:        received,
		Headline:          w.Headline,
		Body:              w.Body,
		SourceType:        SourceTypeFromString(w.SourceType),
		SourceHandle:      w.SourceHandle,
		SourceURL:         w.SourceURL,
		SourceDescription: w.SourceDescription,
		SourceAvatar:      w.SourceAvatar,
		MediaURL:          w.MediaURL,
		Tickers:           emptyIfNil(w.Tickers),
		TickerReasons:     emptyIfNil(w.TickerReasons),
		Categories:        categories,
		Keywords:          emptyIfNil(w.HighlightedWords),
		Sentiment:         SentimentFromString(w.Sentiment),
		SentimentScore:    w.SentimentScore,
		Urgency:           Urgency(w.Urgency),
		UrgencyTags:       emptyIfNil(w.UrgencyTags),
		IsHighlight:       w.IsHighlight,
		IsNarrative:       w.IsNarrative,
		EconomicEventType: w.EconomicEventType,
	})
}

func emptyIfNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
