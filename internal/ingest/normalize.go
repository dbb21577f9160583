package ingest

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ArslanKamchybekov/trademaxxer/internal/news"
)

// maxHeadlineLength caps extracted headlines before truncation kicks in.
const maxHeadlineLength = 280

var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// Record is the loose upstream frame shape. Every field except _id, text,
// and ts is optional; defaulting happens in Normalize so downstream code
// never deals with missing keys.
type Record struct {
	ID               string            `json:"_id"`
	Timestamp        string            `json:"ts"`
	Text             string            `json:"text"`
	NewsType         string            `json:"newsType"`
	TwitterHandle    string            `json:"tweeterHandle"`
	TelegramID       string            `json:"telegramId"`
	Link             string            `json:"link"`
	Description      string            `json:"description"`
	AvatarLink       string            `json:"avatarLink"`
	Image            string            `json:"img"`
	Coins            []string          `json:"coins"`
	CoinReasons      []json.RawMessage `json:"coinReasons"`
	FilterReasons    []string          `json:"filterReasons"`
	HighlightedWords []string          `json:"highlightedWords"`
	Tags             []string          `json:"tags"`
	IsHighlight      bool              `json:"isHighlight"`
	IsNarrative      bool              `json:"isNarrative"`
	EconomicEvent    string            `json:"eeType"`
}

// Normalize converts an upstream record into a validated RawItem. It fails
// with a field-naming ValidationError only on the required fields (_id,
// text, ts); recoverable shape issues are coerced.
func Normalize(rec Record) (*news.RawItem, error) {
	if rec.ID == "" {
		return nil, &news.ValidationError{Field: "_id", Msg: "missing required field"}
	}
	text := strings.TrimSpace(rec.Text)
	if text == "" {
		return nil, &news.ValidationError{Field: "text", Msg: "missing or empty required field"}
	}
	if rec.Timestamp == "" {
		return nil, &news.ValidationError{Field: "ts", Msg: "missing required field"}
	}

	ts, err := ParseTimestamp(rec.Timestamp)
	if err != nil {
		return nil, err
	}

	item := &news.RawItem{
		ID:                     rec.ID,
		Timestamp:              ts,
		Headline:               ExtractHeadline(text),
		Body:                   text,
		SourceType:             news.SourceTypeFromString(rec.NewsType),
		SourceHandle:           sourceHandle(rec),
		SourceDescription:      rec.Description,
		SourceURL:              rec.Link,
		SourceAvatar:           rec.AvatarLink,
		MediaURL:               rec.Image,
		PreTaggedTickers:       orEmpty(rec.Coins),
		TickerReasons:          coinReasonStrings(rec.CoinReasons),
		PreTaggedCategories:    orEmpty(rec.FilterReasons),
		PreHighlightedKeywords: orEmpty(rec.HighlightedWords),
		IsPriority:             rec.IsHighlight,
		IsNarrative:            rec.IsNarrative,
		UrgencyTags:            orEmpty(rec.Tags),
		EconomicEventType:      rec.EconomicEvent,
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

// ParseTimestamp accepts RFC 3339 with or without fractional seconds,
// including the "Z" Zulu suffix, and coerces zone-less values to UTC. The
// result is always zone-aware.
func ParseTimestamp(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, &news.ValidationError{Field: "ts", Msg: "invalid timestamp format: " + value}
}

// ExtractHeadline derives a display headline from full text: verbatim when
// short enough, the first sentence when one fits the limit, otherwise a hard
// truncation with an ellipsis marker. The limit counts runes, so multibyte
// text is never cut mid-character.
func ExtractHeadline(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= maxHeadlineLength {
		return text
	}
	if loc := sentenceEnd.FindStringIndex(text); loc != nil {
		first := strings.TrimSpace(text[:loc[1]])
		if utf8.RuneCountInString(first) <= maxHeadlineLength {
			return first
		}
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxHeadlineLength-3])) + "..."
}

func sourceHandle(rec Record) string {
	switch strings.ToLower(rec.NewsType) {
	case "twitter":
		return rec.TwitterHandle
	case "telegram":
		return rec.TelegramID
	default:
		return ""
	}
}

// coinReasonStrings flattens the upstream coinReasons array, whose entries
// may be plain strings or {"reason": ...} objects.
func coinReasonStrings(raws []json.RawMessage) []string {
	out := make([]string, 0, len(raws))
	for _, raw := range raws {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err == nil {
			if reason, ok := obj["reason"].(string); ok {
				out = append(out, reason)
				continue
			}
		}
		out = append(out, string(raw))
	}
	return out
}

func orEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
