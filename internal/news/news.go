// Package news defines the item models shared between ingestion, tagging,
// and fan-out layers.
package news

import (
	"fmt"
	"strings"
	"time"
)

// SourceType identifies the platform class a news item originated from.
type SourceType string

const (
	// SourceWire covers professional news wires.
	SourceWire SourceType = "wire"
	// SourceSocial covers social platforms (Twitter, Telegram).
	SourceSocial SourceType = "social"
	// SourceRSS covers syndicated RSS feeds.
	SourceRSS SourceType = "rss"
	// SourceOther is the fallback for unrecognized platforms.
	SourceOther SourceType = "other"
)

// SourceTypeFromString maps an upstream newsType value to a SourceType,
// defaulting to SourceOther.
func SourceTypeFromString(value string) SourceType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "news", "wire":
		return SourceWire
	case "twitter", "telegram", "social":
		return SourceSocial
	case "rss":
		return SourceRSS
	default:
		return SourceOther
	}
}

// Sentiment is the directional read on a news item.
type Sentiment string

const (
	// SentimentBullish marks positive market-moving news.
	SentimentBullish Sentiment = "bullish"
	// SentimentBearish marks negative market-moving news.
	SentimentBearish Sentiment = "bearish"
	// SentimentNeutral marks news with no clear direction.
	SentimentNeutral Sentiment = "neutral"
)

// SentimentFromString maps an analyzer label to a Sentiment, defaulting to
// neutral.
func SentimentFromString(value string) Sentiment {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "bullish":
		return SentimentBullish
	case "bearish":
		return SentimentBearish
	default:
		return SentimentNeutral
	}
}

// Urgency is a fixed-severity classification of a news item.
type Urgency string

const (
	// UrgencyBreaking is reserved for HOT-tagged items.
	UrgencyBreaking Urgency = "breaking"
	// UrgencyHigh covers priority-flagged or WARM-tagged items.
	UrgencyHigh Urgency = "high"
	// UrgencyNormal is the default.
	UrgencyNormal Urgency = "normal"
	// UrgencyLow covers routine or delayed items.
	UrgencyLow Urgency = "low"
)

// DeriveUrgency applies the fixed urgency policy: HOT tag means breaking,
// priority flag or WARM tag means high, everything else is normal.
func DeriveUrgency(urgencyTags []string, isPriority bool) Urgency {
	for _, tag := range urgencyTags {
		if tag == "HOT" {
			return UrgencyBreaking
		}
	}
	if isPriority {
		return UrgencyHigh
	}
	for _, tag := range urgencyTags {
		if tag == "WARM" {
			return UrgencyHigh
		}
	}
	return UrgencyNormal
}

// Category is a taxonomy value aligned with prediction-market event
// categories.
type Category string

const (
	CategoryPolitics    Category = "politics"
	CategorySports      Category = "sports"
	CategoryCulture     Category = "culture"
	CategoryCrypto      Category = "crypto"
	CategoryClimate     Category = "climate"
	CategoryEconomics   Category = "economics"
	CategoryMentions    Category = "mentions"
	CategoryCompanies   Category = "companies"
	CategoryFinancials  Category = "financials"
	CategoryTechScience Category = "tech_science"
)

var categoryAliases = map[string]Category{
	"macro":         CategoryEconomics,
	"economic_data": CategoryEconomics,
	"geopolitics":   CategoryPolitics,
	"regulation":    CategoryPolitics,
	"stocks":        CategoryFinancials,
	"earnings":      CategoryFinancials,
	"forex":         CategoryFinancials,
	"commodities":   CategoryFinancials,
	"tech":          CategoryTechScience,
	"science":       CategoryTechScience,
}

var knownCategories = map[Category]struct{}{
	CategoryPolitics:    {},
	CategorySports:      {},
	CategoryCulture:     {},
	CategoryCrypto:      {},
	CategoryClimate:     {},
	CategoryEconomics:   {},
	CategoryMentions:    {},
	CategoryCompanies:   {},
	CategoryFinancials:  {},
	CategoryTechScience: {},
}

// CategoryFromString maps an upstream category hint to a Category. Hints are
// lowercased and space/ampersand-normalized before lookup; unknown values
// return false.
func CategoryFromString(value string) (Category, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.ReplaceAll(v, " & ", "_")
	v = strings.ReplaceAll(v, " ", "_")
	if _, ok := knownCategories[Category(v)]; ok {
		return Category(v), true
	}
	if cat, ok := categoryAliases[v]; ok {
		return cat, true
	}
	return "", false
}

// ValidationError reports malformed item data and names the offending field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Msg)
}

// RawItem is a normalized news item as received from the feed, before
// tagging. Immutable after construction; hint fields carry the upstream
// pre-extracted metadata the tagger consumes.
type RawItem struct {
	ID        string
	Timestamp time.Time
	Headline  string
	Body      string

	SourceType        SourceType
	SourceHandle      string
	SourceDescription string
	SourceURL         string
	SourceAvatar      string
	MediaURL          string

	PreTaggedTickers       []string
	TickerReasons          []string
	PreTaggedCategories    []string
	PreHighlightedKeywords []string
	IsPriority             bool
	IsNarrative            bool
	UrgencyTags            []string
	EconomicEventType      string
}

// Validate checks the RawItem invariants: non-empty id and headline, and a
// set timestamp.
func (r *RawItem) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "id", Msg: "must be non-empty"}
	}
	if r.Headline == "" {
		return &ValidationError{Field: "headline", Msg: "must be non-empty"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Msg: "must be set"}
	}
	return nil
}

// TaggedItem is the fully enriched item produced by the tagger, ready for
// fan-out. Never mutated after construction.
type TaggedItem struct {
	ID         string
	Timestamp  time.Time
	ReceivedAt time.Time
	Headline   string
	Body       string

	SourceType        SourceType
	SourceHandle      string
	SourceDescription string
	SourceURL         string
	SourceAvatar      string
	MediaURL          string

	Tickers        []string
	TickerReasons  []string
	Categories     []Category
	Keywords       []string
	Sentiment      Sentiment
	SentimentScore float64
	Urgency        Urgency

	UrgencyTags       []string
	IsHighlight       bool
	IsNarrative       bool
	EconomicEventType string
}

// NewTaggedItem validates and returns the item. SentimentScore outside
// [-1, 1] or a missing id is a hard validation failure.
func NewTaggedItem(item TaggedItem) (*TaggedItem, error) {
	if item.ID == "" {
		return nil, &ValidationError{Field: "id", Msg: "must be non-empty"}
	}
	if item.SentimentScore < -1.0 || item.SentimentScore > 1.0 {
		return nil, &ValidationError{
			Field: "sentimentScore",
			Msg:   fmt.Sprintf("must be in [-1.0, 1.0], got %v", item.SentimentScore),
		}
	}
	return &item, nil
}
