// Package tagger enriches normalized news items with tickers, categories,
// sentiment, keywords, and urgency.
package tagger

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ArslanKamchybekov/trademaxxer/internal/metrics"
	"github.com/ArslanKamchybekov/trademaxxer/internal/news"
)

const (
	maxTickers  = 20
	maxKeywords = 10
)

// TaggingError wraps any tagging sub-step failure. Callers drop the item
// and keep the pipeline running.
type TaggingError struct {
	NewsID string
	Err    error
}

func (e *TaggingError) Error() string {
	return fmt.Sprintf("failed to tag news %s: %v", e.NewsID, e.Err)
}

func (e *TaggingError) Unwrap() error { return e.Err }

// cryptoTickers backs the category fallback: any hinted ticker in this set
// marks the item as crypto when nothing else matched.
var cryptoTickers = map[string]struct{}{
	"BTC": {}, "ETH": {}, "SOL": {}, "XRP": {}, "DOGE": {}, "ADA": {},
	"DOT": {}, "AVAX": {}, "LINK": {}, "MATIC": {}, "UNI": {}, "ATOM": {},
	"LTC": {}, "BCH": {}, "XLM": {},
}

// categoryKeywords drive the headline-scan fallback when no upstream hints
// produce a category.
var categoryKeywords = map[news.Category][]string{
	news.CategoryPolitics: {
		"election", "president", "congress", "senate", "trump", "biden",
		"sanctions", "war", "military", "nato", "ceasefire",
	},
	news.CategoryEconomics: {
		"fed ", "inflation", "cpi", "gdp", "unemployment", "rate cut",
		"rate hike", "fomc", "recession", "tariff", "jobs report",
	},
	news.CategoryCrypto: {
		"bitcoin", "btc", "ethereum", "eth", "crypto", "solana",
		"stablecoin", "defi",
	},
	news.CategoryFinancials: {
		"s&p", "dow", "nasdaq", "earnings", "stock", "bond", "yield",
		"oil", "gold", "crude",
	},
	news.CategoryCompanies: {
		"apple", "google", "microsoft", "amazon", "tesla", "nvidia",
		"meta", "openai",
	},
	news.CategoryTechScience: {
		" ai ", "artificial intelligence", "quantum", "semiconductor",
		"fda", "vaccine", "launch",
	},
	news.CategoryClimate: {
		"climate", "hurricane", "wildfire", "emission", "drought",
	},
}

// Stats holds tagger counters. Read via Tagger.Stats.
type Stats struct {
	ItemsTagged int64
	ItemsFailed int64
	HintsUsed   int64
}

// Config controls tagger behavior.
type Config struct {
	// UseHints enables upstream pre-tagged data (tickers, categories,
	// keywords) as the primary signal.
	UseHints bool
}

// Tagger transforms RawItems into immutable TaggedItems.
type Tagger struct {
	cfg      Config
	analyzer Analyzer
	log      zerolog.Logger

	tagged    atomic.Int64
	failed    atomic.Int64
	hintsUsed atomic.Int64
}

// New builds a Tagger. A nil analyzer falls back to the lexicon analyzer.
func New(cfg Config, analyzer Analyzer, log zerolog.Logger) *Tagger {
	if analyzer == nil {
		analyzer = NewLexiconAnalyzer()
	}
	return &Tagger{cfg: cfg, analyzer: analyzer, log: log}
}

// Stats returns a snapshot of the counters.
func (t *Tagger) Stats() Stats {
	return Stats{
		ItemsTagged: t.tagged.Load(),
		ItemsFailed: t.failed.Load(),
		HintsUsed:   t.hintsUsed.Load(),
	}
}

// Tag runs the full pipeline on one item. Any sub-step failure (including a
// panicking analyzer) surfaces as a single TaggingError; partial results are
// never returned.
func (t *Tagger) Tag(raw *news.RawItem) (item *news.TaggedItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tagging panic: %v", r)
		}
		if err != nil {
			t.failed.Add(1)
			metrics.TaggingFailures.Inc()
			err = &TaggingError{NewsID: raw.ID, Err: err}
		}
	}()

	tickers := t.extractTickers(raw)
	categories := t.classifyCategories(raw)
	sentiment, score := t.analyzeSentiment(raw)
	keywords := t.extractKeywords(raw)
	urgency := news.DeriveUrgency(raw.UrgencyTags, raw.IsPriority)

	item, err = news.NewTaggedItem(news.TaggedItem{
		ID:                raw.ID,
		Timestamp:         raw.Timestamp,
		ReceivedAt:        time.Now().UTC(),
		Headline:          raw.Headline,
		Body:              raw.Body,
		SourceType:        raw.SourceType,
		SourceHandle:      raw.SourceHandle,
		SourceDescription: raw.SourceDescription,
		SourceURL:         raw.SourceURL,
		SourceAvatar:      raw.SourceAvatar,
		MediaURL:          raw.MediaURL,
		Tickers:           tickers,
		TickerReasons:     raw.TickerReasons,
		Categories:        categories,
		Keywords:          keywords,
		Sentiment:         sentiment,
		SentimentScore:    score,
		Urgency:           urgency,
		UrgencyTags:       raw.UrgencyTags,
		IsHighlight:       raw.IsPriority,
		IsNarrative:       raw.IsNarrative,
		EconomicEventType: raw.EconomicEventType,
	})
	if err != nil {
		return nil, err
	}

	t.tagged.Add(1)
	metrics.ItemsTagged.Inc()
	return item, nil
}

// extractTickers dedups, upper-cases, sorts, and caps the hinted tickers.
func (t *Tagger) extractTickers(raw *news.RawItem) []string {
	unique := make(map[string]struct{})
	if t.cfg.UseHints && len(raw.PreTaggedTickers) > 0 {
		for _, tk := range raw.PreTaggedTickers {
			tk = strings.ToUpper(strings.TrimSpace(tk))
			if tk != "" {
				unique[tk] = struct{}{}
			}
		}
		t.hintsUsed.Add(1)
	}

	tickers := make([]string, 0, len(unique))
	for tk := range unique {
		tickers = append(tickers, tk)
	}
	sort.Strings(tickers)
	if len(tickers) > maxTickers {
		t.log.Warn().Str("news_id", raw.ID).Int("count", len(tickers)).
			Msgf("truncating tickers to %d", maxTickers)
		tickers = tickers[:maxTickers]
	}
	return tickers
}

// classifyCategories prefers upstream hints through the alias table, then
// the economic-event flag, then a headline keyword scan, then the
// crypto-ticker fallback.
func (t *Tagger) classifyCategories(raw *news.RawItem) []news.Category {
	unique := make(map[news.Category]struct{})

	if t.cfg.UseHints {
		for _, hint := range raw.PreTaggedCategories {
			if cat, ok := news.CategoryFromString(hint); ok {
				unique[cat] = struct{}{}
			}
		}
	}

	if raw.EconomicEventType != "" {
		unique[news.CategoryEconomics] = struct{}{}
	}

	if len(unique) == 0 {
		lower := strings.ToLower(raw.Headline)
		for cat, words := range categoryKeywords {
			for _, w := range words {
				if strings.Contains(lower, w) {
					unique[cat] = struct{}{}
					break
				}
			}
		}
	}

	if len(unique) == 0 {
		for _, tk := range raw.PreTaggedTickers {
			if _, ok := cryptoTickers[strings.ToUpper(tk)]; ok {
				unique[news.CategoryCrypto] = struct{}{}
				break
			}
		}
	}

	categories := make([]news.Category, 0, len(unique))
	for cat := range unique {
		categories = append(categories, cat)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	return categories
}

func (t *Tagger) analyzeSentiment(raw *news.RawItem) (news.Sentiment, float64) {
	text := raw.Headline
	if raw.Body != "" && raw.Body != raw.Headline {
		text = text + " " + raw.Body
	}
	return t.analyzer.Analyze(text)
}

// extractKeywords sorts and caps the hinted highlight words.
func (t *Tagger) extractKeywords(raw *news.RawItem) []string {
	unique := make(map[string]struct{})
	if t.cfg.UseHints {
		for _, kw := range raw.PreHighlightedKeywords {
			if kw = strings.TrimSpace(kw); kw != "" {
				unique[kw] = struct{}{}
			}
		}
	}
	keywords := make([]string, 0, len(unique))
	for kw := range unique {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)
	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}
	return keywords
}
