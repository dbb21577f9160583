package tagger

import (
	"math"
	"strings"

	"github.com/ArslanKamchybekov/trademaxxer/internal/news"
)

// Analyzer scores raw text for market sentiment. Implementations are
// swappable; the tagger only sees the label and a score in [-1, 1].
type Analyzer interface {
	Analyze(text string) (news.Sentiment, float64)
}

// lexicon entries pair a phrase with a directional weight. Multi-word
// phrases are matched as substrings of the lowercased text; single words
// on token boundaries.
var bullishSignals = map[string]float64{
	"beats expectations": 0.8,
	"beat expectations":  0.8,
	"rate cut":           0.7,
	"record high":        0.7,
	"all-time high":      0.7,
	"approved":           0.5,
	"approval":           0.5,
	"surge":              0.6,
	"surges":             0.6,
	"soars":              0.6,
	"rally":              0.5,
	"rallies":            0.5,
	"jumps":              0.5,
	"gains":              0.4,
	"bullish":            0.6,
	"upgrade":            0.5,
	"upgraded":           0.5,
	"partnership":        0.3,
	"adoption":           0.4,
	"inflows":            0.4,
	"stimulus":           0.5,
	"dovish":             0.5,
}

var bearishSignals = map[string]float64{
	"misses expectations": -0.8,
	"missed expectations": -0.8,
	"rate hike":           -0.6,
	"record low":          -0.6,
	"plunge":              -0.7,
	"plunges":             -0.7,
	"crash":               -0.8,
	"crashes":             -0.8,
	"tumbles":             -0.6,
	"slumps":              -0.6,
	"falls":               -0.4,
	"drops":               -0.4,
	"bearish":             -0.6,
	"downgrade":           -0.5,
	"downgraded":          -0.5,
	"lawsuit":             -0.4,
	"hack":                -0.7,
	"hacked":              -0.7,
	"exploit":             -0.6,
	"bankruptcy":          -0.8,
	"default":             -0.5,
	"recession":           -0.6,
	"sanctions":           -0.4,
	"hawkish":             -0.5,
	"sell-off":            -0.6,
	"selloff":             -0.6,
}

// thresholds for mapping a score to a label.
const labelThreshold = 0.15

// LexiconAnalyzer is the default sentiment collaborator: a financial
// phrase lexicon with weighted matches squashed into [-1, 1].
type LexiconAnalyzer struct{}

// NewLexiconAnalyzer returns the default analyzer.
func NewLexiconAnalyzer() *LexiconAnalyzer { return &LexiconAnalyzer{} }

// Analyze scores the text. Neutral with score 0 when nothing matches.
func (a *LexiconAnalyzer) Analyze(text string) (news.Sentiment, float64) {
	lower := strings.ToLower(text)

	var total float64
	for phrase, weight := range bullishSignals {
		if matches(lower, phrase) {
			total += weight
		}
	}
	for phrase, weight := range bearishSignals {
		if matches(lower, phrase) {
			total += weight
		}
	}

	score := math.Tanh(total)
	switch {
	case score >= labelThreshold:
		return news.SentimentBullish, score
	case score <= -labelThreshold:
		return news.SentimentBearish, score
	default:
		return news.SentimentNeutral, score
	}
}

func matches(lower, phrase string) bool {
	if strings.ContainsAny(phrase, " -") {
		return strings.Contains(lower, phrase)
	}
	for rest := lower; ; {
		idx := strings.Index(rest, phrase)
		if idx < 0 {
			return false
		}
		before := idx == 0 || !isWordChar(rest[idx-1])
		afterIdx := idx + len(phrase)
		after := afterIdx >= len(rest) || !isWordChar(rest[afterIdx])
		if before && after {
			return true
		}
		rest = rest[idx+1:]
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
