package agent

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/ArslanKamchybekov/trademaxxer/internal/metrics"
	"github.com/ArslanKamchybekov/trademaxxer/internal/news"
	"github.com/ArslanKamchybekov/trademaxxer/internal/pubsub"
)

// DecisionRecord is what a listener publishes on the decisions channel:
// the decision plus enough context for downstream display.
type DecisionRecord struct {
	Decision
	Headline       string `json:"headline"`
	MarketQuestion string `json:"marketQuestion"`
}

// ListenerStats counts one listener's activity.
type ListenerStats struct {
	StoriesReceived int64
	DecisionsYes    int64
	DecisionsNo     int64
	DecisionsSkip   int64
	Errors          int64
}

// Listener subscribes to the tag channels matching its market and scores
// every arriving story. One instance per market; all run independently.
type Listener struct {
	market Market
	scorer Scorer
	bus    *pubsub.Bus
	log    zerolog.Logger

	sub *pubsub.Subscription

	received atomic.Int64
	yes      atomic.Int64
	no       atomic.Int64
	skip     atomic.Int64
	errs     atomic.Int64
}

// NewListener validates the market and builds a listener.
func NewListener(market Market, scorer Scorer, bus *pubsub.Bus, log zerolog.Logger) (*Listener, error) {
	if err := market.Validate(); err != nil {
		return nil, err
	}
	return &Listener{
		market: market,
		scorer: scorer,
		bus:    bus,
		log:    log.With().Str("market", shortAddr(market.Address)).Logger(),
	}, nil
}

// Market returns the market this listener evaluates against.
func (l *Listener) Market() Market { return l.market }

// Channels returns the input channels the listener subscribes to: the
// global channel plus one category channel per market tag.
func (l *Listener) Channels() []string {
	channels := []string{pubsub.ChannelAll}
	seen := map[string]struct{}{pubsub.ChannelAll: {}}
	for _, tag := range l.market.Tags {
		if cat, ok := news.CategoryFromString(tag); ok {
			ch := pubsub.CategoryChannel(cat)
			if _, dup := seen[ch]; !dup {
				seen[ch] = struct{}{}
				channels = append(channels, ch)
			}
		}
	}
	return channels
}

// Start registers the listener on the bus. The bus dedups per publish, so
// overlapping channels never double-deliver a story.
func (l *Listener) Start() {
	channels := l.Channels()
	l.sub = l.bus.Subscribe(l.onPayload, channels...)
	l.log.Info().Strs("channels", channels).Str("question", l.market.Question).Msg("agent listening")
}

// Stop removes the bus subscription.
func (l *Listener) Stop() {
	if l.sub != nil {
		l.bus.Unsubscribe(l.sub)
		l.sub = nil
	}
}

// Stats returns a snapshot of the counters.
func (l *Listener) Stats() ListenerStats {
	return ListenerStats{
		StoriesReceived: l.received.Load(),
		DecisionsYes:    l.yes.Load(),
		DecisionsNo:     l.no.Load(),
		DecisionsSkip:   l.skip.Load(),
		Errors:          l.errs.Load(),
	}
}

func (l *Listener) onPayload(ctx context.Context, payload any) {
	item, ok := payload.(*news.TaggedItem)
	if !ok {
		return
	}
	l.received.Add(1)

	story := StoryFromItem(item)
	decision, err := l.scorer.Score(ctx, story, l.market)
	if err != nil {
		l.errs.Add(1)
		l.log.Error().Err(err).Str("news_id", story.ID).Msg("scoring failed, dropping decision")
		return
	}

	switch decision.Action {
	case ActionYes:
		l.yes.Add(1)
	case ActionNo:
		l.no.Add(1)
	default:
		l.skip.Add(1)
	}
	metrics.DecisionsTotal.WithLabelValues(decision.Action).Inc()

	l.log.Info().
		Str("action", decision.Action).
		Float64("confidence", decision.Confidence).
		Float64("latency_ms", decision.LatencyMs).
		Str("headline", truncate(story.Headline, 60)).
		Msg("decision")

	record := &DecisionRecord{
		Decision:       decision,
		Headline:       story.Headline,
		MarketQuestion: l.market.Question,
	}
	l.bus.Publish(ctx, []string{pubsub.ChannelDecisions}, record)
}

func shortAddr(addr string) string { return truncate(addr, 16) }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
