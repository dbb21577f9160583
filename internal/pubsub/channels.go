// Package pubsub implements the tag-indexed fan-out layer: channel naming,
// the in-memory bus, and the broker-backed transport binding.
package pubsub

import (
	"strings"

	"github.com/ArslanKamchybekov/trademaxxer/internal/news"
)

// Channel naming is fixed wire contract shared by every transport:
//
//	all                  every tagged item
//	urgency:{level}      e.g. urgency:breaking
//	category:{slug}      e.g. category:crypto
//	ticker:{SYMBOL}      e.g. ticker:BTC (always upper-cased)
const (
	ChannelAll = "all"

	// ChannelDecisions is the output stream agents publish onto. It is
	// never part of ChannelsFor, which keeps decision traffic out of the
	// news channels and prevents feedback loops.
	ChannelDecisions = "decisions"

	urgencyPrefix  = "urgency:"
	categoryPrefix = "category:"
	tickerPrefix   = "ticker:"
)

// UrgencyChannel returns the channel for an urgency level.
func UrgencyChannel(u news.Urgency) string { return urgencyPrefix + string(u) }

// CategoryChannel returns the channel for a category slug.
func CategoryChannel(c news.Category) string { return categoryPrefix + string(c) }

// TickerChannel returns the channel for a ticker symbol, upper-cased
// regardless of input case.
func TickerChannel(symbol string) string { return tickerPrefix + strings.ToUpper(symbol) }

// ChannelsFor maps a tagged item to every channel it belongs to: the global
// channel, exactly one urgency channel, one per category, and one per
// ticker. Pure, no side effects.
func ChannelsFor(item *news.TaggedItem) []string {
	channels := make([]string, 0, 2+len(item.Categories)+len(item.Tickers))
	channels = append(channels, ChannelAll, UrgencyChannel(item.Urgency))
	for _, cat := range item.Categories {
		channels = append(channels, CategoryChannel(cat))
	}
	for _, tk := range item.Tickers {
		channels = append(channels, TickerChannel(tk))
	}
	return channels
}
