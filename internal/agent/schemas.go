// Package agent hosts the per-market subscribers that evaluate tagged news
// against prediction-market questions.
package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/ArslanKamchybekov/trademaxxer/internal/news"
)

// ClassificationError marks a scoring failure; the listener drops the
// decision and keeps consuming.
type ClassificationError struct {
	Msg string
	Err error
}

func (e *ClassificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classification failed: %s: %v", e.Msg, e.Err)
	}
	return "classification failed: " + e.Msg
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// Market describes one prediction market an agent evaluates news against.
type Market struct {
	Address            string
	Question           string
	CurrentProbability float64
	Tags               []string
}

// Validate enforces the market invariants.
func (m Market) Validate() error {
	if m.Address == "" {
		return fmt.Errorf("market address must be non-empty")
	}
	if m.Question == "" {
		return fmt.Errorf("market question must be non-empty")
	}
	if m.CurrentProbability < 0 || m.CurrentProbability > 1 {
		return fmt.Errorf("current probability must be in [0, 1], got %v", m.CurrentProbability)
	}
	if len(m.Tags) == 0 {
		return fmt.Errorf("market must carry at least one tag")
	}
	return nil
}

// Story is the slimmed-down payload sent to the scorer: only what the
// classification needs.
type Story struct {
	ID        string    `json:"id"`
	Headline  string    `json:"headline"`
	Body      string    `json:"body"`
	Tags      []string  `json:"tags"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// StoryFromItem projects a tagged item onto the scorer payload.
func StoryFromItem(item *news.TaggedItem) Story {
	tags := make([]string, len(item.Categories))
	for i, c := range item.Categories {
		tags[i] = string(c)
	}
	return Story{
		ID:        item.ID,
		Headline:  item.Headline,
		Body:      item.Body,
		Tags:      tags,
		Source:    item.SourceHandle,
		Timestamp: item.Timestamp,
	}
}

// Decision actions.
const (
	ActionYes  = "YES"
	ActionNo   = "NO"
	ActionSkip = "SKIP"
)

// Decision is the scorer's verdict on one story against one market.
type Decision struct {
	Action        string  `json:"action"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
	MarketAddress string  `json:"marketAddress"`
	StoryID       string  `json:"storyId"`
	LatencyMs     float64 `json:"latencyMs"`
}

// Validate enforces the decision invariants.
func (d Decision) Validate() error {
	switch d.Action {
	case ActionYes, ActionNo, ActionSkip:
	default:
		return fmt.Errorf("action must be YES, NO, or SKIP, got %q", d.Action)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence must be in [0, 1], got %v", d.Confidence)
	}
	if d.MarketAddress == "" {
		return fmt.Errorf("market address must be non-empty")
	}
	if d.StoryID == "" {
		return fmt.Errorf("story id must be non-empty")
	}
	if d.LatencyMs < 0 {
		return fmt.Errorf("latency must be non-negative, got %v", d.LatencyMs)
	}
	return nil
}

// NormalizeAction extracts YES / NO / SKIP from a possibly verbose model
// answer ("MORE likely to resolve YES"). Returns false when no action can
// be read out.
func NormalizeAction(raw string) (string, bool) {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	switch upper {
	case ActionYes, ActionNo, ActionSkip:
		return upper, true
	}
	hasYes := strings.Contains(upper, "YES")
	hasNo := strings.Contains(upper, "NO")
	switch {
	case hasYes && !hasNo:
		return ActionYes, true
	case hasNo && !hasYes:
		return ActionNo, true
	case strings.Contains(upper, "SKIP"),
		strings.Contains(upper, "IRRELEVANT"),
		strings.Contains(upper, "AMBIGUOUS"):
		return ActionSkip, true
	}
	return "", false
}
