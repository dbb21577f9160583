package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// Scorer classifies one story against one market. Implementations are
// selected at startup and injected into listeners.
type Scorer interface {
	Score(ctx context.Context, story Story, market Market) (Decision, error)
}

const (
	defaultScoreTimeout = 2 * time.Second
	scoreMaxRetries     = 1
	scoreTemperature    = 0.1
	scoreMaxTokens      = 64
)

const systemPrompt = `You are a prediction-market analyst. Given a news story and a market question, answer with a JSON object:
{"action": "YES"|"NO"|"SKIP", "p": <probability the market resolves YES, 0-100>, "reasoning": "<one sentence>"}
Answer SKIP when the story is irrelevant or ambiguous for the question.`

// ScorerConfig carries the LLM connection settings.
type ScorerConfig struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// OpenAIScorer calls an OpenAI-compatible chat endpoint. One retry on
// transient failures (rate limit, timeout, 5xx); malformed output is a
// permanent ClassificationError.
type OpenAIScorer struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

// NewOpenAIScorer builds the scorer from config.
func NewOpenAIScorer(cfg ScorerConfig, log zerolog.Logger) *OpenAIScorer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultScoreTimeout
	}
	return &OpenAIScorer{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		timeout: timeout,
		log:     log,
	}
}

type scorerReply struct {
	Action    string   `json:"action"`
	P         *float64 `json:"p"`
	Theo      *float64 `json:"theo"`
	Reasoning string   `json:"reasoning"`
}

// Score runs the classification with a hard timeout per attempt.
func (s *OpenAIScorer) Score(ctx context.Context, story Story, market Market) (Decision, error) {
	userPrompt := fmt.Sprintf(
		"Market question: %s\nCurrent probability: %.2f\n\nHeadline: %s\nBody: %s",
		market.Question, market.CurrentProbability, story.Headline, story.Body,
	)

	var lastErr error
	for attempt := 0; attempt <= scoreMaxRetries; attempt++ {
		started := time.Now()
		reply, err := s.complete(ctx, userPrompt)
		if err != nil {
			if transient(err) && attempt < scoreMaxRetries {
				lastErr = err
				s.log.Warn().Err(err).Int("attempt", attempt+1).Msg("transient scoring error, retrying")
				continue
			}
			return Decision{}, &ClassificationError{Msg: "llm request failed", Err: err}
		}
		return s.parse(reply, story, market, time.Since(started))
	}
	return Decision{}, &ClassificationError{Msg: "llm request failed after retry", Err: lastErr}
}

func (s *OpenAIScorer) complete(ctx context.Context, userPrompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: scoreTemperature,
		MaxTokens:   scoreMaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from llm")
	}
	return resp.Choices[0].Message.Content, nil
}

// parse turns the model reply into a validated Decision. JSON decode
// failure or an unreadable action is permanent, never retried.
func (s *OpenAIScorer) parse(content string, story Story, market Market, elapsed time.Duration) (Decision, error) {
	var reply scorerReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &reply); err != nil {
		return Decision{}, &ClassificationError{Msg: "llm returned invalid json", Err: err}
	}

	action, ok := NormalizeAction(reply.Action)
	if !ok {
		return Decision{}, &ClassificationError{
			Msg: fmt.Sprintf("could not parse action from llm response: %q", reply.Action),
		}
	}

	confidence := 0.5
	raw := reply.P
	if raw == nil {
		raw = reply.Theo
	}
	if raw != nil {
		p := *raw
		if p > 1.0 {
			p /= 100.0
		}
		confidence = clamp(p, 0.01, 0.99)
	}

	decision := Decision{
		Action:        action,
		Confidence:    confidence,
		Reasoning:     reply.Reasoning,
		MarketAddress: market.Address,
		StoryID:       story.ID,
		LatencyMs:     float64(elapsed.Milliseconds()),
	}
	if err := decision.Validate(); err != nil {
		return Decision{}, &ClassificationError{Msg: "llm produced invalid decision", Err: err}
	}
	return decision, nil
}

// transient reports whether the failure is worth one retry: rate limits,
// timeouts, and 5xx responses.
func transient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
