// Package ai wraps the Anthropic API behind the two narrow contracts the
// pipeline needs: text sentiment classification and structured-JSON analysis.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/fhagen/clientpulse/internal/util"
)

const (
	// ModelClassify is the cost-efficient model used for per-message
	// sentiment classification
	ModelClassify = "claude-3-5-haiku-20241022"

	// ModelAnalyze is the model used for structured client-risk analysis
	ModelAnalyze = "claude-sonnet-4-5-20250929"

	// DefaultTimeout bounds a single API call
	DefaultTimeout = 60 * time.Second
)

// Classification is the strict response contract for ClassifyText
type Classification struct {
	Score      float64 `json:"score"`      // signed polarity in [-1, 1]
	Label      string  `json:"label"`      // positive | neutral | negative
	Confidence float64 `json:"confidence"` // classifier certainty in [0, 1]
}

// Client calls the Anthropic API
type Client struct {
	client  *anthropic.Client
	timeout time.Duration
}

// NewClient creates an AI client with the given API key
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing AI API key", util.ErrInvalidConfig)
	}

	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Client{client: &c, timeout: DefaultTimeout}, nil
}

const classifyPrompt = `Classify the sentiment of the following client message.

Respond with ONLY a JSON object, no other text:
{"score": <number between -1 and 1>, "label": "<positive|neutral|negative>", "confidence": <number between 0 and 1>}

The sign of score must match the label: positive label means positive score,
negative label means negative score, neutral means near zero.

Message:
%s`

// ClassifyText classifies a unit of text and returns a structured result.
// Input is truncated to keep prompts bounded; malformed responses return
// util.ErrMalformedResponse.
func (c *Client) ClassifyText(ctx context.Context, text string) (*Classification, error) {
	const maxInput = 2000
	if len(text) > maxInput {
		text = text[:maxInput]
	}

	responseText, err := c.complete(ctx, ModelClassify, fmt.Sprintf(classifyPrompt, text))
	if err != nil {
		return nil, err
	}

	raw, err := ExtractJSON(responseText)
	if err != nil {
		util.WarnLog("AI: malformed classification response: %q", truncate(responseText, 200))
		return nil, fmt.Errorf("%w: %v", util.ErrMalformedResponse, err)
	}

	var result Classification
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrMalformedResponse, err)
	}
	if err := result.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrMalformedResponse, err)
	}

	return &result, nil
}

// Analyze sends a structured-analysis prompt and returns the JSON object or
// array extracted from the response. Any schema decisions are the caller's;
// this layer only guarantees syntactically valid JSON or an error.
func (c *Client) Analyze(ctx context.Context, prompt string) (json.RawMessage, error) {
	responseText, err := c.complete(ctx, ModelAnalyze, prompt)
	if err != nil {
		return nil, err
	}

	raw, err := ExtractJSON(responseText)
	if err != nil {
		util.WarnLog("AI: malformed analysis response: %q", truncate(responseText, 200))
		return nil, fmt.Errorf("%w: %v", util.ErrMalformedResponse, err)
	}

	return raw, nil
}

func (c *Client) complete(ctx context.Context, model, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Transient API failures are retried with backoff inside the timeout
	response, err := util.RetryWithBackoff(util.NetworkRetryConfig(), func() (*anthropic.Message, error) {
		return c.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: 4096,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
	}, "ai completion")
	if err != nil {
		return "", fmt.Errorf("failed to call AI service: %w", err)
	}

	var sb strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func (r *Classification) validate() error {
	if r.Score < -1 || r.Score > 1 {
		return fmt.Errorf("score %f out of range", r.Score)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %f out of range", r.Confidence)
	}
	switch strings.ToLower(r.Label) {
	case "positive", "neutral", "negative":
		r.Label = strings.ToLower(r.Label)
	default:
		return fmt.Errorf("unknown label %q", r.Label)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
