package ai

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/site-autopilot/internal/config"
	"github.com/site-autopilot/pkg/errors"
	"github.com/site-autopilot/pkg/logger"
	"github.com/site-autopilot/pkg/ratelimit"
)

// Completer is the single call the suggestion helpers need from a model
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// Client wraps the Anthropic SDK client
type Client struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float64
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// NewClient creates a new Anthropic client. Extra options are appended after
// the key and base URL (tests pass option.WithHTTPClient).
func NewClient(cfg config.AnthropicConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger, opts ...option.RequestOption) *Client {
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)

	return &Client{
		client:      anthropic.NewClient(reqOpts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		rateLimiter: limiter,
		log:         log.WithComponent("ai"),
	}
}

// Complete sends a message to Claude and returns the concatenated text blocks
func (c *Client) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterAnthropic); err != nil {
			return "", errors.Wrap(err, "rate limit")
		}
	}

	c.log.Debug().
		Str("model", c.model).
		Int("max_tokens", c.maxTokens).
		Msg("Sending request to Claude")

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(c.maxTokens),
		Temperature: anthropic.Float(c.temperature),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)),
		},
	})
	if err != nil {
		c.log.Error().Err(err).Msg("Claude API error")
		return "", errors.Wrap(err, "claude API error")
	}

	var response strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}

	c.log.Debug().
		Int64("input_tokens", message.Usage.InputTokens).
		Int64("output_tokens", message.Usage.OutputTokens).
		Msg("Received Claude response")

	return response.String(), nil
}

// CompleteWithJSON sends a message and expects a JSON response
func (c *Client) CompleteWithJSON(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	return c.Complete(ctx, systemPrompt+jsonOnlyInstruction, userMessage)
}

const jsonOnlyInstruction = "\n\nIMPORTANT: Respond ONLY with valid JSON. No markdown, no explanation, just the JSON object."

var _ Completer = (*Client)(nil)
