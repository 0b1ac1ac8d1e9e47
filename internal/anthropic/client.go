// Package anthropic adapts the Claude Messages API to the narrative
// provider interface.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultModel = "claude-sonnet-4-20250514"

	defaultMaxTokens   = 2048
	defaultTemperature = 0.3
)

type Config struct {
	APIKey     string
	Model      string
	BaseURL    string // empty uses the public API
	MaxRetries int
}

type Client struct {
	api    anthropic.Client
	model  string
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(120 * time.Second),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		api:    anthropic.NewClient(opts...),
		model:  model,
		logger: logger,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// Complete sends a single-turn prompt and returns the concatenated text blocks.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   defaultMaxTokens,
		Temperature: anthropic.Float(defaultTemperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	start := time.Now()
	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("api error %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("api call: %w", err)
	}

	c.logger.Debug("anthropic completion",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"input_tokens", msg.Usage.InputTokens,
		"output_tokens", msg.Usage.OutputTokens,
		"stop_reason", msg.StopReason,
	)

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty response content")
	}
	return sb.String(), nil
}
