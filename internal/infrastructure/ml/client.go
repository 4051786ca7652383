// Package ml talks to an OpenAI-compatible text completions endpoint such as vLLM.
package ml

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"NewsStream/internal/config"
	"NewsStream/internal/domain"
	"NewsStream/internal/ports"
)

// ErrEmptyCompletion is returned when the backend answers without choices.
var ErrEmptyCompletion = errors.New("completion has no choices")

// Client requests article analyses from a /v1/completions endpoint.
type Client struct {
	api         *openai.Client
	model       string
	label       string
	version     string
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

var _ ports.Analyzer = (*Client)(nil)

// NewClient creates a reusable client from configuration. The SDK's own
// retries are disabled.
func NewClient(cfg config.AnalysisConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	label := cfg.ModelLabel
	if label == "" {
		label = cfg.Model
	}
	api := NewAPI(cfg.Endpoint, cfg.APIKey, timeout)
	return &Client{
		api:         &api,
		model:       cfg.Model,
		label:       label,
		version:     cfg.Version,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

// NewAPI builds an OpenAI SDK client rooted at <endpoint>/v1/.
func NewAPI(endpoint, apiKey string, timeout time.Duration) openai.Client {
	opts := []option.RequestOption{
		option.WithBaseURL(strings.TrimRight(endpoint, "/") + "/v1/"),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(0),
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return openai.NewClient(opts...)
}

// Analyze sends the finance prompt for article and returns the generated text.
func (c *Client) Analyze(ctx context.Context, article domain.Article) (*domain.AnalysisResult, error) {
	params := openai.CompletionNewParams{
		Model:       openai.CompletionNewParamsModel(c.model),
		Prompt:      openai.CompletionNewParamsPromptUnion{OfString: openai.String(BuildPrompt(article))},
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}

	resp, err := c.api.Completions.New(ctx, params)
	if err != nil {
		c.logger.Error("analysis request failed", "article_id", article.ID, "error", err)
		return nil, fmt.Errorf("completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}

	return NewResult(article, resp.Choices[0].Text, c.label, c.version), nil
}
