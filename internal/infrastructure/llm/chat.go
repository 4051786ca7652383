// Package llm requests analyses through an OpenAI-compatible chat completions API.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"NewsStream/internal/config"
	"NewsStream/internal/domain"
	"NewsStream/internal/infrastructure/ml"
	"NewsStream/internal/ports"
)

const defaultSystem = "You are a financial analyst who reviews crypto and market news."

// ChatClient implements ports.Analyzer backed by a chat completions endpoint,
// such as vLLM's OpenAI-compatible server.
type ChatClient struct {
	client       *openai.Client
	configured   bool
	model        string
	label        string
	version      string
	systemPrompt string
	maxTokens    int
	temperature  float64
	logger       *slog.Logger
}

var _ ports.Analyzer = (*ChatClient)(nil)

// NewChatClient builds a client from configuration. Requests go to
// <endpoint>/v1/chat/completions and are not retried by the SDK.
func NewChatClient(cfg config.AnalysisConfig, logger *slog.Logger) *ChatClient {
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

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	client := ml.NewAPI(endpoint, cfg.APIKey, timeout)

	return &ChatClient{
		client:       &client,
		configured:   endpoint != "" && cfg.Model != "",
		model:        cfg.Model,
		label:        label,
		version:      cfg.Version,
		systemPrompt: defaultSystem,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		logger:       logger,
	}
}

// Analyze sends the finance prompt as a user message.
func (c *ChatClient) Analyze(ctx context.Context, article domain.Article) (*domain.AnalysisResult, error) {
	if c == nil {
		return nil, fmt.Errorf("chat client is nil")
	}
	if !c.configured {
		return nil, fmt.Errorf("chat client misconfigured")
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.systemPrompt),
			openai.UserMessage(ml.BuildPrompt(article)),
		},
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		c.logger.Error("chat analysis failed", "article_id", article.ID, "error", err)
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ml.ErrEmptyCompletion
	}

	return ml.NewResult(article, strings.TrimSpace(resp.Choices[0].Message.Content), c.label, c.version), nil
}
