package openai

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kaabil/faqbot/internal/domain"
	"github.com/kaabil/faqbot/internal/metrics"
)

// ChatClient obtains grounded completions from the remote chat endpoint.
type ChatClient struct {
	client *openai.Client
	model  string
	hasKey bool
	logger *zap.Logger
}

// NewChatClient creates a chat-completion client.
func NewChatClient(cfg *Config) *ChatClient {
	return &ChatClient{
		client: newClient(cfg),
		model:  cfg.Model,
		hasKey: cfg.APIKey != "",
		logger: loggerOrNop(cfg.Logger),
	}
}

// Model returns the configured chat model name.
func (c *ChatClient) Model() string { return c.model }

// Complete sends the two-message prompt and returns the completion text,
// trimmed. Config and remote failures map to the sentinel taxonomy; there
// are no retries.
func (c *ChatClient) Complete(ctx context.Context, system, user string) (string, error) {
	if !c.hasKey {
		return "", domain.ErrMissingAPIKey
	}

	req := buildChatRequest(c.model, system, user)

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", parseAPIError("completion", err, domain.ErrCompletionProvider)
	}

	if len(resp.Choices) == 0 {
		metrics.CompletionRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", fmt.Errorf("completion response has no choices: %w", domain.ErrProtocol)
	}

	metrics.CompletionRequestsTotal.WithLabelValues(c.model, "success").Inc()
	metrics.CompletionRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())

	c.logger.Debug("completion request completed",
		zap.String("model", c.model),
		zap.Duration("duration", duration),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// buildChatRequest assembles the request. Reasoning-tier nano models reject
// sampling-control parameters, so they get none; every other model is
// pinned to temperature 0 for deterministic answers.
func buildChatRequest(model, system, user string) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if !strings.Contains(strings.ToLower(model), "gpt-5-nano") {
		// The client omits a zero temperature from the wire payload, so an
		// explicit 0 needs the smallest non-zero stand-in.
		req.Temperature = math.SmallestNonzeroFloat32
	}
	return req
}
