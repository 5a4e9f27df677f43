// Package ai wraps the chat completion API used for alert summaries. The
// client speaks the OpenAI wire format and works against any compatible
// gateway such as OpenRouter.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"scout_bot/internal/upstream"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

const defaultModel = "anthropic/claude-3.5-haiku"

// Completion is a single chat completion result.
type Completion struct {
	Content    string
	TokensUsed int
}

// completionAPI is the subset of the OpenAI client used here.
type completionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client generates chat completions with retry on transient failures.
type Client struct {
	api    completionAPI
	model  string
	policy upstream.Policy
	log    *slog.Logger
}

// Config holds the connection settings for the completion gateway.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// New creates a Client from gateway settings. Empty model and base URL fall
// back to defaults.
func New(cfg Config, log *slog.Logger) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	if clientCfg.BaseURL == "" {
		clientCfg.BaseURL = defaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{
		api:    openai.NewClientWithConfig(clientCfg),
		model:  model,
		policy: upstream.DefaultPolicy(),
		log:    log,
	}
}

// SetRetryPolicy overrides the default retry schedule (useful for testing).
func (c *Client) SetRetryPolicy(p upstream.Policy) {
	c.policy = p
}

// Chat sends a system prompt plus user messages and returns the completion.
// Authentication failures are surfaced immediately; rate limits and server
// errors are retried under the client's policy.
func (c *Client) Chat(ctx context.Context, systemPrompt string, messages []string, maxTokens int) (Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		},
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: msg,
		})
	}

	var out Completion
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return classify(err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("completion returned no choices")
		}
		content := strings.TrimSpace(resp.Choices[0].Message.Content)
		if content == "" {
			return errors.New("completion returned empty content")
		}
		out = Completion{
			Content:    content,
			TokensUsed: resp.Usage.TotalTokens,
		}
		return nil
	})
	if err != nil {
		return Completion{}, fmt.Errorf("chat completion: %w", err)
	}
	return out, nil
}

// classify maps provider errors onto the shared upstream taxonomy so the
// retry policy treats them correctly.
func classify(err error) error {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.HTTPStatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &upstream.AuthError{Reason: apiErr.Message}
	case http.StatusTooManyRequests:
		return &upstream.RateLimitError{}
	default:
		if apiErr.HTTPStatusCode >= 500 {
			return &upstream.StatusError{Code: apiErr.HTTPStatusCode}
		}
		return err
	}
}
