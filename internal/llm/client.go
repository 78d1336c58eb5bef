package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/waveline/internal/retry"
)

// Client is the completion interface the rest of the application depends on
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// LangchainClient implements Client over a langchaingo model with retry
type LangchainClient struct {
	model       llms.Model
	temperature float64
	retryConfig retry.RetryConfig
}

// NewOpenAIClient creates a client backed by the OpenAI chat completion API
func NewOpenAIClient(apiKey, model string, temperature float64) (*LangchainClient, error) {
	m, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}

	return &LangchainClient{
		model:       m,
		temperature: temperature,
		retryConfig: retry.LLMRetryConfig(),
	}, nil
}

// Complete sends a system+user message pair and returns the raw completion text
func (c *LangchainClient) Complete(ctx context.Context, system, user string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	var out string
	result := retry.RetryWithBackoffAndReason(ctx, c.retryConfig, func() (error, string) {
		resp, err := c.model.GenerateContent(ctx, messages, llms.WithTemperature(c.temperature))
		if err != nil {
			if retry.IsRetryableError(err) {
				return err, "provider_transient"
			}
			return err, "provider_error"
		}
		if len(resp.Choices) == 0 {
			return errors.New("empty completion"), "empty_completion"
		}
		out = resp.Choices[0].Content
		return nil, ""
	})

	if !result.Success {
		return "", fmt.Errorf("completion failed after %d attempts: %w", result.Attempts, result.LastError)
	}
	return out, nil
}
