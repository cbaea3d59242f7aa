package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Client wraps the OpenAI chat API for the agents that want an LLM opinion.
// It is optional everywhere it is accepted: a nil Client makes callers fall
// back to their deterministic paths.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient builds a client for the given API key. An empty key returns nil
// so callers can treat "no LLM configured" uniformly.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		api:   openai.NewClient(apiKey),
		model: openai.GPT4oMini,
	}
}

// GenerateResponse sends a single-prompt chat completion and returns the
// raw text of the first choice.
func (c *Client) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("LLM request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
