package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	domain "github.com/bryanwahyu/repolens/internal/domain/analyses"
	"github.com/bryanwahyu/repolens/internal/infra/ai/prompt"
)

const maxTokens = 2048

// Client is the primary enrichment path. Any failure (timeout, malformed
// response, empty payload) surfaces as an error; the caller substitutes the
// deterministic fallback and the run still completes.
type Client struct {
	*openai.Client
	Model   string
	Timeout time.Duration
}

func NewClient(apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{Client: openai.NewClient(apiKey), Model: model, Timeout: timeout}
}

func (c *Client) Enrich(ctx context.Context, data *domain.AnalysisData, m *domain.Metrics) (*domain.Insights, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	model := c.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetUserPrompt(data, m)},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion response")
	}

	var payload prompt.InsightsPayload
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &payload); err != nil {
		return nil, fmt.Errorf("malformed insights payload: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("invalid insights payload: %w", err)
	}
	return payload.ToInsights(), nil
}
