package provider

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// CloudProvider wraps an OpenAI-compatible chat-completion API. It requires a
// bearer credential and is assumed available whenever one is configured; cost
// accrues per request, so the selector only reaches for it when the local
// backend cannot serve.
type CloudProvider struct {
	client *openai.Client
	model  string
}

func NewCloudProvider(apiKey, model string) *CloudProvider {
	return &CloudProvider{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (p *CloudProvider) Name() string  { return "cloud" }
func (p *CloudProvider) Model() string { return p.model }

// CheckAvailability: the cloud backend is reachable by assumption when a
// credential exists; a dead credential surfaces as a completion error instead.
func (p *CloudProvider) CheckAvailability(ctx context.Context) bool {
	return p.client != nil
}

func (p *CloudProvider) RunCompletion(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choice list", ErrRequestFailed)
	}
	return resp.Choices[0].Message.Content, nil
}
