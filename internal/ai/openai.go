package ai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"smartsurvey/internal/config"
)

type openAIProvider struct {
	client *openai.Client
}

func newOpenAIProvider(cfg *config.AIConfig, httpClient *http.Client) *openAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = httpClient
	return &openAIProvider{client: openai.NewClientWithConfig(clientCfg)}
}

func (p *openAIProvider) Name() string { return config.ProviderOpenAI }

func (p *openAIProvider) Complete(ctx context.Context, in CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if in.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: in.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: in.Prompt})

	req := openai.ChatCompletionRequest{
		Model:       in.Model,
		Messages:    messages,
		Temperature: in.Temperature,
		MaxTokens:   in.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
