package provider

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
)

// OpenAI streams chat completions from OpenAI or any compatible endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey, model, baseURL string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

func (p *OpenAI) Name() string { return NameOpenAI }

func (p *OpenAI) Stream(ctx context.Context, prompt string, emit func(string) error) error {
	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: true,
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	defer stream.Close()

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream receive error: %w", err)
		}

		if len(response.Choices) > 0 {
			if chunk := response.Choices[0].Delta.Content; chunk != "" {
				if err := emit(chunk); err != nil {
					return err
				}
			}
		}
	}
}
