package provider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 4096

// Anthropic streams messages from Anthropic's API.
type Anthropic struct {
	client anthropic.Client
	model  string
}

func NewAnthropic(apiKey, model, baseURL string) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// the relay never retries; a failed stream is reported to the caller
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Anthropic{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

func (p *Anthropic) Name() string { return NameAnthropic }

func (p *Anthropic) Stream(ctx context.Context, prompt string, emit func(string) error) error {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				if err := emit(delta.Text); err != nil {
					return err
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("stream error: %w", err)
	}
	return nil
}
