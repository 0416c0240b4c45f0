package provider

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini streams completions from Google's Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini provider. baseURL is optional and only used to
// point the SDK at a proxy or a test server.
func NewGemini(ctx context.Context, apiKey, model, baseURL string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Name() string { return NameGemini }

func (g *Gemini) Stream(ctx context.Context, prompt string, emit func(string) error) error {
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(prompt), nil) {
		if err != nil {
			return fmt.Errorf("gemini stream: %w", err)
		}
		if resp == nil {
			continue
		}
		if text := resp.Text(); text != "" {
			if err := emit(text); err != nil {
				return err
			}
		}
	}
	return nil
}
