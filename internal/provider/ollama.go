package provider

import (
	"context"
	"log/slog"

	"github.com/waseemkhan00777/askify-gemini/internal/ollama"
)

// Ollama streams from a local Ollama daemon.
type Ollama struct {
	c     *ollama.Client
	model string
}

func NewOllama(baseURL, model string, log *slog.Logger) *Ollama {
	return &Ollama{c: ollama.NewClient(baseURL, log), model: model}
}

func (o *Ollama) Name() string { return NameOllama }

// Client exposes the underlying daemon client for readiness checks.
func (o *Ollama) Client() *ollama.Client { return o.c }

func (o *Ollama) Stream(ctx context.Context, prompt string, emit func(string) error) error {
	return o.c.GenerateStream(ctx, o.model, prompt, emit)
}
