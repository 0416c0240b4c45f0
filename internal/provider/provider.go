// Package provider wraps the hosted and local model APIs behind a single
// streaming capability: given a prompt, yield ordered text fragments.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Provider streams a completion for one prompt. Fragments are passed to emit
// in arrival order. If emit returns an error the stream stops and that error
// is returned unchanged.
type Provider interface {
	Name() string
	Stream(ctx context.Context, prompt string, emit func(fragment string) error) error
}

// Provider names accepted by New.
const (
	NameGemini    = "gemini"
	NameOpenAI    = "openai"
	NameAnthropic = "anthropic"
	NameOllama    = "ollama"
	NameEcho      = "echo"
)

// DefaultModels holds the model used when none is configured.
var DefaultModels = map[string]string{
	NameGemini:    "gemini-1.5-flash",
	NameOpenAI:    "gpt-4o-mini",
	NameAnthropic: "claude-3-5-haiku-latest",
	NameOllama:    "llama3.2",
	NameEcho:      "echo",
}

// RequiresAPIKey reports whether the named provider talks to a hosted API.
func RequiresAPIKey(name string) bool {
	switch name {
	case NameGemini, NameOpenAI, NameAnthropic:
		return true
	}
	return false
}

// Config selects and configures a provider.
type Config struct {
	Name    string
	APIKey  string
	Model   string
	BaseURL string
	// EchoDelay paces the echo provider's fragments.
	EchoDelay time.Duration
}

// New constructs the provider named in cfg. The returned value lives for the
// whole process and is shared by every request.
func New(ctx context.Context, cfg Config, log *slog.Logger) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	model := cfg.Model
	if model == "" {
		model = DefaultModels[name]
	}

	switch name {
	case NameGemini:
		return NewGemini(ctx, cfg.APIKey, model, cfg.BaseURL)
	case NameOpenAI:
		return NewOpenAI(cfg.APIKey, model, cfg.BaseURL)
	case NameAnthropic:
		return NewAnthropic(cfg.APIKey, model, cfg.BaseURL)
	case NameOllama:
		base := cfg.BaseURL
		if base == "" {
			base = "http://localhost:11434"
		}
		return NewOllama(base, model, log), nil
	case NameEcho:
		return NewEcho(cfg.EchoDelay), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}
