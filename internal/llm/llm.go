// Package llm wraps the completion providers used by the article
// pipeline. Provider failures are absorbed into fallback text plus a
// warning value rather than surfaced as errors: an article run chains
// many completions, and a single fatal call would sink the whole run.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"blogsmith/internal/config"
	"blogsmith/internal/core"
	"blogsmith/internal/logger"
)

// DefaultTemperature matches the drafting stages' preference for varied
// phrasing over consistency.
const DefaultTemperature = float32(0.9)

// Options contains per-call generation options.
type Options struct {
	MaxTokens   int
	Temperature float32
	Model       string // Optional override of the provider's model
}

// Provider is a single completion backend.
type Provider interface {
	GenerateText(ctx context.Context, prompt string, opts Options) (string, error)
	GetName() string
}

// NewProvider creates a completion provider from configuration.
func NewProvider(cfg config.LLM) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm.api_key is required for the openai provider")
		}
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	case "gemini":
		return NewGeminiProvider(cfg.Gemini.APIKey, cfg.Gemini.Model)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %q", cfg.Provider)
	}
}

// Client is the pipeline-facing completion client. Complete never returns
// an error; degraded calls yield fallback text and a StageWarning.
type Client struct {
	provider    Provider
	temperature float32
	maxTokens   int // Upper bound on per-call token budgets; 0 means no bound
}

// NewClient wraps a provider with the default temperature.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider, temperature: DefaultTemperature}
}

// NewClientWithLimits wraps a provider with a custom default temperature
// and a ceiling applied to every call's token budget.
func NewClientWithLimits(provider Provider, temperature float32, maxTokens int) *Client {
	return &Client{provider: provider, temperature: temperature, maxTokens: maxTokens}
}

// Complete runs one prompt through the provider. On provider failure it
// returns a deterministic fallback string embedding the error, plus a
// warning the caller can attach to its stage. The returned warning is nil
// on success.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, *core.StageWarning) {
	if c.maxTokens > 0 && (maxTokens <= 0 || maxTokens > c.maxTokens) {
		maxTokens = c.maxTokens
	}
	text, err := c.provider.GenerateText(ctx, prompt, Options{
		MaxTokens:   maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		logger.Warn("completion failed, using fallback", "provider", c.provider.GetName(), "error", err.Error())
		return fmt.Sprintf("Fallback: content generation failed (%s)", err.Error()), &core.StageWarning{
			Message: fmt.Sprintf("completion failed: %s", err.Error()),
			At:      time.Now().UTC(),
		}
	}

	// Some backends echo replacement markers from templated prompts.
	text = strings.ReplaceAll(text, "$1", "")
	return strings.TrimSpace(text), nil
}
