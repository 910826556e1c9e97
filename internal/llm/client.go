package llm

import (
	"context"
	"fmt"
)

// Client is an abstraction over LLM providers
type Client interface {
	// GenerateContent generates text content using the specified model tier
	GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// GenerateJSON asks the provider for a JSON object response
	GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// GetModel returns the underlying provider model for a tier
	GetModel(tier ModelTier) string
	Close() error
}

// EmptyResponseError is returned when the provider answered without any text,
// for example because the output was blocked.
type EmptyResponseError struct {
	Provider Provider
	Reason   string
}

func (e *EmptyResponseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s returned no content", e.Provider)
	}
	return fmt.Sprintf("%s returned no content (finish reason: %s)", e.Provider, e.Reason)
}

// NewClient creates the client for config.Provider. A nil config means Gemini.
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for %s", config.Provider)
	}

	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config, apiKey)
	case ProviderGemini, "":
		return NewGeminiClient(ctx, config, apiKey)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}
}

func modelFor(config *Config, tier ModelTier) (string, error) {
	name := config.GetModel(tier)
	if name == "" {
		return "", fmt.Errorf("no model configured for tier %s", tier)
	}
	return name, nil
}
