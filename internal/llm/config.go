// Package llm provides centralized LLM configuration and client abstractions.
// The feedback service talks to whichever provider is configured here.
package llm

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for simple tasks: summaries, study plans
	TierLite ModelTier = "lite"
	// TierStandard is for per-answer scoring with structured output
	TierStandard ModelTier = "standard"
	// TierAdvanced is for the batched multi-stage assessment
	TierAdvanced ModelTier = "advanced"
)

// Provider names an LLM backend.
type Provider string

// Supported providers
const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// DefaultTemperature keeps repeated scoring of the same answer close together.
const DefaultTemperature float32 = 0.1

// tierFallback is the order GetModel walks when a tier has no model.
var tierFallback = []ModelTier{TierStandard, TierLite}

var providerModels = map[Provider]map[ModelTier]string{
	ProviderGemini: {
		TierLite:     "gemini-2.5-flash-lite",
		TierStandard: "gemini-2.5-flash",
		TierAdvanced: "gemini-2.5-pro",
	},
	ProviderOpenAI: {
		TierLite:     "gpt-4o-mini",
		TierStandard: "gpt-4o-mini",
		TierAdvanced: "gpt-4o",
	},
}

// Config selects a provider and the model used for each tier.
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
	// BaseURL overrides the provider endpoint (OpenAI-compatible gateways only).
	BaseURL string
	// Temperature is the sampling temperature. Zero means DefaultTemperature.
	Temperature float32
}

func defaultsFor(p Provider) *Config {
	models := make(map[ModelTier]string, len(providerModels[p]))
	for tier, model := range providerModels[p] {
		models[tier] = model
	}
	return &Config{Provider: p, Models: models}
}

// DefaultConfig returns the Gemini configuration.
func DefaultConfig() *Config { return DefaultGeminiConfig() }

// DefaultGeminiConfig returns the default Gemini models.
func DefaultGeminiConfig() *Config { return defaultsFor(ProviderGemini) }

// DefaultOpenAIConfig returns the default OpenAI models.
func DefaultOpenAIConfig() *Config { return defaultsFor(ProviderOpenAI) }

// ConfigFor returns the default configuration for a provider name.
// Unknown names fall back to Gemini.
func ConfigFor(provider string) *Config {
	if _, ok := providerModels[Provider(provider)]; ok {
		return defaultsFor(Provider(provider))
	}
	return DefaultGeminiConfig()
}

// GetModel returns the model for tier, falling back to the standard and then
// the lite model. It returns "" when nothing is configured.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	for _, fallback := range tierFallback {
		if model, ok := c.Models[fallback]; ok {
			return model
		}
	}
	return ""
}

// WithModel returns a copy of c with model set for tier.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	out := *c
	out.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		out.Models[k] = v
	}
	out.Models[tier] = model
	return &out
}

func (c *Config) temperature() float32 {
	if c.Temperature > 0 {
		return c.Temperature
	}
	return DefaultTemperature
}
