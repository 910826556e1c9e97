package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jonathan/voice-coach/internal/config"
	"github.com/jonathan/voice-coach/internal/feedback"
	"github.com/jonathan/voice-coach/internal/llm"
	"github.com/jonathan/voice-coach/internal/questions"
	"github.com/jonathan/voice-coach/internal/state"
	"github.com/jonathan/voice-coach/internal/transcription"
)

// resolveConfig layers the config file, the environment and the built-in
// defaults. Environment values win over the file.
func resolveConfig(path string) (config.Config, error) {
	var fileCfg config.Config
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		fileCfg = *loaded
	}

	env := config.FromEnv()
	cfg := env.MergeWithDefaults(fileCfg)
	cfg = cfg.MergeWithDefaults(config.Defaults())
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// stateConfig picks Redis when an address is configured.
func stateConfig(cfg config.Config) state.Config {
	if cfg.RedisAddr == "" {
		return state.Config{Backend: state.BackendMemory}
	}
	return state.Config{
		Backend: state.BackendRedis,
		Redis: &state.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "voice-coach:",
		},
	}
}

// retryPolicy maps the configured retry settings onto the LLM policy.
func retryPolicy(cfg config.Config) llm.RetryPolicy {
	policy := llm.DefaultRetryPolicy()
	policy.MaxRetries = cfg.RetryMax
	policy.InitialDelay = cfg.RetryInitialDelay.Duration
	return policy
}

// newFeedbackService builds the LLM client for the configured provider.
func newFeedbackService(ctx context.Context, cfg config.Config) (*feedback.Service, llm.Client, error) {
	llmCfg := llm.ConfigFor(cfg.LLMProvider)
	llmCfg.BaseURL = cfg.LLMBaseURL

	apiKey := cfg.APIKeyFor(cfg.LLMProvider)
	if apiKey == "" {
		return nil, nil, fmt.Errorf("API key is required for LLM provider %q", cfg.LLMProvider)
	}
	client, err := llm.NewClient(ctx, llmCfg, apiKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	policy := retryPolicy(cfg)
	svc := feedback.NewService(client, feedback.Options{
		Timeout: cfg.CallTimeout.Duration,
		Retry:   &policy,
	})
	return svc, client, nil
}

// newTranscriber builds the speech-to-text client.
func newTranscriber(cfg config.Config) (transcription.Client, error) {
	opts := transcription.Options{
		Provider: cfg.TranscriptionProvider,
		URL:      cfg.TranscriptionURL,
		Timeout:  cfg.CallTimeout.Duration,
	}
	switch cfg.TranscriptionProvider {
	case transcription.ProviderFal:
		opts.APIKey = cfg.FalAPIKey
	case transcription.ProviderWhisper:
		opts.APIKey = cfg.OpenAIAPIKey
		opts.BaseURL = cfg.LLMBaseURL
	}
	client, err := transcription.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcriber: %w", err)
	}
	return client, nil
}

// loadQuestions reads the configured bank or falls back to the embedded one.
func loadQuestions(cfg config.Config) (*questions.Picker, error) {
	var (
		bank *questions.Bank
		err  error
	)
	if cfg.QuestionBank != "" {
		bank, err = questions.Load(cfg.QuestionBank)
	} else {
		bank, err = questions.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load question bank: %w", err)
	}
	return questions.NewPicker(bank, rand.NewSource(time.Now().UnixNano())), nil
}
