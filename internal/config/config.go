// Package config provides configuration loading and validation for the service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Duration is a time.Duration that reads JSON strings such as "60s" or "2h".
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Plain numbers are taken as seconds
		var secs float64
		if err2 := json.Unmarshal(data, &secs); err2 != nil {
			return fmt.Errorf("invalid duration %s", string(data))
		}
		d.Duration = time.Duration(secs * float64(time.Second))
		return nil
	}
	if s == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Config represents the service configuration that can be loaded from a JSON file.
// All fields are optional; missing values come from the environment or defaults.
type Config struct {
	// Server
	Port        int    `json:"port,omitempty"`
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL

	// Draft and token state; an empty address keeps state in memory
	RedisAddr     string   `json:"redis_addr,omitempty"`
	RedisPassword string   `json:"redis_password,omitempty"`
	RedisDB       int      `json:"redis_db,omitempty"`
	DraftTTL      Duration `json:"draft_ttl,omitempty"`

	// Feedback LLM
	LLMProvider  string `json:"llm_provider,omitempty"` // gemini or openai
	LLMBaseURL   string `json:"llm_base_url,omitempty"`
	GeminiAPIKey string `json:"gemini_api_key,omitempty"`
	OpenAIAPIKey string `json:"openai_api_key,omitempty"`

	// Speech to text
	TranscriptionProvider string `json:"transcription_provider,omitempty"` // http, fal or whisper
	TranscriptionURL      string `json:"transcription_url,omitempty"`
	FalAPIKey             string `json:"fal_api_key,omitempty"`

	// Questions
	QuestionBank string `json:"question_bank,omitempty"` // Path to a YAML bank; embedded bank if empty

	// External calls
	CallTimeout       Duration `json:"call_timeout,omitempty"`
	RetryMax          int      `json:"retry_max,omitempty"`
	RetryInitialDelay Duration `json:"retry_initial_delay,omitempty"`

	// Metrics
	OTelEndpoint string `json:"otel_endpoint,omitempty"`
	OTelInsecure bool   `json:"otel_insecure,omitempty"`

	Verbose bool `json:"verbose,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:                  8080,
		DraftTTL:              Duration{2 * time.Hour},
		LLMProvider:           "gemini",
		TranscriptionProvider: "http",
		CallTimeout:           Duration{60 * time.Second},
		RetryMax:              3,
		RetryInitialDelay:     Duration{time.Second},
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv reads the configuration keys from environment variables.
// Unset variables leave fields at their zero value.
func FromEnv() Config {
	return Config{
		Port:                  getEnvInt("PORT", 0),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getEnvInt("REDIS_DB", 0),
		DraftTTL:              Duration{getEnvDuration("DRAFT_TTL", 0)},
		LLMProvider:           os.Getenv("LLM_PROVIDER"),
		LLMBaseURL:            os.Getenv("LLM_BASE_URL"),
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		TranscriptionProvider: os.Getenv("TRANSCRIPTION_PROVIDER"),
		TranscriptionURL:      os.Getenv("TRANSCRIPTION_URL"),
		FalAPIKey:             os.Getenv("FAL_API_KEY"),
		QuestionBank:          os.Getenv("QUESTION_BANK"),
		CallTimeout:           Duration{getEnvDuration("CALL_TIMEOUT", 0)},
		RetryMax:              getEnvInt("RETRY_MAX", 0),
		RetryInitialDelay:     Duration{getEnvDuration("RETRY_INITIAL_DELAY", 0)},
		OTelEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelInsecure:          getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for credentials since those depend on the chosen
// providers and are checked when clients are built.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("config error: 'redis_db' must be non-negative")
	}
	if c.RetryMax < 0 {
		return fmt.Errorf("config error: 'retry_max' must be non-negative")
	}
	if c.CallTimeout.Duration < 0 || c.RetryInitialDelay.Duration < 0 || c.DraftTTL.Duration < 0 {
		return fmt.Errorf("config error: durations must be non-negative")
	}

	switch c.LLMProvider {
	case "", "gemini", "openai":
	default:
		return fmt.Errorf("config error: unknown 'llm_provider' %q", c.LLMProvider)
	}
	switch c.TranscriptionProvider {
	case "", "http", "fal", "whisper":
	default:
		return fmt.Errorf("config error: unknown 'transcription_provider' %q", c.TranscriptionProvider)
	}

	// Validate file paths exist (if specified)
	if c.QuestionBank != "" {
		if _, err := os.Stat(c.QuestionBank); os.IsNotExist(err) {
			return fmt.Errorf("config error: question bank not found: %s", c.QuestionBank)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to layer file, environment and built-in values under CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.RedisAddr == "" {
		result.RedisAddr = defaults.RedisAddr
	}
	if result.RedisPassword == "" {
		result.RedisPassword = defaults.RedisPassword
	}
	if result.LLMProvider == "" {
		result.LLMProvider = defaults.LLMProvider
	}
	if result.LLMBaseURL == "" {
		result.LLMBaseURL = defaults.LLMBaseURL
	}
	if result.GeminiAPIKey == "" {
		result.GeminiAPIKey = defaults.GeminiAPIKey
	}
	if result.OpenAIAPIKey == "" {
		result.OpenAIAPIKey = defaults.OpenAIAPIKey
	}
	if result.TranscriptionProvider == "" {
		result.TranscriptionProvider = defaults.TranscriptionProvider
	}
	if result.TranscriptionURL == "" {
		result.TranscriptionURL = defaults.TranscriptionURL
	}
	if result.FalAPIKey == "" {
		result.FalAPIKey = defaults.FalAPIKey
	}
	if result.QuestionBank == "" {
		result.QuestionBank = defaults.QuestionBank
	}
	if result.OTelEndpoint == "" {
		result.OTelEndpoint = defaults.OTelEndpoint
	}

	// Int fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.RedisDB == 0 {
		result.RedisDB = defaults.RedisDB
	}
	if result.RetryMax == 0 {
		result.RetryMax = defaults.RetryMax
	}

	// Duration fields
	if result.DraftTTL.Duration == 0 {
		result.DraftTTL = defaults.DraftTTL
	}
	if result.CallTimeout.Duration == 0 {
		result.CallTimeout = defaults.CallTimeout
	}
	if result.RetryInitialDelay.Duration == 0 {
		result.RetryInitialDelay = defaults.RetryInitialDelay
	}

	// Bool fields: cannot distinguish unset from false, so either side enables them
	result.OTelInsecure = result.OTelInsecure || defaults.OTelInsecure
	result.Verbose = result.Verbose || defaults.Verbose

	return result
}

// APIKeyFor returns the LLM key for the configured provider.
func (c *Config) APIKeyFor(provider string) string {
	if provider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}

// getEnvInt gets an environment variable as an integer with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
