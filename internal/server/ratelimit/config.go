package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig is the limit applied to one route pattern.
type EndpointConfig struct {
	// Pattern is matched segment by segment; "*" matches one segment and a
	// trailing "/" matches any path below it.
	Pattern string
	Method  string
	Limit   int           // Maximum requests per window
	Window  time.Duration // Time window
	Burst   int           // Burst capacity (defaults to Limit if 0)
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	IdleTTL         time.Duration // How long an unused bucket is kept
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// LoadConfig loads rate limiting configuration from RATE_LIMIT_* environment variables.
func LoadConfig() *Config {
	if !getEnvBool("RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", 600),
		DefaultWindow:   getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		IdleTTL:         getEnvDuration("RATE_LIMIT_IDLE_TTL", time.Hour),
		Whitelist:       parseIPList(os.Getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:       parseIPList(os.Getenv("RATE_LIMIT_BLACKLIST")),
		EndpointConfigs: DefaultEndpointConfigs(
			getEnvInt("RATE_LIMIT_LLM_PER_HOUR", 60),
			getEnvInt("RATE_LIMIT_AUTH_PER_MINUTE", 20),
		),
	}
}

// DefaultEndpointConfigs returns the per-route limits. llmPerHour bounds every
// route that calls the transcription or feedback services; authPerMinute
// bounds credential checks.
func DefaultEndpointConfigs(llmPerHour, authPerMinute int) []EndpointConfig {
	llmBurst := max(llmPerHour/10, 1)
	authBurst := max(authPerMinute/4, 1)

	return []EndpointConfig{
		// Calls out to speech-to-text or the LLM
		{Pattern: "/api/assessments/*/analyze", Method: "POST", Limit: llmPerHour, Window: time.Hour, Burst: llmBurst},
		{Pattern: "/api/assessments/*/analyze/stream", Method: "POST", Limit: llmPerHour, Window: time.Hour, Burst: llmBurst},
		{Pattern: "/api/transcribe", Method: "POST", Limit: llmPerHour * 4, Window: time.Hour, Burst: llmBurst * 4},
		{Pattern: "/api/feedback/answer", Method: "POST", Limit: llmPerHour * 4, Window: time.Hour, Burst: llmBurst * 4},
		{Pattern: "/api/sessions/*/study-plan", Method: "POST", Limit: llmPerHour, Window: time.Hour, Burst: llmBurst},
		{Pattern: "/api/progress/summary", Method: "POST", Limit: llmPerHour, Window: time.Hour, Burst: llmBurst},

		// Credentials
		{Pattern: "/auth/login", Method: "POST", Limit: authPerMinute, Window: time.Minute, Burst: authBurst},
		{Pattern: "/auth/register", Method: "POST", Limit: authPerMinute, Window: time.Minute, Burst: authBurst},
		{Pattern: "/auth/password", Method: "PUT", Limit: authPerMinute, Window: time.Minute, Burst: authBurst},

		// Writes
		{Pattern: "/api/session", Method: "POST", Limit: 100, Window: time.Minute, Burst: 10},
		{Pattern: "/api/assessments/", Method: "POST", Limit: 300, Window: time.Minute, Burst: 30},
	}
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

// parseIPList parses a comma-separated list of IP addresses into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
