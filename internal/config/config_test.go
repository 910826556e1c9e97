package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	// Create temp config file
	content := `{
		"port": 9090,
		"llm_provider": "openai",
		"transcription_provider": "fal",
		"call_timeout": "45s",
		"retry_initial_delay": 2,
		"redis_addr": "localhost:6379",
		"verbose": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, "fal", cfg.TranscriptionProvider)
	assert.Equal(t, 45*time.Second, cfg.CallTimeout.Duration)
	assert.Equal(t, 2*time.Second, cfg.RetryInitialDelay.Duration)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	content := `{ invalid json }`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_BadDuration(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{"call_timeout": "soon"}`), 0644))

	_, err := LoadConfig(tmpFile)
	assert.Error(t, err)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestDuration_JSON(t *testing.T) {
	data, err := json.Marshal(Duration{90 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(data))

	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`""`), &d))
	assert.Zero(t, d.Duration)
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
}

func TestFromEnv(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("CALL_TIMEOUT", "30s")
	t.Setenv("RETRY_MAX", "not-a-number")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")

	cfg := FromEnv()

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "postgres://x", cfg.DatabaseURL)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout.Duration)
	assert.Equal(t, 0, cfg.RetryMax)
	assert.True(t, cfg.OTelInsecure)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"defaults", Defaults(), ""},
		{"negative port", Config{Port: -1}, "port"},
		{"negative retries", Config{RetryMax: -1}, "retry_max"},
		{"negative timeout", Config{CallTimeout: Duration{-time.Second}}, "durations"},
		{"unknown llm", Config{LLMProvider: "claude"}, "llm_provider"},
		{"unknown transcription", Config{TranscriptionProvider: "vosk"}, "transcription_provider"},
		{"missing bank", Config{QuestionBank: "/nonexistent/bank.yaml"}, "question bank not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	partial := Config{
		Port:        9000,
		LLMProvider: "openai",
		CallTimeout: Duration{10 * time.Second},
	}

	merged := partial.MergeWithDefaults(Defaults())

	// Custom values should be preserved
	assert.Equal(t, 9000, merged.Port)
	assert.Equal(t, "openai", merged.LLMProvider)
	assert.Equal(t, 10*time.Second, merged.CallTimeout.Duration)

	// Default values should fill in empty fields
	assert.Equal(t, "http", merged.TranscriptionProvider)
	assert.Equal(t, 3, merged.RetryMax)
	assert.Equal(t, time.Second, merged.RetryInitialDelay.Duration)
	assert.Equal(t, 2*time.Hour, merged.DraftTTL.Duration)
}

func TestMergeWithDefaults_EmptyDefaults(t *testing.T) {
	cfg := Config{GeminiAPIKey: "key", Verbose: true}

	merged := cfg.MergeWithDefaults(Config{})

	assert.Equal(t, "key", merged.GeminiAPIKey)
	assert.True(t, merged.Verbose)
	assert.Zero(t, merged.Port)
}

func TestAPIKeyFor(t *testing.T) {
	cfg := Config{GeminiAPIKey: "g", OpenAIAPIKey: "o"}

	assert.Equal(t, "g", cfg.APIKeyFor("gemini"))
	assert.Equal(t, "o", cfg.APIKeyFor("openai"))
	assert.Equal(t, "g", cfg.APIKeyFor(""))
}
