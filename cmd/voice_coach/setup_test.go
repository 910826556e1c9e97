package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/voice-coach/internal/config"
	"github.com/jonathan/voice-coach/internal/db"
	"github.com/jonathan/voice-coach/internal/state"
	"github.com/jonathan/voice-coach/internal/types"
)

var configEnvKeys = []string{
	"PORT", "DATABASE_URL", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "DRAFT_TTL",
	"LLM_PROVIDER", "LLM_BASE_URL", "GEMINI_API_KEY", "OPENAI_API_KEY",
	"TRANSCRIPTION_PROVIDER", "TRANSCRIPTION_URL", "FAL_API_KEY", "QUESTION_BANK",
	"CALL_TIMEOUT", "RETRY_MAX", "RETRY_INITIAL_DELAY",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestResolveConfig_Defaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := resolveConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "gemini", cfg.LLMProvider)
	assert.Equal(t, "http", cfg.TranscriptionProvider)
	assert.Equal(t, 60*time.Second, cfg.CallTimeout.Duration)
	assert.Equal(t, 2*time.Hour, cfg.DraftTTL.Duration)
}

func TestResolveConfig_EnvOverridesFile(t *testing.T) {
	clearConfigEnv(t)
	path := writeFile(t, "config.json", `{"port": 9000, "llm_provider": "openai", "call_timeout": "30s", "redis_addr": "file:6379"}`)
	t.Setenv("REDIS_ADDR", "env:6379")
	t.Setenv("CALL_TIMEOUT", "45s")

	cfg, err := resolveConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, "env:6379", cfg.RedisAddr)
	assert.Equal(t, 45*time.Second, cfg.CallTimeout.Duration)
	assert.Equal(t, 3, cfg.RetryMax)
}

func TestResolveConfig_Errors(t *testing.T) {
	clearConfigEnv(t)

	t.Run("missing file", func(t *testing.T) {
		_, err := resolveConfig(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("unknown provider", func(t *testing.T) {
		path := writeFile(t, "config.json", `{"llm_provider": "mystery"}`)
		_, err := resolveConfig(path)
		assert.ErrorContains(t, err, "llm_provider")
	})
}

func TestStateConfig(t *testing.T) {
	mem := stateConfig(config.Config{})
	assert.Equal(t, state.BackendMemory, mem.Backend)
	assert.Nil(t, mem.Redis)

	redis := stateConfig(config.Config{RedisAddr: "localhost:6379", RedisDB: 2, RedisPassword: "pw"})
	assert.Equal(t, state.BackendRedis, redis.Backend)
	require.NotNil(t, redis.Redis)
	assert.Equal(t, "localhost:6379", redis.Redis.Addr)
	assert.Equal(t, 2, redis.Redis.DB)
	assert.Equal(t, "pw", redis.Redis.Password)
}

func TestRetryPolicy(t *testing.T) {
	policy := retryPolicy(config.Config{RetryMax: 5, RetryInitialDelay: config.Duration{Duration: 250 * time.Millisecond}})

	assert.Equal(t, 5, policy.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, policy.InitialDelay)
	assert.NotNil(t, policy.Sleep)
}

func TestNewTranscriber(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr bool
	}{
		{name: "http with url", cfg: config.Config{TranscriptionProvider: "http", TranscriptionURL: "http://localhost:9000/transcribe"}},
		{name: "http without url", cfg: config.Config{TranscriptionProvider: "http"}, wantErr: true},
		{name: "fal with key", cfg: config.Config{TranscriptionProvider: "fal", FalAPIKey: "k"}},
		{name: "fal without key", cfg: config.Config{TranscriptionProvider: "fal"}, wantErr: true},
		{name: "whisper uses the openai key", cfg: config.Config{TranscriptionProvider: "whisper", OpenAIAPIKey: "sk"}},
		{name: "whisper without key", cfg: config.Config{TranscriptionProvider: "whisper", GeminiAPIKey: "g"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := newTranscriber(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestNewFeedbackService_RequiresKey(t *testing.T) {
	_, _, err := newFeedbackService(t.Context(), config.Config{LLMProvider: "openai", GeminiAPIKey: "g"})
	assert.ErrorContains(t, err, "openai")
}

func TestLoadQuestions(t *testing.T) {
	picker, err := loadQuestions(config.Config{})
	require.NoError(t, err)

	set, err := picker.Interview(types.SessionHR)
	require.NoError(t, err)
	assert.NotEmpty(t, set.Core)

	_, err = loadQuestions(config.Config{QuestionBank: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestMimeTypeFor(t *testing.T) {
	tests := map[string]string{
		"answer.webm": "audio/webm",
		"ANSWER.M4A":  "audio/mp4",
		"clip.wav":    "audio/wav",
		"clip":        "application/octet-stream",
	}
	for path, want := range tests {
		assert.Equal(t, want, mimeTypeFor(path), path)
	}
}

func TestReadArtifacts(t *testing.T) {
	path := writeFile(t, "artifacts.json", `[
		{"stage": "core", "prompt_text": "Why this role?", "kind": "text", "text": "I like speech tech."},
		{"stage": "closing", "prompt_text": "Any questions?", "kind": "audio", "audio": "aGVsbG8=", "mime_type": "audio/webm"}
	]`)

	artifacts, err := readArtifacts(path)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Equal(t, types.KindText, artifacts[0].Kind)
	assert.Equal(t, []byte("hello"), artifacts[1].Audio)

	_, err = readArtifacts(writeFile(t, "empty.json", `[]`))
	assert.Error(t, err)

	_, err = readArtifacts(writeFile(t, "bad.json", `{`))
	assert.Error(t, err)
}

func TestMigrateCommand_Print(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"migrate", "--print"})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		migratePrint = false
	}()

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), db.Schema())
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "transcribe", "feedback", "history", "score"} {
		assert.True(t, names[want], want)
	}
}
