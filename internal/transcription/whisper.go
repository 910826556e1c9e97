package transcription

import (
	"bytes"
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// WhisperClient transcribes through the OpenAI audio API.
type WhisperClient struct {
	client *openai.Client
	model  string
}

// NewWhisperClient creates a Whisper client. baseURL is optional.
func NewWhisperClient(apiKey, baseURL string) *WhisperClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &WhisperClient{
		client: openai.NewClientWithConfig(cfg),
		model:  openai.Whisper1,
	}
}

// Transcribe sends the clip to Whisper and returns its text.
func (c *WhisperClient) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", &Error{Provider: ProviderWhisper, Message: "empty audio"}
	}

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: fileNameFor(mimeType),
		Reader:   bytes.NewReader(audio),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", &Error{Provider: ProviderWhisper, Message: "request failed", Cause: err}
	}
	return strings.TrimSpace(resp.Text), nil
}
