// Package transcription turns recorded answer clips into text.
// Every provider sits behind the Client interface so the assessment
// aggregator never knows which service produced a transcript.
package transcription

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single transcription request.
const DefaultTimeout = 60 * time.Second

// DefaultFalURL is the Fal wizper speech-to-text endpoint.
const DefaultFalURL = "https://fal.run/fal-ai/wizper"

// Provider names accepted by NewClient.
const (
	ProviderHTTP    = "http"
	ProviderFal     = "fal"
	ProviderWhisper = "whisper"
)

// Client converts one audio clip into text.
type Client interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Error represents a failed transcription request.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transcription error (%s): %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("transcription error (%s): %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("transcription error (%s): %s", e.Provider, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures a transcription client.
type Options struct {
	Provider string
	// URL is the endpoint for the http and fal providers.
	URL string
	// APIKey authenticates fal (Key scheme) and whisper.
	APIKey string
	// BaseURL overrides the OpenAI endpoint for whisper.
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient builds the client for opts.Provider.
func NewClient(opts Options) (Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	switch opts.Provider {
	case ProviderHTTP, "":
		if opts.URL == "" {
			return nil, fmt.Errorf("transcription url is required for the http provider")
		}
		return &HTTPClient{URL: opts.URL, Client: httpClient}, nil
	case ProviderFal:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("fal api key is required")
		}
		url := opts.URL
		if url == "" {
			url = DefaultFalURL
		}
		return &FalClient{URL: url, APIKey: opts.APIKey, Client: httpClient}, nil
	case ProviderWhisper:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("openai api key is required for whisper")
		}
		return NewWhisperClient(opts.APIKey, opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", opts.Provider)
	}
}
