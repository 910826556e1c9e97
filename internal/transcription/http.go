package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 1 << 20

// HTTPClient posts the clip as a multipart "file" part to a generic
// speech-to-text endpoint.
type HTTPClient struct {
	URL    string
	Client *http.Client
}

// Transcribe uploads audio and returns the normalized transcript.
func (c *HTTPClient) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", &Error{Provider: ProviderHTTP, Message: "empty audio"}
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+fileNameFor(mimeType)+`"`)
	header.Set("Content-Type", contentTypeOr(mimeType))
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", &Error{Provider: ProviderHTTP, Message: "failed to build request", Cause: err}
	}
	if _, err := part.Write(audio); err != nil {
		return "", &Error{Provider: ProviderHTTP, Message: "failed to build request", Cause: err}
	}
	if err := writer.Close(); err != nil {
		return "", &Error{Provider: ProviderHTTP, Message: "failed to build request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, body)
	if err != nil {
		return "", &Error{Provider: ProviderHTTP, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return doTranscriptRequest(c.Client, req, ProviderHTTP)
}

// FalClient sends the raw clip to Fal wizper.
type FalClient struct {
	URL    string
	APIKey string
	Client *http.Client
}

// Transcribe posts audio as the raw request body.
func (c *FalClient) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", &Error{Provider: ProviderFal, Message: "empty audio"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(audio))
	if err != nil {
		return "", &Error{Provider: ProviderFal, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Authorization", "Key "+c.APIKey)
	req.Header.Set("Content-Type", contentTypeOr(mimeType))

	return doTranscriptRequest(c.Client, req, ProviderFal)
}

// transcriptResponse accepts both response shapes seen in the wild.
type transcriptResponse struct {
	Text       *string `json:"text"`
	Transcript *string `json:"transcript"`
}

func doTranscriptRequest(client *http.Client, req *http.Request, provider string) (string, error) {
	resp, err := client.Do(req)
	if err != nil {
		return "", &Error{Provider: provider, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &Error{Provider: provider, Message: "failed to read response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{Provider: provider, StatusCode: resp.StatusCode, Message: "unexpected status"}
	}

	var parsed transcriptResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &Error{Provider: provider, Message: "invalid response body", Cause: err}
	}

	switch {
	case parsed.Text != nil:
		return strings.TrimSpace(*parsed.Text), nil
	case parsed.Transcript != nil:
		return strings.TrimSpace(*parsed.Transcript), nil
	default:
		return "", &Error{Provider: provider, Message: "response has neither text nor transcript"}
	}
}

func contentTypeOr(mimeType string) string {
	if mimeType == "" {
		return "audio/webm"
	}
	return mimeType
}

// fileNameFor picks an extension the provider can use to sniff the codec.
func fileNameFor(mimeType string) string {
	base := strings.TrimSpace(strings.SplitN(contentTypeOr(mimeType), ";", 2)[0])
	switch base {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "answer.wav"
	case "audio/mpeg", "audio/mp3":
		return "answer.mp3"
	case "audio/ogg":
		return "answer.ogg"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return "answer.m4a"
	default:
		return "answer.webm"
	}
}
