package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jonathan/voice-coach/internal/assessment"
	"github.com/jonathan/voice-coach/internal/types"
)

// SSE event names sent while an assessment is analyzed
const (
	eventProgress = "progress"
	eventComplete = "complete"
	eventError    = "error"
)

// SSEWriter helps write Server-Sent Events
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteProgress sends one aggregation step.
func (s *SSEWriter) WriteProgress(event assessment.ProgressEvent) {
	s.WriteEvent(eventProgress, event) //nolint:errcheck
}

// WriteComplete sends the stored record and ends the stream.
func (s *SSEWriter) WriteComplete(record *types.SessionRecord) {
	s.WriteEvent(eventComplete, record) //nolint:errcheck
}

// WriteError sends the failure with the status a plain request would have got.
func (s *SSEWriter) WriteError(err error) {
	s.WriteEvent(eventError, map[string]any{ //nolint:errcheck
		"error":  publicMessage(err),
		"status": HTTPStatus(err),
	})
}
