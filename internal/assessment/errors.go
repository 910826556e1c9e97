package assessment

import (
	"errors"
	"fmt"
)

// ErrStageOutOfOrder is returned when a stage other than the active one is completed.
var ErrStageOutOfOrder = errors.New("stage completed out of order")

// ErrAlreadyTaken is returned when the artifact set is requested a second time.
var ErrAlreadyTaken = errors.New("artifacts already handed to the aggregator")

// ErrNotReadyForAnalysis is returned when analysis is requested before every stage completed.
var ErrNotReadyForAnalysis = errors.New("assessment has stages left to complete")

// ErrFinished is returned for any transition out of the terminal results state.
var ErrFinished = errors.New("assessment already finished")

// ErrNotFound is returned when no draft exists for an assessment ID.
var ErrNotFound = errors.New("assessment not found")

// ErrForbidden is returned when a draft belongs to another user.
var ErrForbidden = errors.New("assessment belongs to another user")

// InputMissingError is returned when a stage is submitted without a usable payload.
type InputMissingError struct {
	Stage  string
	Index  int
	Reason string
}

func (e *InputMissingError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("input missing for stage %s: %s", e.Stage, e.Reason)
	}
	return fmt.Sprintf("input missing for stage %s item %d: %s", e.Stage, e.Index, e.Reason)
}

// TranscriptionFailedError is returned when any audio artifact could not be transcribed.
type TranscriptionFailedError struct {
	Index int
	Cause error
}

func (e *TranscriptionFailedError) Error() string {
	return fmt.Sprintf("transcription failed for artifact %d: %v", e.Index, e.Cause)
}

func (e *TranscriptionFailedError) Unwrap() error {
	return e.Cause
}

// FeedbackServiceFailedError is returned when the feedback call fails.
type FeedbackServiceFailedError struct {
	Cause error
}

func (e *FeedbackServiceFailedError) Error() string {
	return fmt.Sprintf("feedback service failed: %v", e.Cause)
}

func (e *FeedbackServiceFailedError) Unwrap() error {
	return e.Cause
}

// FeedbackParseFailedError is returned when the feedback payload cannot be decoded.
type FeedbackParseFailedError struct {
	RawText string
	Cause   error
}

func (e *FeedbackParseFailedError) Error() string {
	return fmt.Sprintf("feedback payload could not be parsed: %v", e.Cause)
}

func (e *FeedbackParseFailedError) Unwrap() error {
	return e.Cause
}

// PersistFailedError is returned when a finished record could not be stored.
type PersistFailedError struct {
	SessionID string
	Cause     error
}

func (e *PersistFailedError) Error() string {
	return fmt.Sprintf("failed to persist session %s: %v", e.SessionID, e.Cause)
}

func (e *PersistFailedError) Unwrap() error {
	return e.Cause
}
