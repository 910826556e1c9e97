package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/voice-coach/internal/assessment"
	"github.com/jonathan/voice-coach/internal/db"
	"github.com/jonathan/voice-coach/internal/feedback"
	"github.com/jonathan/voice-coach/internal/transcription"
)

// ErrEmailAlreadyExists indicates email is already registered
type ErrEmailAlreadyExists struct {
	Email string
}

func (e *ErrEmailAlreadyExists) Error() string {
	return fmt.Sprintf("email already registered: %s", e.Email)
}

// ErrInvalidCredentials indicates invalid login credentials
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid email or password"
}

// ErrUserNotFound indicates user was not found
type ErrUserNotFound struct {
	UserID uuid.UUID
}

func (e *ErrUserNotFound) Error() string {
	return fmt.Sprintf("user not found: %s", e.UserID)
}

// ErrPasswordMismatch indicates current password is incorrect
type ErrPasswordMismatch struct{}

func (e *ErrPasswordMismatch) Error() string {
	return "current password is incorrect"
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrSessionNotFound indicates no stored session matches the requested ID
type ErrSessionNotFound struct {
	SessionID string
}

func (e *ErrSessionNotFound) Error() string {
	return fmt.Sprintf("session not found: %s", e.SessionID)
}

// ErrForbidden indicates the caller may not act on another user's data
type ErrForbidden struct {
	Resource string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("access to %s denied", e.Resource)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	switch err.(type) {
	case *ErrEmailAlreadyExists:
		return http.StatusConflict
	case *ErrInvalidCredentials, *ErrPasswordMismatch:
		return http.StatusUnauthorized
	case *ErrUserNotFound, *ErrSessionNotFound:
		return http.StatusNotFound
	case *ErrValidation:
		return http.StatusBadRequest
	case *ErrForbidden:
		return http.StatusForbidden
	}

	// Workflow errors arrive wrapped
	var (
		inputMissing  *assessment.InputMissingError
		transcribeErr *assessment.TranscriptionFailedError
		serviceErr    *assessment.FeedbackServiceFailedError
		parseErr      *assessment.FeedbackParseFailedError
		persistErr    *assessment.PersistFailedError
		sttErr        *transcription.Error
		llmServiceErr *feedback.ServiceError
		llmParseErr   *feedback.ParseError
	)
	switch {
	case errors.As(err, &inputMissing):
		return http.StatusBadRequest
	case errors.Is(err, assessment.ErrStageOutOfOrder),
		errors.Is(err, assessment.ErrAlreadyTaken),
		errors.Is(err, assessment.ErrNotReadyForAnalysis),
		errors.Is(err, assessment.ErrFinished),
		errors.Is(err, db.ErrSessionExists):
		return http.StatusConflict
	case errors.Is(err, assessment.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, assessment.ErrForbidden):
		return http.StatusForbidden
	case errors.As(err, &transcribeErr), errors.As(err, &serviceErr), errors.As(err, &parseErr),
		errors.As(err, &sttErr), errors.As(err, &llmServiceErr), errors.As(err, &llmParseErr):
		return http.StatusBadGateway
	case errors.As(err, &persistErr):
		return http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is the error text returned to clients. Internal failures are not echoed.
func publicMessage(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}
