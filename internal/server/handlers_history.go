package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/voice-coach/internal/assessment"
	"github.com/jonathan/voice-coach/internal/rendering"
	"github.com/jonathan/voice-coach/internal/schemas"
	"github.com/jonathan/voice-coach/internal/server/middleware"
	"github.com/jonathan/voice-coach/internal/types"
)

// requirePractice returns the authenticated practice context or writes a 401.
func requirePractice(w http.ResponseWriter, r *http.Request) (*types.Practice, bool) {
	practice, err := middleware.GetPractice(r)
	if err != nil {
		errorJSON(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	return practice, true
}

// ownsEmail reports whether email belongs to the practice owner.
func ownsEmail(practice *types.Practice, email string) bool {
	return strings.EqualFold(strings.TrimSpace(email), practice.Email)
}

// handleGetUserHistory returns a profile with its full session history.
// Users without sessions get the "New User" default.
func (s *Server) handleGetUserHistory(w http.ResponseWriter, r *http.Request) {
	practice, ok := requirePractice(w, r)
	if !ok {
		return
	}

	email := r.PathValue("email")
	if !ownsEmail(practice, email) {
		writeError(w, &ErrForbidden{Resource: "history of " + email})
		return
	}

	history, err := s.db.GetHistory(r.Context(), practice.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, history)
}

// handleAppendSession appends one finished session. The overall score must
// match the session's own scores and the id must be new to the history. The
// average score is recomputed by the store in the same statement.
func (s *Server) handleAppendSession(w http.ResponseWriter, r *http.Request) {
	practice, ok := requirePractice(w, r)
	if !ok {
		return
	}

	var req types.AppendSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	// Stamp what the client may leave out before validating
	record := &req.Session
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Date.IsZero() {
		record.Date = s.now().UTC()
	}
	if record.Items == nil {
		record.Items = []types.ScoredItem{}
	}
	if err := req.Validate(); err != nil {
		errorJSON(w, http.StatusBadRequest, extractValidationErrors(err))
		return
	}
	if err := validateRecordJSON(record); err != nil {
		writeError(w, &ErrValidation{Field: "session", Message: err.Error()})
		return
	}
	if want, ok := assessment.DefaultWeights.ImpliedOverall(record); ok && want != record.OverallScore {
		writeError(w, &ErrValidation{
			Field:   "overall_score",
			Message: fmt.Sprintf("is %d but the session scores give %d", record.OverallScore, want),
		})
		return
	}
	if !ownsEmail(practice, req.Email) {
		writeError(w, &ErrForbidden{Resource: "history of " + req.Email})
		return
	}

	history, err := s.db.AppendSession(r.Context(), req.Username, practice.Email, record)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, history)
}

// validateRecordJSON checks the record's wire form against the stored
// session schema, so history rows always decode.
func validateRecordJSON(record *types.SessionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return schemas.Validate(schemas.SessionRecord, string(data))
}

// handleListSessions returns the caller's history.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	practice, ok := requirePractice(w, r)
	if !ok {
		return
	}

	history, err := s.db.GetHistory(r.Context(), practice.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, history)
}

// handleGetSession returns one of the caller's stored sessions.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	record, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, record)
}

// handleSessionReport renders a stored session as an HTML page, or as
// markdown with ?format=markdown.
func (s *Server) handleSessionReport(w http.ResponseWriter, r *http.Request) {
	record, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(rendering.ReportMarkdown(record)))
		return
	}

	page, err := rendering.RenderReport(record)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}

// loadSession resolves {id} against the caller's history or writes the error.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*types.SessionRecord, bool) {
	practice, ok := requirePractice(w, r)
	if !ok {
		return nil, false
	}

	id := r.PathValue("id")
	record, err := s.db.GetSession(r.Context(), practice.Email, id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if record == nil {
		writeError(w, &ErrSessionNotFound{SessionID: id})
		return nil, false
	}
	return record, true
}
