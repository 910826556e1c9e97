package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/jonathan/voice-coach/internal/rendering"
	"github.com/jonathan/voice-coach/internal/types"
)

// audioFieldNames are the multipart fields a clip may arrive under.
var audioFieldNames = []string{"audio", "file"}

// handleTranscribe turns one uploaded clip into text. The response always
// uses the "text" field whatever the provider returned.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(w, r); err != nil {
		writeError(w, err)
		return
	}

	var (
		file   multipart.File
		header *multipart.FileHeader
		err    error
	)
	for _, name := range audioFieldNames {
		file, header, err = r.FormFile(name)
		if err == nil {
			break
		}
	}
	if file == nil {
		writeError(w, &ErrValidation{Field: "audio", Message: "no audio file provided"})
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, &ErrValidation{Field: "audio", Message: "failed to read upload"})
		return
	}
	if len(audio) == 0 {
		writeError(w, &ErrValidation{Field: "audio", Message: "audio file is empty"})
		return
	}

	ctx, cancel := s.callContext(r)
	defer cancel()
	text, err := s.transcriber.Transcribe(ctx, audio, header.Header.Get("Content-Type"))
	if err != nil {
		log.Printf("[transcribe] %s (%d bytes) failed: %v", header.Filename, len(audio), err)
		writeError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"text": text})
}

// handleAnswerFeedback scores a typed answer outside of an assessment.
func (s *Server) handleAnswerFeedback(w http.ResponseWriter, r *http.Request) {
	if _, ok := requirePractice(w, r); !ok {
		return
	}

	var req types.AnswerFeedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := s.callContext(r)
	defer cancel()
	fb, err := s.coach.ScoreAnswer(ctx, req.SessionType, req.Question, req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}
	if fb.Answer == "" {
		fb.Answer = req.Answer
	}
	jsonResponse(w, http.StatusOK, fb)
}

// studyPlanResponse carries the plan as markdown and as rendered HTML.
type studyPlanResponse struct {
	SessionID string `json:"session_id"`
	Plan      string `json:"plan"`
	PlanHTML  string `json:"plan_html"`
}

// handleStudyPlan asks the LLM for a study plan built from one stored session.
func (s *Server) handleStudyPlan(w http.ResponseWriter, r *http.Request) {
	record, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	ctx, cancel := s.callContext(r)
	defer cancel()
	plan, err := s.coach.CreateStudyPlan(ctx, record)
	if err != nil {
		writeError(w, err)
		return
	}

	html, err := rendering.MarkdownToHTML(plan.Plan)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, studyPlanResponse{SessionID: record.ID, Plan: plan.Plan, PlanHTML: html})
}

// handleProgressSummary asks the LLM to summarize the caller's history.
func (s *Server) handleProgressSummary(w http.ResponseWriter, r *http.Request) {
	practice, ok := requirePractice(w, r)
	if !ok {
		return
	}

	history, err := s.db.GetHistory(r.Context(), practice.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(history.Sessions) == 0 {
		writeError(w, &ErrValidation{Field: "sessions", Message: "no sessions to summarize yet"})
		return
	}

	ctx, cancel := s.callContext(r)
	defer cancel()
	summary, err := s.coach.SummarizeProgress(ctx, history)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, summary)
}

// parseMultipart bounds and parses a multipart body.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &ErrValidation{Field: "body", Message: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)}
		}
		return &ErrValidation{Field: "body", Message: "expected multipart form data"}
	}
	return nil
}
