package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/voice-coach/internal/assessment"
	"github.com/jonathan/voice-coach/internal/types"
)

// defaultTerminationReason is used when the client sends no reason.
const defaultTerminationReason = "proctoring violation"

type startAssessmentRequest struct {
	Type types.SessionType `json:"type" validate:"required,oneof=Technical HR English Communication"`
}

type terminateRequest struct {
	Reason string `json:"reason"`
}

// artifactInput is one answer as a client may send it. Stage, prompt text and
// expected answer are always taken from the assessment itself.
type artifactInput struct {
	Kind     types.ArtifactKind `json:"kind"`
	Audio    []byte             `json:"audio,omitempty"`
	MimeType string             `json:"mime_type,omitempty"`
	Text     string             `json:"text,omitempty"`
	Choice   string             `json:"choice,omitempty"`
}

type submitStageRequest struct {
	Artifacts []artifactInput `json:"artifacts"`
}

// promptView is a prompt without its expected answer.
type promptView struct {
	Text          string   `json:"text"`
	Options       []string `json:"options,omitempty"`
	AudioURL      string   `json:"audio_url,omitempty"`
	Story         string   `json:"story,omitempty"`
	StoryAudioURL string   `json:"story_audio_url,omitempty"`
}

type stageView struct {
	Name      string               `json:"name"`
	Accepts   []types.ArtifactKind `json:"accepts"`
	Prompts   []promptView         `json:"prompts"`
	Completed bool                 `json:"completed"`
}

// assessmentView is what clients see of a draft.
type assessmentView struct {
	ID          string            `json:"id"`
	Type        types.SessionType `json:"type"`
	State       assessment.State  `json:"state"`
	ActiveStage string            `json:"active_stage,omitempty"`
	Stages      []stageView       `json:"stages"`
	CreatedAt   time.Time         `json:"created_at"`
}

func newAssessmentView(draft *assessment.Draft) assessmentView {
	c := draft.Controller
	view := assessmentView{
		ID:        draft.ID,
		Type:      c.Type,
		State:     c.State(),
		Stages:    make([]stageView, 0, len(c.Stages)),
		CreatedAt: draft.CreatedAt,
	}
	if active := c.ActiveStage(); active != nil {
		view.ActiveStage = active.Name
	}

	for i, stage := range c.Stages {
		prompts := make([]promptView, 0, len(stage.Prompts))
		for _, p := range stage.Prompts {
			prompts = append(prompts, promptView{
				Text:          p.Text,
				Options:       p.Options,
				AudioURL:      p.AudioURL,
				Story:         p.Story,
				StoryAudioURL: p.StoryAudioURL,
			})
		}
		view.Stages = append(view.Stages, stageView{
			Name:      stage.Name,
			Accepts:   stage.Accepts,
			Prompts:   prompts,
			Completed: c.StageCompleted(i),
		})
	}
	return view
}

// handleStartAssessment picks a question set and opens a draft in its first stage.
func (s *Server) handleStartAssessment(w http.ResponseWriter, r *http.Request) {
	practice, ok := requirePractice(w, r)
	if !ok {
		return
	}

	var req startAssessmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	draft, err := s.assessments.Start(r.Context(), practice, req.Type)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, newAssessmentView(draft))
}

func (s *Server) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	practice, ok := requirePractice(w, r)
	if !ok {
		return
	}

	draft, err := s.assessments.Get(r.Context(), practice, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, newAssessmentView(draft))
}

// handleSubmitStage completes the active stage. Answers arrive either as JSON
// or as multipart form data with one indexed field per prompt.
func (s *Server) handleSubmitStage(w http.ResponseWriter, r *http.Request) {
	practice, ok := requirePractice(w, r)
	if !ok {
		return
	}

	var (
		artifacts []types.Artifact
		err       error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		artifacts, err = s.multipartArtifacts(w, r)
		if err != nil {
			writeError(w, err)
			return
		}
	} else {
		var req submitStageRequest
		if !decodeBody(w, r, &req) {
			return
		}
		artifacts = make([]types.Artifact, 0, len(req.Artifacts))
		for _, in := range req.Artifacts {
			artifacts = append(artifacts, types.Artifact{
				Kind:     in.Kind,
				Audio:    in.Audio,
				MimeType: in.MimeType,
				Text:     in.Text,
				Choice:   in.Choice,
			})
		}
	}

	draft, err := s.assessments.SubmitStage(r.Context(), practice, r.PathValue("id"), r.PathValue("stage"), artifacts)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, newAssessmentView(draft))
}

// multipartArtifacts reads audio_N, text_N or choice_N for N = 0, 1, ... until
// none is present. Clips sent as repeated "audio" files follow in order.
func (s *Server) multipartArtifacts(w http.ResponseWriter, r *http.Request) ([]types.Artifact, error) {
	if err := s.parseMultipart(w, r); err != nil {
		return nil, err
	}
	form := r.MultipartForm

	var artifacts []types.Artifact
	for i := 0; ; i++ {
		if files := form.File[fmt.Sprintf("audio_%d", i)]; len(files) > 0 {
			a, err := audioArtifact(files[0])
			if err != nil {
				return nil, err
			}
			artifacts = append(artifacts, a)
			continue
		}
		if v, ok := form.Value[fmt.Sprintf("text_%d", i)]; ok && len(v) > 0 {
			artifacts = append(artifacts, types.Artifact{Kind: types.KindText, Text: v[0]})
			continue
		}
		if v, ok := form.Value[fmt.Sprintf("choice_%d", i)]; ok && len(v) > 0 {
			artifacts = append(artifacts, types.Artifact{Kind: types.KindChoice, Choice: v[0]})
			continue
		}
		break
	}

	for _, fh := range form.File["audio"] {
		a, err := audioArtifact(fh)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

func audioArtifact(fh *multipart.FileHeader) (types.Artifact, error) {
	f, err := fh.Open()
	if err != nil {
		return types.Artifact{}, &ErrValidation{Field: fh.Filename, Message: "failed to open upload"}
	}
	defer f.Close()

	audio, err := io.ReadAll(f)
	if err != nil {
		return types.Artifact{}, &ErrValidation{Field: fh.Filename, Message: "failed to read upload"}
	}
	return types.Artifact{Kind: types.KindAudio, Audio: audio, MimeType: fh.Header.Get("Content-Type")}, nil
}

// handleAnalyze scores a completed assessment and returns the stored record.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	practice, ok := requirePractice(w, r)
	if !ok {
		return
	}

	record, err := s.assessments.Analyze(r.Context(), practice, r.PathValue("id"), nil)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, record)
}

// handleAnalyzeStream is handleAnalyze with progress sent as server-sent events.
// Failures are reported as an error event since the status line is already out.
func (s *Server) handleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	practice, ok := requirePractice(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	// Reject unknown or foreign assessments before committing to a stream
	if _, err := s.assessments.Get(r.Context(), practice, id); err != nil {
		writeError(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}

	record, err := s.assessments.Analyze(r.Context(), practice, id, sse.WriteProgress)
	if err != nil {
		log.Printf("[assessment] streamed analysis of %s failed: %v", id, err)
		sse.WriteError(err)
		return
	}
	sse.WriteComplete(record)
}

// handleTerminate ends an assessment after a proctoring failure.
func (s *Server) handleTerminate(w http.ResponseWriter, r *http.Request) {
	practice, ok := requirePractice(w, r)
	if !ok {
		return
	}

	// The body is optional
	var req terminateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		errorJSON(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		req.Reason = defaultTerminationReason
	}

	record, err := s.assessments.Terminate(r.Context(), practice, r.PathValue("id"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, record)
}

// handleCancelAssessment discards a draft without storing anything.
func (s *Server) handleCancelAssessment(w http.ResponseWriter, r *http.Request) {
	practice, ok := requirePractice(w, r)
	if !ok {
		return
	}

	if err := s.assessments.Cancel(r.Context(), practice, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
