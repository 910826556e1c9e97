package server

import (
	"fmt"
	"math"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/voice-coach/internal/assessment"
	"github.com/jonathan/voice-coach/internal/types"
)

func (e *testEnv) startAssessment(t *testing.T, token string, sessionType types.SessionType) assessmentView {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/assessments", token, map[string]any{"type": sessionType})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeResponse[assessmentView](t, w)
}

func stageByName(t *testing.T, view assessmentView, name string) stageView {
	t.Helper()
	for _, s := range view.Stages {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("stage %s not in assessment", name)
	return stageView{}
}

// textAnswers builds one typed answer per prompt of stage.
func textAnswers(stage stageView) map[string]any {
	artifacts := make([]map[string]any, 0, len(stage.Prompts))
	for i := range stage.Prompts {
		artifacts = append(artifacts, map[string]any{"kind": "text", "text": fmt.Sprintf("answer %d to %s", i, stage.Name)})
	}
	return map[string]any{"artifacts": artifacts}
}

func (e *testEnv) submit(t *testing.T, token, id, stage string, body any) assessmentView {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/assessments/"+id+"/stages/"+stage, token, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decodeResponse[assessmentView](t, w)
}

// completeInterview answers every interview stage with text.
func (e *testEnv) completeInterview(t *testing.T, token string, view assessmentView) {
	t.Helper()
	for _, name := range []string{assessment.StageIntroduction, assessment.StageCore, assessment.StageClosing} {
		view = e.submit(t, token, view.ID, name, textAnswers(stageByName(t, view, name)))
	}
	require.Equal(t, assessment.StateAnalyzing, view.State)
}

func TestAssessment_InterviewFlow(t *testing.T) {
	env := newTestServer(t)
	token := env.register(t, "Ada", "ada@example.com")

	view := env.startAssessment(t, token, types.SessionHR)
	assert.Equal(t, types.SessionHR, view.Type)
	assert.Equal(t, assessment.StageIntroduction, view.ActiveStage)
	require.Len(t, view.Stages, 3)
	core := stageByName(t, view, assessment.StageCore)
	assert.Len(t, core.Prompts, 4)

	intro := env.submit(t, token, view.ID, assessment.StageIntroduction, textAnswers(stageByName(t, view, assessment.StageIntroduction)))
	assert.Equal(t, assessment.StageCore, intro.ActiveStage)
	assert.True(t, intro.Stages[0].Completed)
	assert.False(t, intro.Stages[1].Completed)

	env.submit(t, token, view.ID, assessment.StageCore, textAnswers(core))
	done := env.submit(t, token, view.ID, assessment.StageClosing, textAnswers(stageByName(t, view, assessment.StageClosing)))
	assert.Equal(t, assessment.StateAnalyzing, done.State)
	assert.Empty(t, done.ActiveStage)

	w := env.do(t, http.MethodPost, "/api/assessments/"+view.ID+"/analyze", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	record := decodeResponse[types.SessionRecord](t, w)
	assert.Equal(t, types.SessionHR, record.Type)
	assert.Equal(t, 80, record.OverallScore)
	assert.Len(t, record.Items, 6)
	assert.Equal(t, "answer 0 to introduction", record.Items[0].AnswerText)
	assert.NotEmpty(t, record.Report)

	assert.Equal(t, 1, env.db.sessionCount("ada@example.com"))

	// The draft is gone once results are stored
	again := env.do(t, http.MethodPost, "/api/assessments/"+view.ID+"/analyze", token, nil)
	assert.Equal(t, http.StatusNotFound, again.Code)
	assert.Equal(t, 1, env.db.sessionCount("ada@example.com"))
}

func TestAssessment_CommunicationFlow(t *testing.T) {
	env := newTestServer(t)
	token := env.register(t, "Ada", "ada@example.com")

	view := env.startAssessment(t, token, types.SessionCommunication)
	assert.Equal(t, assessment.StageReading, view.ActiveStage)

	comprehension := stageByName(t, view, assessment.StageComprehension)
	require.NotEmpty(t, comprehension.Prompts)
	for _, p := range comprehension.Prompts {
		assert.NotEmpty(t, p.Options)
		assert.NotEmpty(t, p.Story)
	}

	get := env.do(t, http.MethodGet, "/api/assessments/"+view.ID, token, nil)
	require.Equal(t, http.StatusOK, get.Code)
	assert.NotContains(t, get.Body.String(), "expected")

	// Reading clips as indexed multipart files
	reading := stageByName(t, view, assessment.StageReading)
	clips := make([]clip, 0, len(reading.Prompts))
	for i := range reading.Prompts {
		clips = append(clips, clip{field: fmt.Sprintf("audio_%d", i), data: fmt.Sprintf("reading %d", i)})
	}
	w := env.upload(t, "/api/assessments/"+view.ID+"/stages/reading", token, clips, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Repetition clips as base64 JSON
	repetition := stageByName(t, view, assessment.StageRepetition)
	artifacts := make([]map[string]any, 0, len(repetition.Prompts))
	for i := range repetition.Prompts {
		artifacts = append(artifacts, map[string]any{"kind": "audio", "audio": []byte(fmt.Sprintf("repeat %d", i)), "mime_type": "audio/webm"})
	}
	env.submit(t, token, view.ID, assessment.StageRepetition, map[string]any{"artifacts": artifacts})

	choices := map[string]string{}
	for i, p := range comprehension.Prompts {
		choices[fmt.Sprintf("choice_%d", i)] = p.Options[0]
	}
	w = env.upload(t, "/api/assessments/"+view.ID+"/stages/comprehension", token, nil, choices)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/assessments/"+view.ID+"/analyze", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	record := decodeResponse[types.SessionRecord](t, w)

	require.NotNil(t, record.StageScores)
	assert.Equal(t, 70, record.StageScores.Reading)
	assert.Equal(t, 90, record.StageScores.Repetition)
	want := int(math.Round(0.4*70 + 0.4*90 + 0.2*float64(record.StageScores.Comprehension)))
	assert.Equal(t, want, record.StageScores.Overall)
	assert.Equal(t, want, record.OverallScore)
	assert.Len(t, record.Items, len(reading.Prompts)+len(repetition.Prompts)+len(comprehension.Prompts))
	assert.Equal(t, "said: reading 0", record.Items[0].AnswerText)
	assert.Equal(t, "## Communication\n\nGood rhythm.", record.Report)
	assert.Equal(t, len(reading.Prompts)+len(repetition.Prompts), env.transcriber.calls)
}

func TestAssessment_SubmitErrors(t *testing.T) {
	env := newTestServer(t)
	token := env.register(t, "Ada", "ada@example.com")
	view := env.startAssessment(t, token, types.SessionTechnical)
	core := stageByName(t, view, assessment.StageCore)
	intro := stageByName(t, view, assessment.StageIntroduction)

	tests := []struct {
		name       string
		stage      string
		body       any
		wantStatus int
	}{
		{
			name:       "stage ahead of the active one",
			stage:      assessment.StageCore,
			body:       textAnswers(core),
			wantStatus: http.StatusConflict,
		},
		{
			name:       "unknown stage",
			stage:      "warmup",
			body:       textAnswers(intro),
			wantStatus: http.StatusConflict,
		},
		{
			name:       "no answers",
			stage:      assessment.StageIntroduction,
			body:       map[string]any{"artifacts": []any{}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "blank text",
			stage:      assessment.StageIntroduction,
			body:       map[string]any{"artifacts": []any{map[string]any{"kind": "text", "text": "   "}}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "choice where speech is expected",
			stage:      assessment.StageIntroduction,
			body:       map[string]any{"artifacts": []any{map[string]any{"kind": "choice", "choice": "A"}}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty audio",
			stage:      assessment.StageIntroduction,
			body:       map[string]any{"artifacts": []any{map[string]any{"kind": "audio"}}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid JSON",
			stage:      assessment.StageIntroduction,
			body:       "{",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/assessments/"+view.ID+"/stages/"+tt.stage, token, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}

	// None of the rejected submissions moved the assessment
	get := env.do(t, http.MethodGet, "/api/assessments/"+view.ID, token, nil)
	current := decodeResponse[assessmentView](t, get)
	assert.Equal(t, assessment.StageIntroduction, current.ActiveStage)
}

func TestAssessment_AnalyzeBeforeComplete(t *testing.T) {
	env := newTestServer(t)
	token := env.register(t, "Ada", "ada@example.com")
	view := env.startAssessment(t, token, types.SessionEnglish)

	w := env.do(t, http.MethodPost, "/api/assessments/"+view.ID+"/analyze", token, nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Zero(t, env.db.sessionCount("ada@example.com"))
}

func TestAssessment_FailedAnalysisStoresNothing(t *testing.T) {
	env := newTestServer(t)
	token := env.register(t, "Ada", "ada@example.com")
	view := env.startAssessment(t, token, types.SessionHR)

	env.submit(t, token, view.ID, assessment.StageIntroduction, map[string]any{
		"artifacts": []any{map[string]any{"kind": "audio", "audio": []byte("bad"), "mime_type": "audio/webm"}},
	})
	env.submit(t, token, view.ID, assessment.StageCore, textAnswers(stageByName(t, view, assessment.StageCore)))
	env.submit(t, token, view.ID, assessment.StageClosing, textAnswers(stageByName(t, view, assessment.StageClosing)))

	w := env.do(t, http.MethodPost, "/api/assessments/"+view.ID+"/analyze", token, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())
	assert.Zero(t, env.db.sessionCount("ada@example.com"))

	get := env.do(t, http.MethodGet, "/api/assessments/"+view.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, get.Code)
}

func TestAssessment_PersistFailure(t *testing.T) {
	env := newTestServer(t)
	token := env.register(t, "Ada", "ada@example.com")
	view := env.startAssessment(t, token, types.SessionHR)
	env.completeInterview(t, token, view)
	env.db.appendErr = assert.AnError

	w := env.do(t, http.MethodPost, "/api/assessments/"+view.ID+"/analyze", token, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}

func TestAssessment_Cancel(t *testing.T) {
	env := newTestServer(t)
	token := env.register(t, "Ada", "ada@example.com")
	view := env.startAssessment(t, token, types.SessionTechnical)

	w := env.do(t, http.MethodDelete, "/api/assessments/"+view.ID, token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	get := env.do(t, http.MethodGet, "/api/assessments/"+view.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, get.Code)
	assert.Zero(t, env.db.sessionCount("ada@example.com"))

	missing := env.do(t, http.MethodDelete, "/api/assessments/"+view.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestAssessment_Terminate(t *testing.T) {
	env := newTestServer(t)
	token := env.register(t, "Ada", "ada@example.com")

	t.Run("with reason", func(t *testing.T) {
		view := env.startAssessment(t, token, types.SessionCommunication)
		w := env.do(t, http.MethodPost, "/api/assessments/"+view.ID+"/terminate", token, map[string]string{"reason": "left full screen"})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		record := decodeResponse[types.SessionRecord](t, w)
		assert.True(t, record.Terminated)
		assert.Zero(t, record.OverallScore)
		assert.Equal(t, assessment.TerminationReport, record.Report)
		require.NotNil(t, record.StageScores)
	})

	t.Run("without body", func(t *testing.T) {
		view := env.startAssessment(t, token, types.SessionHR)
		w := env.do(t, http.MethodPost, "/api/assessments/"+view.ID+"/terminate", token, nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		record := decodeResponse[types.SessionRecord](t, w)
		assert.True(t, record.Terminated)
		assert.Nil(t, record.StageScores)

		after := env.do(t, http.MethodPost, "/api/assessments/"+view.ID+"/terminate", token, nil)
		assert.Equal(t, http.StatusNotFound, after.Code)
	})

	t.Run("after all stages", func(t *testing.T) {
		view := env.startAssessment(t, token, types.SessionHR)
		env.completeInterview(t, token, view)

		w := env.do(t, http.MethodPost, "/api/assessments/"+view.ID+"/terminate", token, nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	assert.Equal(t, 2, env.db.sessionCount("ada@example.com"))
}

func TestAssessment_OwnedByAnotherUser(t *testing.T) {
	env := newTestServer(t)
	ada := env.register(t, "Ada", "ada@example.com")
	grace := env.register(t, "Grace", "grace@example.com")
	view := env.startAssessment(t, ada, types.SessionHR)

	requests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/assessments/" + view.ID, nil},
		{http.MethodPost, "/api/assessments/" + view.ID + "/stages/introduction", textAnswers(stageByName(t, view, assessment.StageIntroduction))},
		{http.MethodPost, "/api/assessments/" + view.ID + "/analyze", nil},
		{http.MethodPost, "/api/assessments/" + view.ID + "/terminate", nil},
		{http.MethodDelete, "/api/assessments/" + view.ID, nil},
	}
	for _, r := range requests {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			w := env.do(t, r.method, r.path, grace, r.body)
			assert.Equal(t, http.StatusForbidden, w.Code)
		})
	}

	get := env.do(t, http.MethodGet, "/api/assessments/"+view.ID, ada, nil)
	current := decodeResponse[assessmentView](t, get)
	assert.Equal(t, assessment.StageIntroduction, current.ActiveStage)
}

func TestAssessment_StartValidation(t *testing.T) {
	env := newTestServer(t)
	token := env.register(t, "Ada", "ada@example.com")

	for _, body := range []any{map[string]string{"type": "Poetry"}, map[string]string{}, "{"} {
		w := env.do(t, http.MethodPost, "/api/assessments", token, body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestAssessment_AnalyzeStream(t *testing.T) {
	env := newTestServer(t)
	token := env.register(t, "Ada", "ada@example.com")

	t.Run("success", func(t *testing.T) {
		view := env.startAssessment(t, token, types.SessionHR)
		env.completeInterview(t, token, view)

		w := env.do(t, http.MethodPost, "/api/assessments/"+view.ID+"/analyze/stream", token, nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
		body := w.Body.String()
		assert.Equal(t, 12, strings.Count(body, "event: progress\n"))
		assert.Contains(t, body, `"step":"score"`)
		assert.Contains(t, body, "event: complete\n")
		assert.Contains(t, body, `"overall_score":80`)
		assert.Less(t, strings.LastIndex(body, "event: progress"), strings.Index(body, "event: complete"))
	})

	t.Run("failure", func(t *testing.T) {
		view := env.startAssessment(t, token, types.SessionHR)
		env.completeInterview(t, token, view)
		env.coach.err = assert.AnError
		defer func() { env.coach.err = nil }()

		w := env.do(t, http.MethodPost, "/api/assessments/"+view.ID+"/analyze/stream", token, nil)

		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, "event: error\n")
		assert.Contains(t, body, `"status":502`)
		assert.NotContains(t, body, "event: complete")
	})

	t.Run("unknown assessment", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/assessments/does-not-exist/analyze/stream", token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	})
}
