// Package types provides type definitions for structured data used throughout the voice-coach system.
package types

import (
	"fmt"
	"time"
)

// SessionType identifies the kind of practice session.
type SessionType string

// Session types offered by the coach
const (
	SessionTechnical     SessionType = "Technical"
	SessionHR            SessionType = "HR"
	SessionEnglish       SessionType = "English"
	SessionCommunication SessionType = "Communication"
)

// AllSessionTypes lists every supported session type in display order.
var AllSessionTypes = []SessionType{SessionTechnical, SessionHR, SessionEnglish, SessionCommunication}

// ParseSessionType converts a string into a SessionType.
func ParseSessionType(s string) (SessionType, error) {
	for _, t := range AllSessionTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown session type: %q", s)
}

// IsMultiStage reports whether the session is scored as one batched multi-stage assessment.
func (t SessionType) IsMultiStage() bool {
	return t == SessionCommunication
}

// ArtifactKind is the form of user input captured for a prompt.
type ArtifactKind string

// Artifact kinds
const (
	KindAudio  ArtifactKind = "audio"
	KindText   ArtifactKind = "text"
	KindChoice ArtifactKind = "choice"
)

// Artifact is one unit of user input captured for a single prompt.
type Artifact struct {
	Stage      string       `json:"stage"`
	PromptText string       `json:"prompt_text"`
	Kind       ArtifactKind `json:"kind"`
	Audio      []byte       `json:"audio,omitempty"`
	MimeType   string       `json:"mime_type,omitempty"`
	Text       string       `json:"text,omitempty"`
	Choice     string       `json:"choice,omitempty"`
	// Expected is the correct option for choice prompts; it comes from the
	// question bank, never from the client.
	Expected string `json:"expected,omitempty"`
}

// ScoredItem is an artifact after transcription and analysis.
type ScoredItem struct {
	Stage        string       `json:"stage"`
	PromptText   string       `json:"prompt_text"`
	AnswerText   string       `json:"answer_text"`
	Kind         ArtifactKind `json:"kind"`
	Score        int          `json:"score" validate:"min=0,max=100"`
	Clarity      *int         `json:"clarity,omitempty"`
	FillerWords  *int         `json:"filler_words,omitempty"`
	Pace         *int         `json:"pace,omitempty"`
	Strengths    []string     `json:"strengths,omitempty"`
	Improvements []string     `json:"improvements,omitempty"`
	Selected     string       `json:"selected,omitempty"`
	Correct      *bool        `json:"correct,omitempty"`
}

// StageScores holds per-stage sub-scores of a multi-stage assessment.
type StageScores struct {
	Reading       int `json:"reading" validate:"min=0,max=100"`
	Repetition    int `json:"repetition" validate:"min=0,max=100"`
	Comprehension int `json:"comprehension" validate:"min=0,max=100"`
	Overall       int `json:"overall" validate:"min=0,max=100"`
}

// SessionRecord is the persisted outcome of one complete practice session.
type SessionRecord struct {
	ID           string       `json:"id" validate:"required"`
	Type         SessionType  `json:"type" validate:"required,oneof=Technical HR English Communication"`
	Date         time.Time    `json:"date"`
	OverallScore int          `json:"overall_score" validate:"min=0,max=100"`
	Items        []ScoredItem `json:"items" validate:"dive"`
	Report       string       `json:"report,omitempty"`
	StageScores  *StageScores `json:"stage_scores,omitempty"`
	Terminated   bool         `json:"terminated,omitempty"`
}

// Validate validates the SessionRecord using the validator.
func (r *SessionRecord) Validate() error {
	return validate.Struct(r)
}

// UserHistory is a user's profile together with their append-only session list.
type UserHistory struct {
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Sessions []SessionRecord `json:"all_sessions_details"`
	AvgScore float64         `json:"avg_score"`
}

// NewUserHistory returns the empty history served for users with no sessions yet.
func NewUserHistory(email string) *UserHistory {
	return &UserHistory{
		Username: "New User",
		Email:    email,
		Sessions: []SessionRecord{},
		AvgScore: 0,
	}
}

// AppendSessionRequest is the body of POST /api/session.
type AppendSessionRequest struct {
	Username string        `json:"username" validate:"required"`
	Email    string        `json:"email" validate:"required,email"`
	Session  SessionRecord `json:"session" validate:"required"`
}

// Validate validates the AppendSessionRequest using the validator.
func (r *AppendSessionRequest) Validate() error {
	return validate.Struct(r)
}
