package types

// FeedbackKind tags the variant held by a Feedback value.
type FeedbackKind string

// Feedback variants
const (
	FeedbackSingleScore FeedbackKind = "single_score"
	FeedbackMultiStage  FeedbackKind = "multi_stage"
)

// SingleScoreFeedback is the LLM assessment of one answer.
type SingleScoreFeedback struct {
	Answer       string   `json:"answer,omitempty"`
	Score        int      `json:"score"`
	Clarity      *int     `json:"clarity,omitempty"`
	FillerWords  *int     `json:"fillerWords,omitempty"`
	Pace         *int     `json:"pace,omitempty"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// MultiStageScores are the stage sub-scores returned for a communication assessment.
type MultiStageScores struct {
	Reading       int  `json:"reading"`
	Repetition    int  `json:"repetition"`
	Comprehension *int `json:"comprehension,omitempty"`
	Overall       *int `json:"overall,omitempty"`
}

// MultiStageFeedback is the LLM assessment of a whole communication session.
type MultiStageFeedback struct {
	Scores MultiStageScores `json:"scores"`
	// ReadingItems and RepetitionItems are optional per-clip scores in prompt order.
	ReadingItems    []int  `json:"readingItems,omitempty"`
	RepetitionItems []int  `json:"repetitionItems,omitempty"`
	ReportText      string `json:"reportText"`
}

// Feedback is a tagged union of the structured payloads the feedback service returns.
// Exactly one of Single or Multi is set, matching Kind.
type Feedback struct {
	Kind   FeedbackKind
	Single *SingleScoreFeedback
	Multi  *MultiStageFeedback
}

// ProgressSummary is the LLM summary of a user's session history.
type ProgressSummary struct {
	Summary string `json:"summary"`
}

// StudyPlan is the LLM study plan generated from one session record.
type StudyPlan struct {
	Plan string `json:"plan"`
}

// AnswerFeedbackRequest is the body of POST /api/feedback/answer.
type AnswerFeedbackRequest struct {
	Question    string      `json:"question" validate:"required"`
	Answer      string      `json:"answer" validate:"required"`
	SessionType SessionType `json:"session_type" validate:"required,oneof=Technical HR English"`
}
