// Package feedback scores answers and writes coaching text through an LLM.
// Every response is sanitized, checked against a JSON schema and decoded into
// a typed payload before it leaves this package.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/jonathan/voice-coach/internal/llm"
	"github.com/jonathan/voice-coach/internal/prompts"
	"github.com/jonathan/voice-coach/internal/schemas"
	"github.com/jonathan/voice-coach/internal/types"
)

// DefaultCallTimeout bounds one feedback call, retries included.
const DefaultCallTimeout = 60 * time.Second

// ClipResult pairs a prompt with what the candidate actually said.
type ClipResult struct {
	OriginalText    string `json:"originalText"`
	TranscribedText string `json:"transcribedText"`
}

// ComprehensionResult is one locally scored listening question.
type ComprehensionResult struct {
	Question string `json:"question"`
	Selected string `json:"selected"`
	Correct  bool   `json:"correct"`
}

// CommunicationInput is everything the batched communication call needs.
type CommunicationInput struct {
	Reading            []ClipResult
	Repetition         []ClipResult
	Comprehension      []ComprehensionResult
	ComprehensionScore int
}

// Service talks to the LLM for every evaluation the coach performs.
type Service struct {
	client  llm.Client
	timeout time.Duration
}

// Options configures a Service.
type Options struct {
	// Timeout bounds each call. Zero means DefaultCallTimeout.
	Timeout time.Duration
	// Retry wraps the client with rate-limit backoff when set.
	Retry *llm.RetryPolicy
}

// NewService creates a feedback service over client.
func NewService(client llm.Client, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCallTimeout
	}
	if opts.Retry != nil {
		client = llm.WithRetry(client, *opts.Retry)
	}
	return &Service{client: client, timeout: opts.Timeout}
}

// ScoreAnswer scores one interview answer.
func (s *Service) ScoreAnswer(ctx context.Context, sessionType types.SessionType, question, answer string) (*types.SingleScoreFeedback, error) {
	flagSteering("answer feedback", answer)
	prompt, err := prompts.Render(prompts.KeyAnswerFeedback, map[string]string{
		"SessionType": string(sessionType),
		"Question":    question,
		"Answer":      quoteCandidate("answer", answer),
	})
	if err != nil {
		return nil, &ServiceError{Op: "answer feedback", Cause: err}
	}
	prompt = llm.WithOutputSchema(prompt, llm.AnswerFeedbackSchema())

	raw, err := s.generate(ctx, "answer feedback", prompt, llm.TierStandard)
	if err != nil {
		return nil, err
	}

	fb, err := parseKind(raw, types.FeedbackSingleScore)
	if err != nil {
		return nil, err
	}
	return fb.Single, nil
}

// ScoreCommunication makes the single batched call for a communication session.
func (s *Service) ScoreCommunication(ctx context.Context, in CommunicationInput) (*types.MultiStageFeedback, error) {
	reading, _ := json.Marshal(guardClips("communication feedback", in.Reading))
	repetition, _ := json.Marshal(guardClips("communication feedback", in.Repetition))
	comprehension, _ := json.Marshal(in.Comprehension)

	prompt, err := prompts.Render(prompts.KeyCommunicationFeedback, map[string]string{
		"Reading":       string(reading),
		"Repetition":    string(repetition),
		"Comprehension": fmt.Sprintf("score %d from %s", in.ComprehensionScore, comprehension),
	})
	if err != nil {
		return nil, &ServiceError{Op: "communication feedback", Cause: err}
	}
	prompt = llm.WithOutputSchema(prompt, llm.CommunicationFeedbackSchema())

	raw, err := s.generate(ctx, "communication feedback", prompt, llm.TierAdvanced)
	if err != nil {
		return nil, err
	}

	fb, err := parseKind(raw, types.FeedbackMultiStage)
	if err != nil {
		return nil, err
	}
	return fb.Multi, nil
}

// SummarizeProgress writes an encouraging summary of a user's history.
func (s *Service) SummarizeProgress(ctx context.Context, history *types.UserHistory) (*types.ProgressSummary, error) {
	sessions, err := json.MarshalIndent(history.Sessions, "", "  ")
	if err != nil {
		return nil, &ServiceError{Op: "progress summary", Cause: err}
	}

	prompt, err := prompts.Render(prompts.KeyProgressSummary, map[string]string{
		"AverageScore": strconv.FormatFloat(history.AvgScore, 'f', 1, 64),
		"History":      string(sessions),
	})
	if err != nil {
		return nil, &ServiceError{Op: "progress summary", Cause: err}
	}

	raw, err := s.generate(ctx, "progress summary", prompt, llm.TierLite)
	if err != nil {
		return nil, err
	}

	var summary types.ProgressSummary
	if err := decodeRaw(raw, schemas.ProgressSummary, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// CreateStudyPlan writes a three step plan addressing one session's improvements.
func (s *Service) CreateStudyPlan(ctx context.Context, record *types.SessionRecord) (*types.StudyPlan, error) {
	report, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, &ServiceError{Op: "study plan", Cause: err}
	}

	prompt, err := prompts.Render(prompts.KeyStudyPlan, map[string]string{"Report": string(report)})
	if err != nil {
		return nil, &ServiceError{Op: "study plan", Cause: err}
	}

	raw, err := s.generate(ctx, "study plan", prompt, llm.TierLite)
	if err != nil {
		return nil, err
	}

	var plan types.StudyPlan
	if err := decodeRaw(raw, schemas.StudyPlan, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (s *Service) generate(ctx context.Context, op, prompt string, tier llm.ModelTier) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	raw, err := s.client.GenerateJSON(callCtx, prompt, tier)
	if err != nil {
		log.Printf("[feedback] %s failed after %s: %v", op, time.Since(start).Round(time.Millisecond), err)
		return "", &ServiceError{Op: op, Cause: err}
	}
	return raw, nil
}

func decodeRaw(raw, schema string, out interface{}) error {
	if err := decode(llm.CleanJSONBlock(raw), schema, out); err != nil {
		return &ParseError{RawText: raw, Cause: err}
	}
	return nil
}
