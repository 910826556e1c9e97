package assessment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/voice-coach/internal/feedback"
	"github.com/jonathan/voice-coach/internal/transcription"
	"github.com/jonathan/voice-coach/internal/types"
)

// Scorer is the feedback surface the aggregator depends on.
type Scorer interface {
	ScoreAnswer(ctx context.Context, sessionType types.SessionType, question, answer string) (*types.SingleScoreFeedback, error)
	ScoreCommunication(ctx context.Context, in feedback.CommunicationInput) (*types.MultiStageFeedback, error)
}

// Weights combine communication stage scores into the overall score.
type Weights struct {
	Reading       float64
	Repetition    float64
	Comprehension float64
}

// DefaultWeights is 40% reading, 40% repetition, 20% comprehension.
var DefaultWeights = Weights{Reading: 0.4, Repetition: 0.4, Comprehension: 0.2}

// ProgressEvent reports aggregation progress
type ProgressEvent struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
}

// ProgressCallback is called as aggregation advances
type ProgressCallback func(event ProgressEvent)

// Aggregator turns a completed artifact set into a SessionRecord.
type Aggregator struct {
	Transcriber transcription.Client
	Scorer      Scorer
	Weights     Weights
	// CallTimeout bounds each transcription call. Zero means no extra bound.
	CallTimeout time.Duration
	Now         func() time.Time
	NewID       func() string
}

// NewAggregator creates an aggregator with the default weights, wall clock and UUIDs.
func NewAggregator(transcriber transcription.Client, scorer Scorer) *Aggregator {
	return &Aggregator{
		Transcriber: transcriber,
		Scorer:      scorer,
		Weights:     DefaultWeights,
		Now:         time.Now,
		NewID:       func() string { return uuid.New().String() },
	}
}

// Aggregate scores artifacts for sessionType. Any failed sub-call aborts the
// whole aggregation and no record is returned.
func (a *Aggregator) Aggregate(ctx context.Context, sessionType types.SessionType, artifacts []types.Artifact, onProgress ProgressCallback) (*types.SessionRecord, error) {
	if onProgress == nil {
		onProgress = func(ProgressEvent) {}
	}

	var (
		record *types.SessionRecord
		err    error
	)
	if sessionType.IsMultiStage() {
		record, err = a.aggregateCommunication(ctx, artifacts, onProgress)
	} else {
		record, err = a.aggregateInterview(ctx, sessionType, artifacts, onProgress)
	}
	if err != nil {
		return nil, err
	}

	record.ID = a.NewID()
	record.Type = sessionType
	record.Date = a.Now().UTC()
	return record, nil
}

// aggregateInterview scores each answer on its own, in stage order.
func (a *Aggregator) aggregateInterview(ctx context.Context, sessionType types.SessionType, artifacts []types.Artifact, onProgress ProgressCallback) (*types.SessionRecord, error) {
	items := make([]types.ScoredItem, 0, len(artifacts))
	scores := make([]int, 0, len(artifacts))

	for i, artifact := range artifacts {
		answer, err := a.answerText(ctx, i, artifact)
		if err != nil {
			return nil, err
		}
		onProgress(ProgressEvent{Step: "transcribe", Message: fmt.Sprintf("answer %d ready", i+1), Done: i + 1, Total: len(artifacts)})

		item := types.ScoredItem{
			Stage:      artifact.Stage,
			PromptText: artifact.PromptText,
			AnswerText: answer,
			Kind:       artifact.Kind,
		}

		if artifact.Kind == types.KindChoice {
			scoreChoice(&item, artifact)
		} else {
			fb, err := a.Scorer.ScoreAnswer(ctx, sessionType, artifact.PromptText, answer)
			if err != nil {
				return nil, feedbackError(err)
			}
			item.Score = fb.Score
			item.Clarity = fb.Clarity
			item.FillerWords = fb.FillerWords
			item.Pace = fb.Pace
			item.Strengths = fb.Strengths
			item.Improvements = fb.Improvements
		}
		onProgress(ProgressEvent{Step: "score", Message: fmt.Sprintf("answer %d scored", i+1), Done: i + 1, Total: len(artifacts)})

		items = append(items, item)
		scores = append(scores, item.Score)
	}

	return &types.SessionRecord{
		OverallScore: roundMean(scores),
		Items:        items,
		Report:       interviewReport(items),
	}, nil
}

// aggregateCommunication transcribes every clip concurrently, then makes one
// batched feedback call. Comprehension is scored locally.
func (a *Aggregator) aggregateCommunication(ctx context.Context, artifacts []types.Artifact, onProgress ProgressCallback) (*types.SessionRecord, error) {
	var clipIdx []int
	for i, artifact := range artifacts {
		if artifact.Kind == types.KindAudio {
			clipIdx = append(clipIdx, i)
		}
	}

	transcripts := make([]string, len(artifacts))
	if len(clipIdx) > 0 {
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(len(clipIdx))
		for _, idx := range clipIdx {
			g.Go(func() error {
				text, err := a.transcribe(gCtx, artifacts[idx])
				if err != nil {
					return &TranscriptionFailedError{Index: idx, Cause: err}
				}
				transcripts[idx] = text
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	onProgress(ProgressEvent{Step: "transcribe", Message: "all clips transcribed", Done: len(clipIdx), Total: len(clipIdx)})

	var (
		readingItems, repetitionItems, comprehensionItems []types.ScoredItem
		input                                             feedback.CommunicationInput
	)
	for i, artifact := range artifacts {
		item := types.ScoredItem{Stage: artifact.Stage, PromptText: artifact.PromptText, Kind: artifact.Kind}
		switch {
		case artifact.Kind == types.KindChoice:
			scoreChoice(&item, artifact)
			comprehensionItems = append(comprehensionItems, item)
			input.Comprehension = append(input.Comprehension, feedback.ComprehensionResult{
				Question: artifact.PromptText,
				Selected: artifact.Choice,
				Correct:  *item.Correct,
			})
		case artifact.Stage == StageRepetition:
			item.AnswerText = transcripts[i]
			repetitionItems = append(repetitionItems, item)
			input.Repetition = append(input.Repetition, feedback.ClipResult{OriginalText: artifact.PromptText, TranscribedText: transcripts[i]})
		default:
			item.AnswerText = answerOr(transcripts[i], artifact.Text)
			readingItems = append(readingItems, item)
			input.Reading = append(input.Reading, feedback.ClipResult{OriginalText: artifact.PromptText, TranscribedText: item.AnswerText})
		}
	}

	comprehension := roundMean(itemScores(comprehensionItems))
	input.ComprehensionScore = comprehension

	fb, err := a.Scorer.ScoreCommunication(ctx, input)
	if err != nil {
		return nil, feedbackError(err)
	}
	onProgress(ProgressEvent{Step: "score", Message: "communication assessment scored", Done: 1, Total: 1})

	reading := applyStageScores(readingItems, fb.ReadingItems, fb.Scores.Reading)
	repetition := applyStageScores(repetitionItems, fb.RepetitionItems, fb.Scores.Repetition)

	stageScores := &types.StageScores{
		Reading:       reading,
		Repetition:    repetition,
		Comprehension: comprehension,
	}
	stageScores.Overall = a.Weights.overall(stageScores)

	items := make([]types.ScoredItem, 0, len(artifacts))
	items = append(items, readingItems...)
	items = append(items, repetitionItems...)
	items = append(items, comprehensionItems...)

	return &types.SessionRecord{
		OverallScore: stageScores.Overall,
		Items:        items,
		Report:       fb.ReportText,
		StageScores:  stageScores,
	}, nil
}

// answerText resolves the answer for one artifact.
func (a *Aggregator) answerText(ctx context.Context, index int, artifact types.Artifact) (string, error) {
	switch artifact.Kind {
	case types.KindAudio:
		text, err := a.transcribe(ctx, artifact)
		if err != nil {
			return "", &TranscriptionFailedError{Index: index, Cause: err}
		}
		return text, nil
	case types.KindChoice:
		return artifact.Choice, nil
	default:
		return artifact.Text, nil
	}
}

func (a *Aggregator) transcribe(ctx context.Context, artifact types.Artifact) (string, error) {
	if a.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.CallTimeout)
		defer cancel()
	}
	return a.Transcriber.Transcribe(ctx, artifact.Audio, artifact.MimeType)
}

// overall applies the weights and rounds to the nearest integer.
func (w Weights) overall(s *types.StageScores) int {
	v := w.Reading*float64(s.Reading) + w.Repetition*float64(s.Repetition) + w.Comprehension*float64(s.Comprehension)
	return clampScore(int(math.Round(v)))
}

// ImpliedOverall returns the overall score that record's scores determine:
// the weighted stage scores for Communication, round(mean(item scores))
// otherwise, and 0 for a terminated session. ok is false when the record
// carries no scores to derive it from.
func (w Weights) ImpliedOverall(record *types.SessionRecord) (overall int, ok bool) {
	if record.Terminated {
		return 0, true
	}
	if record.Type.IsMultiStage() {
		stages := record.StageScores
		if stages == nil {
			if len(record.Items) == 0 {
				return 0, false
			}
			stages = stageScoresOf(record.Items)
		}
		return w.overall(stages), true
	}
	if len(record.Items) == 0 {
		return 0, false
	}
	return roundMean(itemScores(record.Items)), true
}

// stageScoresOf averages communication items per stage.
func stageScoresOf(items []types.ScoredItem) *types.StageScores {
	byStage := map[string][]int{}
	for _, item := range items {
		byStage[item.Stage] = append(byStage[item.Stage], item.Score)
	}
	return &types.StageScores{
		Reading:       roundMean(byStage[StageReading]),
		Repetition:    roundMean(byStage[StageRepetition]),
		Comprehension: roundMean(byStage[StageComprehension]),
	}
}

// applyStageScores sets item scores from the per-item response when it covers
// every item, otherwise from the stage score, and returns the stage score.
func applyStageScores(items []types.ScoredItem, perItem []int, stageScore int) int {
	if len(items) == 0 {
		return stageScore
	}
	if len(perItem) == len(items) {
		for i := range items {
			items[i].Score = clampScore(perItem[i])
		}
		return roundMean(itemScores(items))
	}
	for i := range items {
		items[i].Score = clampScore(stageScore)
	}
	return clampScore(stageScore)
}

func scoreChoice(item *types.ScoredItem, artifact types.Artifact) {
	correct := artifact.Expected != "" && strings.TrimSpace(artifact.Choice) == artifact.Expected
	item.Selected = artifact.Choice
	item.AnswerText = artifact.Choice
	item.Correct = &correct
	if correct {
		item.Score = 100
	} else {
		item.Score = 0
	}
}

// feedbackError maps feedback package errors onto the aggregation taxonomy.
func feedbackError(err error) error {
	var pe *feedback.ParseError
	if errors.As(err, &pe) {
		return &FeedbackParseFailedError{RawText: pe.RawText, Cause: pe.Cause}
	}
	return &FeedbackServiceFailedError{Cause: err}
}

func itemScores(items []types.ScoredItem) []int {
	scores := make([]int, len(items))
	for i, item := range items {
		scores[i] = item.Score
	}
	return scores
}

// roundMean is round(mean(scores)), 0 for no scores.
func roundMean(scores []int) int {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return clampScore(int(math.Round(float64(sum) / float64(len(scores)))))
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func answerOr(transcript, text string) string {
	if transcript != "" {
		return transcript
	}
	return text
}

// interviewReport writes a short markdown report from per-answer feedback.
func interviewReport(items []types.ScoredItem) string {
	var sb strings.Builder
	sb.WriteString("## Answer Breakdown\n")
	for i, item := range items {
		sb.WriteString(fmt.Sprintf("\n### %d. %s (%d/100)\n", i+1, item.PromptText, item.Score))
		if len(item.Strengths) > 0 {
			sb.WriteString("\n**Strengths**\n\n")
			for _, s := range item.Strengths {
				sb.WriteString("- " + s + "\n")
			}
		}
		if len(item.Improvements) > 0 {
			sb.WriteString("\n**Improvements**\n\n")
			for _, s := range item.Improvements {
				sb.WriteString("- " + s + "\n")
			}
		}
	}
	return sb.String()
}
