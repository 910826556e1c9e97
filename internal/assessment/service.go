package assessment

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/voice-coach/internal/questions"
	"github.com/jonathan/voice-coach/internal/types"
)

// TerminationReport is the report stored on a proctoring-terminated session.
const TerminationReport = "## Session Terminated\n\nThe session was ended because the proctoring rules were broken (for example, leaving full screen). No answers were scored."

// Draft is an in-progress assessment owned by one user.
type Draft struct {
	ID         string      `json:"id"`
	OwnerID    uuid.UUID   `json:"owner_id"`
	Username   string      `json:"username"`
	Email      string      `json:"email"`
	CreatedAt  time.Time   `json:"created_at"`
	Controller *Controller `json:"controller"`
}

// DraftStore keeps drafts between requests.
type DraftStore interface {
	Save(ctx context.Context, id, owner string, draft *Draft) error
	// Load returns nil, nil when no draft exists.
	Load(ctx context.Context, id string) (*Draft, error)
	Delete(ctx context.Context, id, owner string) error
	// Claim marks id as being analyzed. It returns false if it was already claimed.
	Claim(ctx context.Context, id string) (bool, error)
	IDsByOwner(ctx context.Context, owner string) ([]string, error)
}

// HistoryStore appends finished records to a user's history.
type HistoryStore interface {
	AppendSession(ctx context.Context, username, email string, record *types.SessionRecord) (*types.UserHistory, error)
}

// Recorder receives assessment metrics.
type Recorder interface {
	RecordSession(ctx context.Context, sessionType types.SessionType, overall int, terminated bool)
	RecordAggregation(ctx context.Context, sessionType types.SessionType, d time.Duration, err error)
}

type noopRecorder struct{}

func (noopRecorder) RecordSession(context.Context, types.SessionType, int, bool) {}
func (noopRecorder) RecordAggregation(context.Context, types.SessionType, time.Duration, error) {
}

// Service runs the assessment workflow end to end.
type Service struct {
	drafts     DraftStore
	history    HistoryStore
	picker     *questions.Picker
	aggregator *Aggregator
	metrics    Recorder
	now        func() time.Time
}

// NewService wires the workflow. metrics may be nil.
func NewService(drafts DraftStore, history HistoryStore, picker *questions.Picker, aggregator *Aggregator, metrics Recorder) *Service {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Service{
		drafts:     drafts,
		history:    history,
		picker:     picker,
		aggregator: aggregator,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Start picks a question set and moves a new assessment into its first stage.
func (s *Service) Start(ctx context.Context, owner *types.Practice, sessionType types.SessionType) (*Draft, error) {
	var stages []Stage
	if sessionType.IsMultiStage() {
		set, err := s.picker.Communication()
		if err != nil {
			return nil, err
		}
		stages = CommunicationStages(set)
	} else {
		set, err := s.picker.Interview(sessionType)
		if err != nil {
			return nil, err
		}
		stages = InterviewStages(set)
	}

	controller := NewController(sessionType, stages)
	if err := controller.Start(); err != nil {
		return nil, err
	}

	draft := &Draft{
		ID:         uuid.New().String(),
		OwnerID:    owner.UserID,
		Username:   owner.Username,
		Email:      owner.Email,
		CreatedAt:  s.now().UTC(),
		Controller: controller,
	}
	if err := s.drafts.Save(ctx, draft.ID, owner.UserID.String(), draft); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}

	log.Printf("[assessment] started %s assessment %s for %s", sessionType, draft.ID, owner.Email)
	return draft, nil
}

// Get returns a draft owned by owner.
func (s *Service) Get(ctx context.Context, owner *types.Practice, id string) (*Draft, error) {
	draft, err := s.drafts.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	if draft == nil {
		return nil, ErrNotFound
	}
	if draft.OwnerID != owner.UserID {
		return nil, ErrForbidden
	}
	return draft, nil
}

// SubmitStage completes the active stage with artifacts. The stage name is
// checked before any payload is looked at.
func (s *Service) SubmitStage(ctx context.Context, owner *types.Practice, id, stage string, artifacts []types.Artifact) (*Draft, error) {
	draft, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	controller := draft.Controller
	active := controller.ActiveStage()
	if active == nil || active.Name != stage {
		if controller.State() == StateResults {
			return nil, ErrFinished
		}
		return nil, fmt.Errorf("%w: got %q while in %s", ErrStageOutOfOrder, stage, controller.State())
	}

	stamped, err := ValidateArtifacts(active, artifacts)
	if err != nil {
		return nil, err
	}
	if err := controller.Complete(stage, stamped); err != nil {
		return nil, err
	}

	if err := s.drafts.Save(ctx, draft.ID, owner.UserID.String(), draft); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	return draft, nil
}

// Analyze aggregates a completed assessment and persists the record. The
// draft is removed whether or not analysis succeeds; a failed analysis
// persists nothing.
func (s *Service) Analyze(ctx context.Context, owner *types.Practice, id string, onProgress ProgressCallback) (*types.SessionRecord, error) {
	draft, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	controller := draft.Controller
	if controller.State() != StateAnalyzing {
		if controller.State() == StateResults {
			return nil, ErrFinished
		}
		return nil, ErrNotReadyForAnalysis
	}

	claimed, err := s.drafts.Claim(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to claim draft: %w", err)
	}
	if !claimed {
		return nil, ErrAlreadyTaken
	}
	defer s.discard(draft)

	artifacts, err := controller.Take()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	record, err := s.aggregator.Aggregate(ctx, controller.Type, artifacts, onProgress)
	s.metrics.RecordAggregation(ctx, controller.Type, time.Since(start), err)
	if err != nil {
		log.Printf("[assessment] analysis of %s failed: %v", id, err)
		return nil, err
	}

	if err := controller.Finish(); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, draft, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Terminate ends an assessment after a proctoring failure and stores a zero-score record.
func (s *Service) Terminate(ctx context.Context, owner *types.Practice, id, reason string) (*types.SessionRecord, error) {
	draft, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if err := draft.Controller.Terminate(reason); err != nil {
		return nil, err
	}

	// Terminate and Analyze share the claim, so a run yields one record.
	claimed, err := s.drafts.Claim(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to claim draft: %w", err)
	}
	if !claimed {
		return nil, ErrAlreadyTaken
	}
	defer s.discard(draft)

	record := &types.SessionRecord{
		ID:           s.aggregator.NewID(),
		Type:         draft.Controller.Type,
		Date:         s.aggregator.Now().UTC(),
		OverallScore: 0,
		Items:        []types.ScoredItem{},
		Report:       TerminationReport,
		Terminated:   true,
	}
	if record.Type.IsMultiStage() {
		record.StageScores = &types.StageScores{}
	}

	log.Printf("[assessment] %s terminated: %s", id, draft.Controller.Terminated)
	if err := s.persist(ctx, draft, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Cancel discards an assessment without persisting anything.
func (s *Service) Cancel(ctx context.Context, owner *types.Practice, id string) error {
	draft, err := s.Get(ctx, owner, id)
	if err != nil {
		return err
	}
	return s.drafts.Delete(ctx, draft.ID, owner.UserID.String())
}

// DropAll discards every draft of owner. Called when the practice context ends.
func (s *Service) DropAll(ctx context.Context, owner *types.Practice) error {
	ids, err := s.drafts.IDsByOwner(ctx, owner.UserID.String())
	if err != nil {
		return fmt.Errorf("failed to list drafts: %w", err)
	}
	for _, id := range ids {
		if err := s.drafts.Delete(ctx, id, owner.UserID.String()); err != nil {
			return fmt.Errorf("failed to delete draft %s: %w", id, err)
		}
	}
	return nil
}

func (s *Service) persist(ctx context.Context, draft *Draft, record *types.SessionRecord) error {
	if _, err := s.history.AppendSession(ctx, draft.Username, draft.Email, record); err != nil {
		return &PersistFailedError{SessionID: record.ID, Cause: err}
	}
	s.metrics.RecordSession(ctx, record.Type, record.OverallScore, record.Terminated)
	log.Printf("[assessment] stored %s session %s (overall %d)", record.Type, record.ID, record.OverallScore)
	return nil
}

// discard deletes the draft on a fresh context so a cancelled request still cleans up.
func (s *Service) discard(draft *Draft) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.drafts.Delete(ctx, draft.ID, draft.OwnerID.String()); err != nil {
		log.Printf("[assessment] failed to delete draft %s: %v", draft.ID, err)
	}
}
