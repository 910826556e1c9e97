package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/voice-coach/internal/feedback"
	"github.com/jonathan/voice-coach/internal/llm"
	"github.com/jonathan/voice-coach/internal/types"
)

// fakeTranscriber returns the clip bytes as text, or fails for clips listed in fail.
type fakeTranscriber struct {
	fail     map[string]bool
	delay    time.Duration
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, _ string) (string, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.fail[string(audio)] {
		return "", errors.New("speech service unavailable")
	}
	return "said: " + string(audio), nil
}

// fakeScorer returns queued single scores in order and a fixed multi-stage response.
type fakeScorer struct {
	mu         sync.Mutex
	scores     []int
	answerErr  error
	multi      *types.MultiStageFeedback
	multiErr   error
	answers    []string
	multiCalls int
	lastInput  feedback.CommunicationInput
}

func (f *fakeScorer) ScoreAnswer(_ context.Context, _ types.SessionType, _ string, answer string) (*types.SingleScoreFeedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	i := len(f.answers)
	f.answers = append(f.answers, answer)
	if i >= len(f.scores) {
		return nil, fmt.Errorf("no score queued for answer %d", i)
	}
	return &types.SingleScoreFeedback{Score: f.scores[i], Strengths: []string{"clear"}, Improvements: []string{"add detail"}}, nil
}

func (f *fakeScorer) ScoreCommunication(_ context.Context, in feedback.CommunicationInput) (*types.MultiStageFeedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.multiCalls++
	f.lastInput = in
	if f.multiErr != nil {
		return nil, f.multiErr
	}
	return f.multi, nil
}

// scriptedLLM replays responses and errors in order.
type scriptedLLM struct {
	responses []string
	errs      []error
	calls     int
}

func (s *scriptedLLM) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	return s.GenerateJSON(ctx, prompt, tier)
}

func (s *scriptedLLM) GenerateJSON(_ context.Context, _ string, _ llm.ModelTier) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "", errors.New("script exhausted")
}

func (s *scriptedLLM) GetModel(llm.ModelTier) string { return "scripted" }
func (s *scriptedLLM) Close() error                  { return nil }

// memDrafts is an in-memory DraftStore.
type memDrafts struct {
	mu      sync.Mutex
	drafts  map[string][]byte
	owners  map[string]map[string]bool
	claimed map[string]bool
}

func newMemDrafts() *memDrafts {
	return &memDrafts{
		drafts:  map[string][]byte{},
		owners:  map[string]map[string]bool{},
		claimed: map[string]bool{},
	}
}

func (m *memDrafts) Save(_ context.Context, id, owner string, d *Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	m.drafts[id] = data
	if m.owners[owner] == nil {
		m.owners[owner] = map[string]bool{}
	}
	m.owners[owner][id] = true
	return nil
}

func (m *memDrafts) Load(_ context.Context, id string) (*Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.drafts[id]
	if !ok {
		return nil, nil
	}
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (m *memDrafts) Delete(_ context.Context, id, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, id)
	delete(m.owners[owner], id)
	return nil
}

func (m *memDrafts) Claim(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimed[id] {
		return false, nil
	}
	m.claimed[id] = true
	return true, nil
}

func (m *memDrafts) IDsByOwner(_ context.Context, owner string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id := range m.owners[owner] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memDrafts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.drafts)
}

// fakeHistory counts store writes.
type fakeHistory struct {
	mu      sync.Mutex
	records []types.SessionRecord
	err     error
}

func (f *fakeHistory) AppendSession(_ context.Context, username, email string, record *types.SessionRecord) (*types.UserHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.records = append(f.records, *record)
	return &types.UserHistory{Username: username, Email: email, Sessions: f.records}, nil
}

func (f *fakeHistory) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func testAggregator(tr *fakeTranscriber, scorer Scorer) *Aggregator {
	a := NewAggregator(tr, scorer)
	a.Now = func() time.Time { return fixedNow }
	a.NewID = func() string { return "11111111-2222-3333-4444-555555555555" }
	return a
}

func testOwner() *types.Practice {
	return &types.Practice{
		UserID:   uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"),
		Email:    "candidate@example.com",
		Username: "Candidate",
		TokenID:  "jti-1",
	}
}

func audio(stage, prompt, clip string) types.Artifact {
	return types.Artifact{Stage: stage, PromptText: prompt, Kind: types.KindAudio, Audio: []byte(clip), MimeType: "audio/webm"}
}

func choice(prompt, selected, expected string) types.Artifact {
	return types.Artifact{Stage: StageComprehension, PromptText: prompt, Kind: types.KindChoice, Choice: selected, Expected: expected}
}
