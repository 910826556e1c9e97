// Package assessment runs a practice session from its first stage to a
// persisted SessionRecord: stage sequencing, artifact validation,
// transcription and scoring, and the final store write.
package assessment

import (
	"fmt"
	"strings"

	"github.com/jonathan/voice-coach/internal/questions"
	"github.com/jonathan/voice-coach/internal/types"
)

// Stage names
const (
	StageIntroduction  = "introduction"
	StageCore          = "core"
	StageClosing       = "closing"
	StageReading       = "reading"
	StageRepetition    = "repetition"
	StageComprehension = "comprehension"
)

// State is the controller position: ready, one state per stage, analyzing, results.
type State string

// Fixed states around the per-stage ones
const (
	StateReady     State = "ready"
	StateAnalyzing State = "analyzing"
	StateResults   State = "results"
)

// Prompt is one thing the candidate is asked to do inside a stage.
type Prompt struct {
	Text          string   `json:"text"`
	Options       []string `json:"options,omitempty"`
	AudioURL      string   `json:"audio_url,omitempty"`
	Story         string   `json:"story,omitempty"`
	StoryAudioURL string   `json:"story_audio_url,omitempty"`
	// Expected is the correct option for choice prompts. Never sent to clients.
	Expected string `json:"expected,omitempty"`
}

// Stage is a named, ordered group of prompts sharing the accepted input kinds.
type Stage struct {
	Name    string               `json:"name"`
	Accepts []types.ArtifactKind `json:"accepts"`
	Prompts []Prompt             `json:"prompts"`
}

func (s *Stage) accepts(kind types.ArtifactKind) bool {
	for _, k := range s.Accepts {
		if k == kind {
			return true
		}
	}
	return false
}

// InterviewStages lays out introduction, core and closing for an interview set.
func InterviewStages(set *questions.InterviewSet) []Stage {
	spoken := []types.ArtifactKind{types.KindAudio, types.KindText}

	core := make([]Prompt, 0, len(set.Core))
	for _, q := range set.Core {
		core = append(core, Prompt{Text: q})
	}

	return []Stage{
		{Name: StageIntroduction, Accepts: spoken, Prompts: []Prompt{{Text: set.Introduction}}},
		{Name: StageCore, Accepts: spoken, Prompts: core},
		{Name: StageClosing, Accepts: spoken, Prompts: []Prompt{{Text: set.Closing}}},
	}
}

// CommunicationStages lays out reading, repetition and comprehension for a set.
// Comprehension has one prompt per question, in story order.
func CommunicationStages(set *questions.CommunicationSet) []Stage {
	audioOnly := []types.ArtifactKind{types.KindAudio}

	reading := make([]Prompt, 0, len(set.Reading))
	for _, r := range set.Reading {
		reading = append(reading, Prompt{Text: r.Text})
	}

	repetition := make([]Prompt, 0, len(set.Repetition))
	for _, r := range set.Repetition {
		repetition = append(repetition, Prompt{Text: r.Text, AudioURL: r.AudioURL})
	}

	var comprehension []Prompt
	for _, story := range set.Comprehension {
		for _, q := range story.Questions {
			comprehension = append(comprehension, Prompt{
				Text:          q.Question,
				Options:       q.Options,
				Story:         story.Story,
				StoryAudioURL: story.StoryAudioURL,
				Expected:      q.CorrectAnswer,
			})
		}
	}

	return []Stage{
		{Name: StageReading, Accepts: audioOnly, Prompts: reading},
		{Name: StageRepetition, Accepts: audioOnly, Prompts: repetition},
		{Name: StageComprehension, Accepts: []types.ArtifactKind{types.KindChoice}, Prompts: comprehension},
	}
}

// Controller sequences the stages of one assessment. It only tracks order and
// collected artifacts; it never looks inside a payload. Its fields are exported
// so a draft can be stored and restored between requests.
type Controller struct {
	Type       types.SessionType  `json:"type"`
	Stages     []Stage            `json:"stages"`
	Active     int                `json:"active"`
	Current    State              `json:"state"`
	Collected  [][]types.Artifact `json:"collected"`
	Taken      bool               `json:"taken"`
	Terminated string             `json:"terminated,omitempty"`
}

// NewController creates a controller in the ready state.
func NewController(sessionType types.SessionType, stages []Stage) *Controller {
	return &Controller{
		Type:      sessionType,
		Stages:    stages,
		Active:    -1,
		Current:   StateReady,
		Collected: make([][]types.Artifact, len(stages)),
	}
}

// State returns the current controller state.
func (c *Controller) State() State {
	return c.Current
}

// ActiveStage returns the stage awaiting completion, or nil outside a stage state.
func (c *Controller) ActiveStage() *Stage {
	if c.Active < 0 || c.Active >= len(c.Stages) || c.Current == StateAnalyzing || c.Current == StateResults {
		return nil
	}
	return &c.Stages[c.Active]
}

// StageCompleted reports whether stage i has been completed. It follows the
// controller's position, so a stage with no prompts counts once passed.
func (c *Controller) StageCompleted(i int) bool {
	return i >= 0 && i < c.Active
}

// Start moves from ready to the first stage.
func (c *Controller) Start() error {
	if c.Current != StateReady {
		return fmt.Errorf("%w: cannot start from %s", ErrStageOutOfOrder, c.Current)
	}
	if len(c.Stages) == 0 {
		return fmt.Errorf("assessment has no stages")
	}
	c.Active = 0
	c.Current = State(c.Stages[0].Name)
	return nil
}

// Complete records the artifacts of the active stage and advances.
// Any stage other than the active one is rejected with ErrStageOutOfOrder.
func (c *Controller) Complete(stage string, artifacts []types.Artifact) error {
	if c.Current == StateResults {
		return ErrFinished
	}
	active := c.ActiveStage()
	if active == nil || active.Name != stage {
		return fmt.Errorf("%w: got %q while in %s", ErrStageOutOfOrder, stage, c.Current)
	}

	c.Collected[c.Active] = append([]types.Artifact(nil), artifacts...)
	c.Active++
	if c.Active == len(c.Stages) {
		c.Current = StateAnalyzing
	} else {
		c.Current = State(c.Stages[c.Active].Name)
	}
	return nil
}

// Take hands the full ordered artifact set to the aggregator. It succeeds once,
// and only after every stage completed.
func (c *Controller) Take() ([]types.Artifact, error) {
	if c.Current != StateAnalyzing {
		if c.Current == StateResults {
			return nil, ErrFinished
		}
		return nil, ErrNotReadyForAnalysis
	}
	if c.Taken {
		return nil, ErrAlreadyTaken
	}
	c.Taken = true

	var all []types.Artifact
	for _, stageArtifacts := range c.Collected {
		all = append(all, stageArtifacts...)
	}
	return all, nil
}

// Finish moves analyzing to results.
func (c *Controller) Finish() error {
	if c.Current != StateAnalyzing || !c.Taken {
		return fmt.Errorf("%w: cannot finish from %s", ErrStageOutOfOrder, c.Current)
	}
	c.Current = StateResults
	return nil
}

// Terminate fails the assessment from any stage state straight to results.
func (c *Controller) Terminate(reason string) error {
	switch c.Current {
	case StateResults:
		return ErrFinished
	case StateReady, StateAnalyzing:
		return fmt.Errorf("%w: cannot terminate from %s", ErrStageOutOfOrder, c.Current)
	}
	if strings.TrimSpace(reason) == "" {
		reason = "proctoring violation"
	}
	c.Terminated = reason
	c.Current = StateResults
	return nil
}

// ValidateArtifacts checks that artifacts can complete stage: one per prompt,
// each of an accepted kind with a usable payload. It also stamps each artifact
// with its stage, prompt text and expected answer from the stage definition.
func ValidateArtifacts(stage *Stage, artifacts []types.Artifact) ([]types.Artifact, error) {
	if len(artifacts) != len(stage.Prompts) {
		return nil, &InputMissingError{
			Stage:  stage.Name,
			Index:  -1,
			Reason: fmt.Sprintf("expected %d answers, got %d", len(stage.Prompts), len(artifacts)),
		}
	}

	stamped := make([]types.Artifact, len(artifacts))
	for i, a := range artifacts {
		if !stage.accepts(a.Kind) {
			return nil, &InputMissingError{Stage: stage.Name, Index: i, Reason: fmt.Sprintf("%q answers are not accepted here", a.Kind)}
		}
		switch a.Kind {
		case types.KindAudio:
			if len(a.Audio) == 0 {
				return nil, &InputMissingError{Stage: stage.Name, Index: i, Reason: "audio recording is empty"}
			}
		case types.KindText:
			if strings.TrimSpace(a.Text) == "" {
				return nil, &InputMissingError{Stage: stage.Name, Index: i, Reason: "answer text is blank"}
			}
		case types.KindChoice:
			if strings.TrimSpace(a.Choice) == "" {
				return nil, &InputMissingError{Stage: stage.Name, Index: i, Reason: "no option selected"}
			}
		}

		a.Stage = stage.Name
		a.PromptText = stage.Prompts[i].Text
		a.Expected = stage.Prompts[i].Expected
		stamped[i] = a
	}
	return stamped, nil
}
