// Package questions holds the practice content served when an assessment starts.
package questions

import (
	_ "embed"
	"fmt"
	"math/rand"
	"os"
	"sync"

	"github.com/jonathan/voice-coach/internal/types"
	"gopkg.in/yaml.v3"
)

//go:embed bank.yaml
var defaultBank []byte

// InterviewSet is one introduction, a list of core questions and a closing question.
type InterviewSet struct {
	Introduction string   `yaml:"introduction" json:"introduction"`
	Core         []string `yaml:"core" json:"core"`
	Closing      string   `yaml:"closing" json:"closing"`
}

// ReadingItem is a passage read aloud.
type ReadingItem struct {
	Text string `yaml:"text" json:"text"`
}

// RepetitionItem is a sentence played to the candidate and repeated back.
type RepetitionItem struct {
	Text     string `yaml:"text" json:"text"`
	AudioURL string `yaml:"audio_url" json:"audio_url,omitempty"`
}

// ComprehensionQuestion is a multiple-choice question about a story.
type ComprehensionQuestion struct {
	Question      string   `yaml:"question" json:"question"`
	Options       []string `yaml:"options" json:"options"`
	CorrectAnswer string   `yaml:"correct_answer" json:"-"`
}

// Story is a listening passage followed by its questions.
type Story struct {
	Story         string                  `yaml:"story" json:"story"`
	StoryAudioURL string                  `yaml:"story_audio_url" json:"story_audio_url,omitempty"`
	Questions     []ComprehensionQuestion `yaml:"questions" json:"questions"`
}

// CommunicationSet is the content of one communication assessment.
type CommunicationSet struct {
	Reading       []ReadingItem    `yaml:"reading" json:"reading"`
	Repetition    []RepetitionItem `yaml:"repetition" json:"repetition"`
	Comprehension []Story          `yaml:"comprehension" json:"comprehension"`
}

// Bank is the full question catalogue.
type Bank struct {
	Interview     map[types.SessionType][]InterviewSet `yaml:"interview"`
	Communication []CommunicationSet                   `yaml:"communication"`
}

// Default returns the embedded bank.
func Default() (*Bank, error) {
	return Parse(defaultBank)
}

// Load reads a bank from a YAML file.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML bank.
func Parse(data []byte) (*Bank, error) {
	var bank Bank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}
	if err := bank.Validate(); err != nil {
		return nil, err
	}
	return &bank, nil
}

// Validate checks that every set can drive a full assessment.
func (b *Bank) Validate() error {
	for sessionType, sets := range b.Interview {
		if _, err := types.ParseSessionType(string(sessionType)); err != nil || sessionType.IsMultiStage() {
			return fmt.Errorf("question bank: %q is not an interview session type", sessionType)
		}
		for i, set := range sets {
			if set.Introduction == "" || set.Closing == "" || len(set.Core) == 0 {
				return fmt.Errorf("question bank: %s set %d needs an introduction, core questions and a closing", sessionType, i)
			}
		}
	}

	for i, set := range b.Communication {
		if len(set.Reading) == 0 || len(set.Repetition) == 0 || len(set.Comprehension) == 0 {
			return fmt.Errorf("question bank: communication set %d needs reading, repetition and comprehension items", i)
		}
		for j, story := range set.Comprehension {
			if len(story.Questions) == 0 {
				return fmt.Errorf("question bank: communication set %d story %d has no questions", i, j)
			}
			for k, q := range story.Questions {
				if !contains(q.Options, q.CorrectAnswer) {
					return fmt.Errorf("question bank: communication set %d story %d question %d: correct answer %q is not an option", i, j, k, q.CorrectAnswer)
				}
			}
		}
	}
	return nil
}

func contains(options []string, want string) bool {
	for _, o := range options {
		if o == want {
			return true
		}
	}
	return false
}

// Picker chooses sets at random. It is safe for concurrent use.
type Picker struct {
	bank *Bank
	mu   sync.Mutex
	rnd  *rand.Rand
}

// NewPicker creates a picker over bank using src for randomness.
func NewPicker(bank *Bank, src rand.Source) *Picker {
	return &Picker{bank: bank, rnd: rand.New(src)}
}

// Interview picks an interview set for sessionType.
func (p *Picker) Interview(sessionType types.SessionType) (*InterviewSet, error) {
	sets := p.bank.Interview[sessionType]
	if len(sets) == 0 {
		return nil, fmt.Errorf("no question sets for session type %s", sessionType)
	}
	set := sets[p.intn(len(sets))]
	return &set, nil
}

// Communication picks a communication set.
func (p *Picker) Communication() (*CommunicationSet, error) {
	if len(p.bank.Communication) == 0 {
		return nil, fmt.Errorf("no communication practice sets")
	}
	set := p.bank.Communication[p.intn(len(p.bank.Communication))]
	return &set, nil
}

func (p *Picker) intn(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rnd.Intn(n)
}
