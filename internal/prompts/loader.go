// Package prompts holds the coaching prompt templates. Templates live in
// embedded JSON files keyed by prompt name and use {{.Name}} placeholders.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

// CoachingFile holds every evaluation prompt.
const CoachingFile = "coaching.json"

// Prompt keys in CoachingFile.
const (
	KeyAnswerFeedback        = "answer-feedback"
	KeyCommunicationFeedback = "communication-feedback"
	KeyProgressSummary       = "progress-summary"
	KeyStudyPlan             = "study-plan"
)

var placeholder = regexp.MustCompile(`\{\{\.(\w+)\}\}`)

// MissingValueError is returned by Render when the template uses a
// placeholder the caller did not supply.
type MissingValueError struct {
	Key     string
	Missing []string
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("prompt %q is missing values for %s", e.Key, strings.Join(e.Missing, ", "))
}

type library struct {
	mu    sync.RWMutex
	files map[string]map[string]string
}

var defaultLibrary = &library{files: map[string]map[string]string{}}

func (l *library) file(name string) (map[string]string, error) {
	l.mu.RLock()
	templates, ok := l.files[name]
	l.mu.RUnlock()
	if ok {
		return templates, nil
	}

	data, err := promptFiles.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", name, err)
	}
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", name, err)
	}

	l.mu.Lock()
	l.files[name] = templates
	l.mu.Unlock()
	return templates, nil
}

func (l *library) reset() {
	l.mu.Lock()
	l.files = map[string]map[string]string{}
	l.mu.Unlock()
}

// Get retrieves a prompt by filename and key.
func Get(filename, key string) (string, error) {
	templates, err := defaultLibrary.file(filename)
	if err != nil {
		return "", err
	}
	tmpl, ok := templates[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return tmpl, nil
}

// MustGet is Get for prompts that ship with the binary; it panics on error.
func MustGet(filename, key string) string {
	tmpl, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return tmpl
}

// Render fills a coaching prompt. Every placeholder in the template must
// have a value in data.
func Render(key string, data map[string]string) (string, error) {
	tmpl, err := Get(CoachingFile, key)
	if err != nil {
		return "", err
	}
	if missing := MissingPlaceholders(tmpl, data); len(missing) > 0 {
		return "", &MissingValueError{Key: key, Missing: missing}
	}
	return Format(tmpl, data), nil
}

// MissingPlaceholders returns the sorted placeholder names in tmpl that data lacks.
func MissingPlaceholders(tmpl string, data map[string]string) []string {
	seen := map[string]bool{}
	var missing []string
	for _, m := range placeholder.FindAllStringSubmatch(tmpl, -1) {
		name := m[1]
		if _, ok := data[name]; ok || seen[name] {
			continue
		}
		seen[name] = true
		missing = append(missing, name)
	}
	sort.Strings(missing)
	return missing
}

// Format replaces {{.Key}} placeholders with values from data in one pass, so
// values are never expanded themselves. Unknown placeholders stay in place.
func Format(tmpl string, data map[string]string) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		if v, ok := data[m[3:len(m)-2]]; ok {
			return v
		}
		return m
	})
}

// ClearCache drops parsed prompt files so the next Get re-reads them.
func ClearCache() {
	defaultLibrary.reset()
}

// List returns the prompt keys in a file in sorted order.
func List(filename string) ([]string, error) {
	templates, err := defaultLibrary.file(filename)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(templates))
	for key := range templates {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
