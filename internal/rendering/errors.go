// Package rendering turns session reports into HTML pages.
package rendering

import "fmt"

// Report build phases named in a ReportError.
const (
	PhaseInput    = "input"
	PhaseMarkdown = "markdown"
	PhaseTemplate = "template"
)

// ReportError is returned when a session report cannot be turned into HTML.
type ReportError struct {
	Phase string
	Cause error
}

func (e *ReportError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("report %s failed", e.Phase)
	}
	return fmt.Sprintf("report %s failed: %v", e.Phase, e.Cause)
}

func (e *ReportError) Unwrap() error {
	return e.Cause
}
