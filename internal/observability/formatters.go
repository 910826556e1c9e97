// Package observability provides metrics export and formatted output for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/voice-coach/internal/assessment"
	"github.com/jonathan/voice-coach/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// PrintSessionRecord outputs the score summary of one session.
func (p *Printer) PrintSessionRecord(record *types.SessionRecord) {
	if record == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Type:     %s\n", record.Type))
	sb.WriteString(fmt.Sprintf("Date:     %s\n", record.Date.Format("2006-01-02 15:04")))
	sb.WriteString(fmt.Sprintf("Overall:  %d/100\n", record.OverallScore))
	if record.Terminated {
		sb.WriteString("Status:   terminated\n")
	}

	if s := record.StageScores; s != nil {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("Reading:       %3d\n", s.Reading))
		sb.WriteString(fmt.Sprintf("Repetition:    %3d\n", s.Repetition))
		sb.WriteString(fmt.Sprintf("Comprehension: %3d\n", s.Comprehension))
	}

	if len(record.Items) > 0 {
		sb.WriteString("\n")
		count := min(len(record.Items), maxItemsToShow)
		for i := 0; i < count; i++ {
			item := record.Items[i]
			sb.WriteString(fmt.Sprintf("#%d [%s] %3d  %s\n", i+1, item.Stage, item.Score, truncate(item.PromptText, 30)))
		}
		if len(record.Items) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("... and %d more items\n", len(record.Items)-maxItemsToShow))
		}
	}

	p.printBox("SESSION RESULT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintHistory outputs a user's profile and most recent sessions.
func (p *Printer) PrintHistory(history *types.UserHistory) {
	if history == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("User:     %s <%s>\n", history.Username, history.Email))
	sb.WriteString(fmt.Sprintf("Sessions: %d\n", len(history.Sessions)))
	sb.WriteString(fmt.Sprintf("Average:  %.2f\n", history.AvgScore))

	if len(history.Sessions) > 0 {
		sb.WriteString("\n")
		// newest first
		shown := 0
		for i := len(history.Sessions) - 1; i >= 0 && shown < maxItemsToShow; i-- {
			s := history.Sessions[i]
			sb.WriteString(fmt.Sprintf("%s  %-13s %3d\n", s.Date.Format("2006-01-02"), s.Type, s.OverallScore))
			shown++
		}
		if len(history.Sessions) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("... and %d older sessions\n", len(history.Sessions)-maxItemsToShow))
		}
	}

	p.printBox("PRACTICE HISTORY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintFeedback outputs the feedback for a single answer.
func (p *Printer) PrintFeedback(fb *types.SingleScoreFeedback) {
	if fb == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Score: %d/100\n", fb.Score))
	if fb.Clarity != nil {
		sb.WriteString(fmt.Sprintf("Clarity: %d%%\n", *fb.Clarity))
	}
	if fb.FillerWords != nil {
		sb.WriteString(fmt.Sprintf("Filler words: %d\n", *fb.FillerWords))
	}
	if fb.Pace != nil {
		sb.WriteString(fmt.Sprintf("Pace: %d wpm\n", *fb.Pace))
	}
	for _, s := range fb.Strengths {
		sb.WriteString(fmt.Sprintf("  + %s\n", s))
	}
	for _, s := range fb.Improvements {
		sb.WriteString(fmt.Sprintf("  - %s\n", s))
	}

	p.printBox("ANSWER FEEDBACK", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintProgress outputs one aggregation progress line.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(event assessment.ProgressEvent) {
	if event.Total > 0 {
		fmt.Fprintf(p.out, "[%d/%d] %s: %s\n", event.Done, event.Total, event.Step, event.Message)
		return
	}
	fmt.Fprintf(p.out, "%s: %s\n", event.Step, event.Message)
}
