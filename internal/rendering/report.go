package rendering

import (
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/jonathan/voice-coach/internal/types"
)

//go:embed report.html.tmpl
var reportTemplate string

var reportPage = template.Must(template.New("report").Parse(reportTemplate))

var errNoRecord = errors.New("no session record")

// ReportPage is the data passed to the report template
type ReportPage struct {
	Title       string
	Date        string
	Type        types.SessionType
	Score       int
	Terminated  bool
	StageScores *types.StageScores
	Sections    []Heading
	Body        template.HTML
}

// ReportMarkdown returns the markdown report for record. Records without a
// stored report get one built from their scored items.
func ReportMarkdown(record *types.SessionRecord) string {
	if strings.TrimSpace(record.Report) != "" {
		return record.Report
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s Session\n\n", record.Type)
	fmt.Fprintf(&b, "**Overall score:** %d/100\n\n", record.OverallScore)
	for i, item := range record.Items {
		fmt.Fprintf(&b, "### %d. %s (%d/100)\n\n", i+1, EscapeMarkdown(item.PromptText), item.Score)
		if item.AnswerText != "" {
			fmt.Fprintf(&b, "> %s\n\n", EscapeMarkdown(item.AnswerText))
		}
		for _, s := range item.Strengths {
			fmt.Fprintf(&b, "- Strength: %s\n", EscapeMarkdown(s))
		}
		for _, s := range item.Improvements {
			fmt.Fprintf(&b, "- Improve: %s\n", EscapeMarkdown(s))
		}
		if len(item.Strengths)+len(item.Improvements) > 0 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderReport renders a complete HTML page for one session record.
func RenderReport(record *types.SessionRecord) (string, error) {
	if record == nil {
		return "", &ReportError{Phase: PhaseInput, Cause: errNoRecord}
	}

	src := ReportMarkdown(record)
	body, err := MarkdownToHTML(src)
	if err != nil {
		return "", err
	}

	page := ReportPage{
		Title:       fmt.Sprintf("%s practice report", record.Type),
		Date:        record.Date.Format("January 2, 2006 15:04"),
		Type:        record.Type,
		Score:       record.OverallScore,
		Terminated:  record.Terminated,
		StageScores: record.StageScores,
		Sections:    Headings(src),
		Body:        template.HTML(body), //nolint:gosec // goldmark escapes raw HTML by default
	}

	var out strings.Builder
	if err := reportPage.Execute(&out, page); err != nil {
		return "", &ReportError{Phase: PhaseTemplate, Cause: err}
	}
	return out.String(), nil
}
