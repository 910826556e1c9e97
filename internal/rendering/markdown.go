package rendering

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// markdown is shared; goldmark converters are safe for concurrent use.
// Raw HTML in the source is escaped since reports come from an LLM.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// MarkdownToHTML converts a markdown report into an HTML fragment.
func MarkdownToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", &ReportError{Phase: PhaseMarkdown, Cause: err}
	}
	return buf.String(), nil
}

// Heading is one section title found in a report.
type Heading struct {
	Level int
	Text  string
}

// Headings lists the section titles of a markdown document in order.
func Headings(src string) []Heading {
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var headings []Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			headings = append(headings, Heading{
				Level: h.Level,
				Text:  strings.TrimSpace(string(h.Lines().Value(source))),
			})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return headings
}
