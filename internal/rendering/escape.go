package rendering

import "strings"

// markdownEscaper backslash-escapes markdown syntax and folds line breaks so
// one answer stays one paragraph or list item.
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", `*`, `\*`, `_`, `\_`,
	`{`, `\{`, `}`, `\}`, `[`, `\[`, `]`, `\]`,
	`<`, `\<`, `>`, `\>`, `#`, `\#`, `+`, `\+`,
	`-`, `\-`, `!`, `\!`, `|`, `\|`,
	"\r\n", " ", "\n", " ", "\r", " ",
)

// EscapeMarkdown makes user answers and prompts render exactly as typed.
func EscapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}
