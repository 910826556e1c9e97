// Package llm - extractor.go describes the JSON shape an LLM must answer with.
package llm

import (
	"fmt"
	"strings"
)

// OutputSchema describes the JSON object an evaluation prompt expects back.
// It is appended to a prompt so every provider sees the same contract.
type OutputSchema struct {
	Name   string        // Schema name (e.g., "AnswerFeedback")
	Fields []SchemaField // Expected output fields
}

// SchemaField defines a single field in the output object.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint: "integer 0-100", "[\"string\"]"
	Description string // Description for the LLM
	Required    bool   // Whether this field is required
}

// WithOutputSchema appends the schema contract to prompt.
func WithOutputSchema(prompt string, schema OutputSchema) string {
	var sb strings.Builder

	sb.WriteString(strings.TrimRight(prompt, "\n"))
	sb.WriteString("\n\nReturn ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "\"string\""
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\": %s%s", field.Name, typeHint, requiredHint))
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")
	sb.WriteString("IMPORTANT:\n")
	sb.WriteString("- Every score is a whole number from 0 to 100.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n")

	return sb.String()
}

// --- Predefined Schemas ---

// AnswerFeedbackSchema is the contract for scoring one spoken or written answer.
func AnswerFeedbackSchema() OutputSchema {
	return OutputSchema{
		Name: "AnswerFeedback",
		Fields: []SchemaField{
			{Name: "answer", Type: "\"string\"", Description: "The answer as understood, lightly cleaned up", Required: false},
			{Name: "score", Type: "integer 0-100", Description: "Overall quality of the answer", Required: true},
			{Name: "clarity", Type: "integer", Description: "Clarity as a percentage"},
			{Name: "fillerWords", Type: "integer", Description: "Count of filler words"},
			{Name: "pace", Type: "integer", Description: "Estimated words per minute"},
			{Name: "strengths", Type: "[\"string\"]", Description: "Concrete things done well"},
			{Name: "improvements", Type: "[\"string\"]", Description: "Concrete, actionable improvements"},
		},
	}
}

// CommunicationFeedbackSchema is the contract for the batched reading and
// repetition assessment.
func CommunicationFeedbackSchema() OutputSchema {
	return OutputSchema{
		Name: "CommunicationFeedback",
		Fields: []SchemaField{
			{Name: "scores", Type: "{\"reading\": integer, \"repetition\": integer}", Description: "Stage scores 0-100", Required: true},
			{Name: "readingItems", Type: "[integer]", Description: "One score per reading clip, in order"},
			{Name: "repetitionItems", Type: "[integer]", Description: "One score per repetition clip, in order"},
			{Name: "reportText", Type: "\"string\"", Description: "Markdown report addressed to the candidate", Required: true},
		},
	}
}
