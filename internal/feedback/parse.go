package feedback

import (
	"encoding/json"
	"fmt"

	"github.com/jonathan/voice-coach/internal/llm"
	"github.com/jonathan/voice-coach/internal/schemas"
	"github.com/jonathan/voice-coach/internal/types"
)

// Parse sanitizes raw LLM text and decodes it into the matching feedback
// variant. A payload carrying "score" is single-score, one carrying "scores"
// is multi-stage. Anything else, or anything failing its schema, is rejected.
func Parse(raw string) (*types.Feedback, error) {
	cleaned := llm.CleanJSONBlock(raw)

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &probe); err != nil {
		return nil, &ParseError{RawText: raw, Cause: err}
	}

	_, hasScore := probe["score"]
	_, hasScores := probe["scores"]

	switch {
	case hasScore && !hasScores:
		var single types.SingleScoreFeedback
		if err := decode(cleaned, schemas.AnswerFeedback, &single); err != nil {
			return nil, &ParseError{RawText: raw, Cause: err}
		}
		return &types.Feedback{Kind: types.FeedbackSingleScore, Single: &single}, nil
	case hasScores && !hasScore:
		var multi types.MultiStageFeedback
		if err := decode(cleaned, schemas.CommunicationFeedback, &multi); err != nil {
			return nil, &ParseError{RawText: raw, Cause: err}
		}
		return &types.Feedback{Kind: types.FeedbackMultiStage, Multi: &multi}, nil
	default:
		return nil, &ParseError{RawText: raw, Cause: ErrUnknownShape}
	}
}

// parseKind parses raw and requires the given variant.
func parseKind(raw string, kind types.FeedbackKind) (*types.Feedback, error) {
	fb, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if fb.Kind != kind {
		return nil, &ParseError{RawText: raw, Cause: fmt.Errorf("expected %s feedback, got %s", kind, fb.Kind)}
	}
	return fb, nil
}

// decode validates cleaned against schema and unmarshals it into out.
func decode(cleaned, schema string, out interface{}) error {
	if err := schemas.Validate(schema, cleaned); err != nil {
		return err
	}
	return json.Unmarshal([]byte(cleaned), out)
}
