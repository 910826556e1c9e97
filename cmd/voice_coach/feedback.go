package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/voice-coach/internal/observability"
	"github.com/jonathan/voice-coach/internal/types"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Score a single interview answer",
	Long:  "Asks the configured LLM to score one answer to an interview question and prints the strengths and improvements.",
	RunE:  runFeedback,
}

var (
	feedbackQuestion   string
	feedbackAnswer     string
	feedbackAnswerFile string
	feedbackType       string
)

func init() {
	feedbackCmd.Flags().StringVarP(&feedbackQuestion, "question", "q", "", "Interview question (required)")
	feedbackCmd.Flags().StringVarP(&feedbackAnswer, "answer", "a", "", "Answer text")
	feedbackCmd.Flags().StringVar(&feedbackAnswerFile, "answer-file", "", "Path to a file holding the answer text")
	feedbackCmd.Flags().StringVarP(&feedbackType, "type", "t", string(types.SessionHR), "Session type: Technical, HR or English")

	if err := feedbackCmd.MarkFlagRequired("question"); err != nil {
		panic(fmt.Sprintf("failed to mark question flag as required: %v", err))
	}
	feedbackCmd.MarkFlagsMutuallyExclusive("answer", "answer-file")

	rootCmd.AddCommand(feedbackCmd)
}

func runFeedback(cmd *cobra.Command, _ []string) error {
	sessionType, err := types.ParseSessionType(feedbackType)
	if err != nil {
		return err
	}
	if sessionType.IsMultiStage() {
		return fmt.Errorf("%s sessions are scored as a whole; use the score command", sessionType)
	}

	answer := feedbackAnswer
	if feedbackAnswerFile != "" {
		data, err := os.ReadFile(feedbackAnswerFile)
		if err != nil {
			return fmt.Errorf("failed to read answer file: %w", err)
		}
		answer = string(data)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return fmt.Errorf("an answer is required (use --answer or --answer-file)")
	}

	cfg, err := resolveConfig(configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()
	coach, client, err := newFeedbackService(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	fb, err := coach.ScoreAnswer(ctx, sessionType, feedbackQuestion, answer)
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintFeedback(fb)
	return nil
}
