package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/voice-coach/internal/assessment"
	"github.com/jonathan/voice-coach/internal/db"
	"github.com/jonathan/voice-coach/internal/observability"
	"github.com/jonathan/voice-coach/internal/types"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a recorded practice session offline",
	Long: `Reads a JSON array of captured artifacts, transcribes and scores them the same way the server does, and prints the session record.

With --email the record is appended to that user's history.`,
	RunE: runScore,
}

var (
	scoreInput    string
	scoreType     string
	scoreEmail    string
	scoreUsername string
	scoreOutput   string
)

func init() {
	scoreCmd.Flags().StringVarP(&scoreInput, "in", "i", "", "Path to artifacts JSON file (required)")
	scoreCmd.Flags().StringVarP(&scoreType, "type", "t", "", "Session type: Technical, HR, English or Communication (required)")
	scoreCmd.Flags().StringVarP(&scoreEmail, "email", "e", "", "Append the record to this user's history")
	scoreCmd.Flags().StringVar(&scoreUsername, "username", "New User", "Display name used when the user is new")
	scoreCmd.Flags().StringVarP(&scoreOutput, "out", "o", "", "Write the session record JSON to this path")

	if err := scoreCmd.MarkFlagRequired("in"); err != nil {
		panic(fmt.Sprintf("failed to mark in flag as required: %v", err))
	}
	if err := scoreCmd.MarkFlagRequired("type"); err != nil {
		panic(fmt.Sprintf("failed to mark type flag as required: %v", err))
	}

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	sessionType, err := types.ParseSessionType(scoreType)
	if err != nil {
		return err
	}
	artifacts, err := readArtifacts(scoreInput)
	if err != nil {
		return err
	}

	cfg, err := resolveConfig(configPath)
	if err != nil {
		return err
	}
	if scoreEmail != "" && cfg.DatabaseURL == "" {
		return fmt.Errorf("database URL is required to save the record (set DATABASE_URL)")
	}

	ctx := context.Background()
	coach, client, err := newFeedbackService(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()
	transcriber, err := newTranscriber(cfg)
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	aggregator := assessment.NewAggregator(transcriber, coach)
	aggregator.CallTimeout = cfg.CallTimeout.Duration

	record, err := aggregator.Aggregate(ctx, sessionType, artifacts, printer.PrintProgress)
	if err != nil {
		return fmt.Errorf("failed to score session: %w", err)
	}
	printer.PrintSessionRecord(record)

	if scoreOutput != "" {
		data, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		if err := os.WriteFile(scoreOutput, data, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
	}

	if scoreEmail == "" {
		return nil
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	history, err := database.AppendSession(ctx, scoreUsername, types.NormalizeEmail(scoreEmail), record)
	if err != nil {
		return err
	}
	printer.PrintHistory(history)
	return nil
}

// readArtifacts loads the captured artifacts for one session.
func readArtifacts(path string) ([]types.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifacts file: %w", err)
	}
	var artifacts []types.Artifact
	if err := json.Unmarshal(data, &artifacts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal artifacts JSON: %w", err)
	}
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("artifacts file has no entries: %s", path)
	}
	return artifacts, nil
}
