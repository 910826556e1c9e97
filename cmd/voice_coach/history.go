package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/voice-coach/internal/db"
	"github.com/jonathan/voice-coach/internal/observability"
	"github.com/jonathan/voice-coach/internal/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show a user's practice history",
	RunE:  runHistory,
}

var (
	historyEmail string
	historyDBURL string
	historyJSON  bool
)

func init() {
	historyCmd.Flags().StringVarP(&historyEmail, "email", "e", "", "User email (required)")
	historyCmd.Flags().StringVar(&historyDBURL, "db-url", "", "PostgreSQL connection URL (defaults to DATABASE_URL env var)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print the raw history JSON")

	if err := historyCmd.MarkFlagRequired("email"); err != nil {
		panic(fmt.Sprintf("failed to mark email flag as required: %v", err))
	}

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = historyDBURL
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database URL is required (set DATABASE_URL or use --db-url)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	history, err := database.GetHistory(ctx, types.NormalizeEmail(historyEmail))
	if err != nil {
		return err
	}

	if historyJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintHistory(history)
	return nil
}
