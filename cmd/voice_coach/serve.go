package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/voice-coach/internal/assessment"
	"github.com/jonathan/voice-coach/internal/config"
	"github.com/jonathan/voice-coach/internal/db"
	"github.com/jonathan/voice-coach/internal/observability"
	"github.com/jonathan/voice-coach/internal/server"
	"github.com/jonathan/voice-coach/internal/state"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Starts an HTTP server for registering users, running practice assessments and reading session history.",
	RunE:  runServe,
}

var (
	servePort  int
	serveDBURL string
)

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&serveDBURL, "db-url", "", "PostgreSQL connection URL (defaults to DATABASE_URL env var)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = serveDBURL
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database URL is required (set DATABASE_URL or use --db-url)")
	}

	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return err
	}
	passwordCfg, err := config.NewPasswordConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	database, err := db.Connect(connectCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	store, err := state.New(stateConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create state store: %w", err)
	}
	defer func() { _ = store.Close() }()

	coach, llmClient, err := newFeedbackService(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = llmClient.Close() }()

	transcriber, err := newTranscriber(cfg)
	if err != nil {
		return err
	}
	picker, err := loadQuestions(cfg)
	if err != nil {
		return err
	}

	recorder, err := observability.NewRecorder(ctx, observability.MetricsConfig{
		Endpoint: cfg.OTelEndpoint,
		Insecure: cfg.OTelInsecure,
	})
	if err != nil {
		return fmt.Errorf("failed to start metrics: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := recorder.Close(shutdownCtx); err != nil {
			log.Printf("[metrics] shutdown failed: %v", err)
		}
	}()

	aggregator := assessment.NewAggregator(transcriber, coach)
	aggregator.CallTimeout = cfg.CallTimeout.Duration
	drafts := state.NewDrafts(store, cfg.DraftTTL.Duration)
	assessments := assessment.NewService(drafts, database, picker, aggregator, recorder)

	srv, err := server.New(server.Config{
		Port:        cfg.Port,
		CallTimeout: cfg.CallTimeout.Duration,
	}, server.Deps{
		DB:          database,
		Assessments: assessments,
		Coach:       coach,
		Transcriber: transcriber,
		JWT:         jwtCfg,
		Password:    passwordCfg,
		Revocations: state.NewRevocations(store),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Printf("Using %s for feedback and %s for transcription", cfg.LLMProvider, cfg.TranscriptionProvider)
	return srv.Start()
}
