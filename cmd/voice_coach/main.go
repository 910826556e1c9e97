// Package main implements the voice_coach CLI: the HTTP service plus
// offline tools for transcription, answer feedback and practice history.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "voice_coach",
	Short: "Interview and communication practice with scored feedback",
	Long:  "A practice coach that captures answers per stage, transcribes recordings, scores them through an LLM and keeps each user's session history.",
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json file (values can be overridden by env and flags)")
}

func main() {
	// Load .env if present; ignore if missing
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
