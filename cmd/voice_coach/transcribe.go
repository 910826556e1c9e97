package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Transcribe a recorded answer clip",
	Long:  "Sends one audio file to the configured speech-to-text provider and prints the transcript.",
	RunE:  runTranscribe,
}

var (
	transcribeInput    string
	transcribeMimeType string
)

func init() {
	transcribeCmd.Flags().StringVarP(&transcribeInput, "in", "i", "", "Path to audio file (required)")
	transcribeCmd.Flags().StringVar(&transcribeMimeType, "mime-type", "", "Audio MIME type (guessed from the file extension if empty)")

	if err := transcribeCmd.MarkFlagRequired("in"); err != nil {
		panic(fmt.Sprintf("failed to mark in flag as required: %v", err))
	}

	rootCmd.AddCommand(transcribeCmd)
}

func runTranscribe(cmd *cobra.Command, _ []string) error {
	audio, err := os.ReadFile(transcribeInput)
	if err != nil {
		return fmt.Errorf("failed to read audio file: %w", err)
	}
	if len(audio) == 0 {
		return fmt.Errorf("audio file is empty: %s", transcribeInput)
	}

	cfg, err := resolveConfig(configPath)
	if err != nil {
		return err
	}
	client, err := newTranscriber(cfg)
	if err != nil {
		return err
	}

	mimeType := transcribeMimeType
	if mimeType == "" {
		mimeType = mimeTypeFor(transcribeInput)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.CallTimeout.Duration)
	defer cancel()

	text, err := client.Transcribe(ctx, audio, mimeType)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
	return err
}

// mimeTypeFor guesses an audio MIME type from the file extension.
func mimeTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".webm":
		return "audio/webm"
	case ".m4a":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
