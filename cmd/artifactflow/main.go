// Package main provides the CLI entry point for the ArtifactFlow
// orchestration server.
//
// ArtifactFlow drives a small team of LLM-backed agents through
// multi-turn conversations, streams their progress over server-sent
// events, and persists their work products as versioned artifacts.
//
// # Basic Usage
//
// Start the server:
//
//	artifactflow serve --config artifactflow.yaml
//
// Check configuration and connectivity:
//
//	artifactflow doctor
//
// Apply database migrations:
//
//	artifactflow migrate
//
// # Environment Variables
//
// Configuration can be provided via ARTIFACTFLOW_-prefixed environment
// variables (see internal/config) plus the LLM provider credentials:
//
//   - ANTHROPIC_API_KEY: Anthropic API key for the lead agent
//   - OPENAI_API_KEY: OpenAI API key for the researcher subagent
//   - GOOGLE_API_KEY: Gemini API key for the reviewer subagent
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "artifactflow",
		Short: "ArtifactFlow - multi-agent orchestration server",
		Long: `ArtifactFlow drives a coordinator and specialized worker agents through
multi-turn conversations, streams their progress over SSE, and persists
their work products as versioned artifacts with branch history.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildMigrateCmd(),
		buildDoctorCmd(),
	)

	return rootCmd
}
