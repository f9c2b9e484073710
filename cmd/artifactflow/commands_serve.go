package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that starts the ArtifactFlow
// server.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ArtifactFlow orchestration server",
		Long: `Start the ArtifactFlow orchestration server.

The server will:
1. Load configuration from the specified file (or ARTIFACTFLOW_* env vars alone)
2. Initialize the conversation, artifact, and user stores (SQL or in-memory)
3. Wire the agent roster, tool registry, and graph
4. Start the HTTP/SSE API

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		Example: `  # Start with default config
  artifactflow serve

  # Start with custom config
  artifactflow serve --config /etc/artifactflow/production.yaml

  # Start with debug logging
  artifactflow serve --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigName, "Path to YAML/JSON5 configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}
