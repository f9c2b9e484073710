package main

import (
	"github.com/spf13/cobra"
)

// buildDoctorCmd creates the "doctor" command that validates configuration,
// database connectivity, and LLM provider credentials without starting the
// server.
func buildDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and connectivity",
		Long: `Check that configuration loads, the configured database (if any) is
reachable, and the LLM provider credentials the agent roster needs are
present.

Exits non-zero if any check fails.`,
		Example: `  artifactflow doctor --config /etc/artifactflow/production.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runDoctor(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigName, "Path to YAML/JSON5 configuration file")

	return cmd
}
