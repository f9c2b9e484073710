package main

import (
	"github.com/spf13/cobra"
)

// buildMigrateCmd creates the "migrate" command that applies the SQL
// schema for every store to the database configured in cfg.Database.URL.
func buildMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		Long: `Apply the conversation, artifact, and user store schemas to the
configured Postgres database.

Safe to run repeatedly: every migration is additive (CREATE TABLE IF NOT
EXISTS / CREATE INDEX IF NOT EXISTS).`,
		Example: `  artifactflow migrate --config /etc/artifactflow/production.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runMigrate(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigName, "Path to YAML/JSON5 configuration file")

	return cmd
}
