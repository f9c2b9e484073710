package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/artifactflow/server/internal/artifacts"
	"github.com/artifactflow/server/internal/auth"
	"github.com/artifactflow/server/internal/config"
	"github.com/artifactflow/server/internal/conversation"
)

// runMigrate loads cfg, opens the configured database, and applies every
// store's schema. It refuses to run against the in-memory configuration
// (Database.URL empty) since there is nothing to migrate.
func runMigrate(ctx context.Context, configPath string) error {
	logger := newLogger(false)

	var cfg *config.Config
	if configFileExists(configPath) {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config %q: %w", configPath, err)
		}
		cfg = loaded
	} else {
		loaded, err := config.Load("")
		if err != nil {
			return fmt.Errorf("load config from environment: %w", err)
		}
		cfg = loaded
	}

	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url is not set; nothing to migrate")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	if err := conversation.NewSQLStore(db).Migrate(ctx); err != nil {
		return fmt.Errorf("migrate conversation schema: %w", err)
	}
	logger.Info("migrated conversation schema")

	if err := artifacts.NewSQLStore(db).Migrate(ctx); err != nil {
		return fmt.Errorf("migrate artifact schema: %w", err)
	}
	logger.Info("migrated artifact schema")

	if err := auth.NewSQLUserStore(db).Migrate(ctx); err != nil {
		return fmt.Errorf("migrate user schema: %w", err)
	}
	logger.Info("migrated user schema")

	logger.Info("migration complete")
	return nil
}
