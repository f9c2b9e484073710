package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/artifactflow/server/internal/auth"
	"github.com/artifactflow/server/pkg/models"
)

// bootstrapAdmin creates the first admin user from ARTIFACTFLOW_ADMIN_USERNAME
// / ARTIFACTFLOW_ADMIN_PASSWORD if neither is empty and no user with that
// username already exists, per spec.md §3's "created by admin bootstrap or
// admin API" lifecycle note. A deployment that never sets these env vars
// must seed its first admin through some other channel (direct DB insert,
// or a later admin already created out of band) — this is best-effort
// convenience, not the only path.
func bootstrapAdmin(ctx context.Context, users auth.UserStore, logger *slog.Logger) error {
	username := os.Getenv("ARTIFACTFLOW_ADMIN_USERNAME")
	password := os.Getenv("ARTIFACTFLOW_ADMIN_PASSWORD")
	if username == "" || password == "" {
		return nil
	}

	if _, err := users.GetByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := users.Create(ctx, models.NewID("usr"), username, hash, models.RoleAdmin); err != nil {
		return err
	}
	logger.Info("bootstrapped admin user", "username", username)
	return nil
}
