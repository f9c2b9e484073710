package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "artifactflow.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  bogus_field: true
auth:
  jwt_secret: shh
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected JWT_SECRET error, got %v", err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: shh
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Tasks.MaxConcurrent != 10 {
		t.Fatalf("max_concurrent = %d, want 10", cfg.Tasks.MaxConcurrent)
	}
	if cfg.Stream.Timeout.Seconds() != 300 {
		t.Fatalf("stream timeout = %v, want 300s", cfg.Stream.Timeout)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 9000
auth:
  jwt_secret: from-file
`)

	t.Setenv("ARTIFACTFLOW_JWT_SECRET", "from-env")
	t.Setenv("ARTIFACTFLOW_PORT", "9100")
	t.Setenv("ARTIFACTFLOW_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Fatalf("jwt secret = %q, want env override", cfg.Auth.JWTSecret)
	}
	if cfg.Server.Port != 9100 {
		t.Fatalf("port = %d, want env override 9100", cfg.Server.Port)
	}
	if len(cfg.CORS.Origins) != 2 || cfg.CORS.Origins[0] != "https://a.example" {
		t.Fatalf("cors origins = %v", cfg.CORS.Origins)
	}
}

func TestLoadWithNoFile_EnvOnly(t *testing.T) {
	t.Setenv("ARTIFACTFLOW_JWT_SECRET", "env-only-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.JWTSecret != "env-only-secret" {
		t.Fatalf("jwt secret = %q", cfg.Auth.JWTSecret)
	}
}
