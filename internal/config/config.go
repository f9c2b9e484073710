package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is ArtifactFlow's full runtime configuration: an optional
// file-backed base, overlaid by ARTIFACTFLOW_-prefixed environment
// variables (spec.md §6), which always win.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Tasks    TasksConfig    `yaml:"tasks"`
	Stream   StreamConfig   `yaml:"stream"`
	CORS     CORSConfig     `yaml:"cors"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	// URL is a lib/pq DSN. Empty means run entirely on the in-memory
	// stores (spec.md §5 "no external dependency required for local dev").
	URL string `yaml:"url"`
}

type AuthConfig struct {
	// JWTSecret signs/verifies bearer tokens. Required; Load fails fast
	// when it ends up empty (spec.md §6 "fail-fast on startup if unset").
	JWTSecret string `yaml:"jwt_secret"`

	// TokenExpiry is how long an issued access token is valid.
	TokenExpiry time.Duration `yaml:"token_expiry"`
}

type TasksConfig struct {
	// MaxConcurrent bounds the Task Manager's in-flight run count
	// (spec.md §4.6).
	MaxConcurrent int `yaml:"max_concurrent"`
}

type StreamConfig struct {
	// Timeout is the per-run hard cap (spec.md §4.9/§5).
	Timeout time.Duration `yaml:"timeout"`

	// TTL is how long an unconsumed stream buffer is kept pending before
	// it is closed (spec.md §4.5).
	TTL time.Duration `yaml:"ttl"`

	// PingInterval is the SSE heartbeat cadence.
	PingInterval time.Duration `yaml:"ping_interval"`
}

type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

const envPrefix = "ARTIFACTFLOW_"

// Load builds a Config from an optional file at path (YAML or JSON5, with
// $include support) and then environment overrides. path may be empty, in
// which case Config starts from defaults and is driven entirely by
// environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if strings.TrimSpace(path) != "" {
		raw, err := LoadRaw(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		decoded, err := decodeRawConfig(raw)
		if err != nil {
			return nil, err
		}
		cfg = *decoded
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Auth.TokenExpiry == 0 {
		cfg.Auth.TokenExpiry = 24 * time.Hour
	}
	if cfg.Tasks.MaxConcurrent == 0 {
		cfg.Tasks.MaxConcurrent = 10
	}
	if cfg.Stream.Timeout == 0 {
		cfg.Stream.Timeout = 300 * time.Second
	}
	if cfg.Stream.TTL == 0 {
		cfg.Stream.TTL = 30 * time.Second
	}
	if cfg.Stream.PingInterval == 0 {
		cfg.Stream.PingInterval = 15 * time.Second
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(envPrefix + "HOST")); v != "" {
		cfg.Server.Host = v
	}
	if v := strings.TrimSpace(os.Getenv(envPrefix + "PORT")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv(envPrefix + "DATABASE_URL")); v != "" {
		cfg.Database.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(envPrefix + "JWT_SECRET")); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(envPrefix + "MAX_CONCURRENT_TASKS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Tasks.MaxConcurrent = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv(envPrefix + "STREAM_TIMEOUT")); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Stream.Timeout = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv(envPrefix + "STREAM_TTL")); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Stream.TTL = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv(envPrefix + "SSE_PING_INTERVAL")); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Stream.PingInterval = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv(envPrefix + "CORS_ORIGINS")); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		cfg.CORS.Origins = origins
	}
}

// ValidationError reports every config problem found, not just the first.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validate(cfg *Config) error {
	var issues []string
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		issues = append(issues, fmt.Sprintf("%sJWT_SECRET is required", envPrefix))
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		issues = append(issues, fmt.Sprintf("server port %d out of range", cfg.Server.Port))
	}
	if cfg.Tasks.MaxConcurrent <= 0 {
		issues = append(issues, "tasks.max_concurrent must be positive")
	}
	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
