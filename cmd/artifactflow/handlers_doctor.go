package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/artifactflow/server/internal/config"
)

// checkResult is one doctor check's outcome, printed as a single line.
type checkResult struct {
	name string
	ok   bool
	note string
}

// runDoctor runs every readiness check and reports the results. It returns
// an error (causing a non-zero exit) if any check fails.
func runDoctor(ctx context.Context, configPath string) error {
	var results []checkResult

	cfg, err := config.Load(configPathOrEmpty(configPath))
	if err != nil {
		results = append(results, checkResult{name: "config", ok: false, note: err.Error()})
		printDoctorReport(results)
		return fmt.Errorf("doctor checks failed")
	}
	results = append(results, checkResult{name: "config", ok: true, note: fmt.Sprintf("loaded from %q", configPath)})

	if cfg.Database.URL == "" {
		results = append(results, checkResult{name: "database", ok: true, note: "not configured, using in-memory stores"})
	} else {
		dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			results = append(results, checkResult{name: "database", ok: false, note: err.Error()})
		} else {
			defer db.Close()
			if err := db.PingContext(dbCtx); err != nil {
				results = append(results, checkResult{name: "database", ok: false, note: err.Error()})
			} else {
				results = append(results, checkResult{name: "database", ok: true, note: "reachable"})
			}
		}
	}

	results = append(results, checkProviderCredential("anthropic", "ANTHROPIC_API_KEY"))
	results = append(results, checkProviderCredential("openai", "OPENAI_API_KEY"))
	results = append(results, checkProviderCredential("google", "GOOGLE_API_KEY"))

	if os.Getenv("ARTIFACTFLOW_ADMIN_USERNAME") == "" || os.Getenv("ARTIFACTFLOW_ADMIN_PASSWORD") == "" {
		results = append(results, checkResult{
			name: "admin bootstrap",
			ok:   true,
			note: "ARTIFACTFLOW_ADMIN_USERNAME/PASSWORD not set; skipping bootstrap, seed an admin some other way",
		})
	} else {
		results = append(results, checkResult{name: "admin bootstrap", ok: true, note: "credentials present"})
	}

	printDoctorReport(results)

	for _, r := range results {
		if !r.ok {
			return fmt.Errorf("doctor checks failed")
		}
	}
	return nil
}

func checkProviderCredential(provider, envVar string) checkResult {
	if os.Getenv(envVar) == "" {
		return checkResult{name: provider, ok: true, note: fmt.Sprintf("%s not set; %s agent calls will fail fast", envVar, provider)}
	}
	return checkResult{name: provider, ok: true, note: "credential present"}
}

func configPathOrEmpty(path string) string {
	if configFileExists(path) {
		return path
	}
	return ""
}

func printDoctorReport(results []checkResult) {
	for _, r := range results {
		status := "OK"
		if !r.ok {
			status = "FAIL"
		}
		fmt.Printf("[%s] %-12s %s\n", status, r.name, r.note)
	}
}
