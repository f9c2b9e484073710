package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/artifactflow/server/internal/artifacts"
	"github.com/artifactflow/server/internal/auth"
	"github.com/artifactflow/server/internal/config"
	"github.com/artifactflow/server/internal/conversation"
	"github.com/artifactflow/server/internal/execctl"
	"github.com/artifactflow/server/internal/httpapi"
	"github.com/artifactflow/server/internal/metrics"
	"github.com/artifactflow/server/internal/orchestrator"
	"github.com/artifactflow/server/internal/streambuf"
	"github.com/artifactflow/server/internal/taskmgr"
)

// app bundles every process-wide component spec.md §9's "Global state"
// names: stream buffers, task manager, and tool registry (via Graph),
// plus the stores and HTTP server built on top of them.
type app struct {
	cfg *config.Config
	db  *sql.DB

	conversations conversation.Store
	artifactStore artifacts.Store
	users         auth.UserStore

	streams    *streambuf.Manager
	tasks      *taskmgr.Manager
	graph      *orchestrator.Graph
	controller *execctl.Controller
	metrics    *metrics.Metrics
	server     *httpapi.Server

	logger *slog.Logger
}

// buildApp wires every component from cfg, choosing SQL-backed or
// in-memory stores depending on whether Database.URL is set (spec.md §6
// "Database choice — the persistence layer is specified as repository
// contracts").
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if cfg.Database.URL != "" {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		a.db = db

		sqlConversations := conversation.NewSQLStore(db)
		sqlArtifacts := artifacts.NewSQLStore(db)
		sqlUsers := auth.NewSQLUserStore(db)
		if err := sqlConversations.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate conversation schema: %w", err)
		}
		if err := sqlArtifacts.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate artifact schema: %w", err)
		}
		if err := sqlUsers.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate user schema: %w", err)
		}
		a.conversations = sqlConversations
		a.artifactStore = sqlArtifacts
		a.users = sqlUsers
		logger.Info("using postgres-backed stores")
	} else {
		a.conversations = conversation.NewMemoryStore()
		a.artifactStore = artifacts.NewMemoryStore(logger)
		a.users = auth.NewMemoryUserStore()
		logger.Info("using in-memory stores (no database.url configured)")
	}

	a.metrics = metrics.New()
	a.streams = streambuf.NewManager(cfg.Stream.TTL).WithMetrics(a.metrics)
	a.tasks = taskmgr.NewManager(cfg.Tasks.MaxConcurrent, logger)

	graph, err := buildGraph(logger, a.artifactStore)
	if err != nil {
		return nil, fmt.Errorf("build agent graph: %w", err)
	}
	a.graph = graph

	a.controller = execctl.New(a.conversations, a.artifactStore, a.streams, a.graph, a.tasks, logger)
	a.controller.StreamTimeout = cfg.Stream.Timeout
	a.controller.WithMetrics(a.metrics)

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)

	if err := bootstrapAdmin(ctx, a.users, logger); err != nil {
		return nil, fmt.Errorf("bootstrap admin user: %w", err)
	}

	a.server = httpapi.NewServer(httpapi.Deps{
		Controller:    a.controller,
		Conversations: a.conversations,
		Artifacts:     a.artifactStore,
		Streams:       a.streams,
		Users:         a.users,
		JWT:           jwtService,
		Logger:        logger,
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		CORSOrigins:   cfg.CORS.Origins,
		PingInterval:  cfg.Stream.PingInterval,
	})

	return a, nil
}

// shutdown tears down the process-wide state in the order spec.md §9
// prescribes: drain the task manager with a timeout, then close any
// stream buffers left over from cancelled runs, then the HTTP listener
// and database handle.
func (a *app) shutdown(ctx context.Context, timeout time.Duration) {
	a.tasks.Shutdown(timeout)
	a.streams.CloseAll()
	a.server.Stop(ctx)
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("error closing database handle", "error", err)
		}
	}
}
