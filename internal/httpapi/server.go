package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/artifactflow/server/internal/artifacts"
	"github.com/artifactflow/server/internal/auth"
	"github.com/artifactflow/server/internal/conversation"
	"github.com/artifactflow/server/internal/execctl"
	"github.com/artifactflow/server/internal/streambuf"
)

// Deps bundles everything Server needs to build its routes, grounded on
// internal/gateway/http_server.go's startHTTPServer wiring.
type Deps struct {
	Controller    *execctl.Controller
	Conversations conversation.Store
	Artifacts     artifacts.Store
	Streams       *streambuf.Manager
	Users         auth.UserStore
	JWT           *auth.JWTService
	Logger        *slog.Logger

	Host          string
	Port          int
	CORSOrigins   []string
	PingInterval  time.Duration
}

// Server owns the http.Server and its listener, mirroring the
// start/stop split internal/gateway/http_server.go uses.
type Server struct {
	deps     Deps
	httpSrv  *http.Server
	listener net.Listener
	logger   *slog.Logger
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Server{deps: deps, logger: deps.Logger.With("component", "httpapi")}
}

func (s *Server) buildMux() http.Handler {
	d := s.deps
	authH := &AuthHandlers{Users: d.Users, JWT: d.JWT, Logger: d.Logger}
	chatH := &ChatHandlers{Controller: d.Controller, Conversations: d.Conversations, Logger: d.Logger}
	streamH := &StreamHandlers{Streams: d.Streams, PingInterval: d.PingInterval, Logger: d.Logger}
	artifactH := &ArtifactHandlers{Artifacts: d.Artifacts, Logger: d.Logger}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", handleHealthz)

	mux.HandleFunc("POST /api/v1/auth/login", authH.Login)

	protected := http.NewServeMux()
	protected.HandleFunc("GET /api/v1/auth/me", authH.Me)
	protected.Handle("POST /api/v1/auth/users", auth.RequireAdmin(http.HandlerFunc(authH.CreateUser)))
	protected.Handle("GET /api/v1/auth/users", auth.RequireAdmin(http.HandlerFunc(authH.ListUsers)))
	protected.Handle("PUT /api/v1/auth/users/{id}", auth.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authH.UpdateUser(w, r, r.PathValue("id"))
	})))

	protected.HandleFunc("POST /api/v1/chat", chatH.PostMessage)
	protected.HandleFunc("GET /api/v1/chat", chatH.ListConversations)
	protected.HandleFunc("GET /api/v1/chat/{id}", func(w http.ResponseWriter, r *http.Request) {
		chatH.GetConversation(w, r, r.PathValue("id"))
	})
	protected.HandleFunc("DELETE /api/v1/chat/{id}", func(w http.ResponseWriter, r *http.Request) {
		chatH.DeleteConversation(w, r, r.PathValue("id"))
	})
	protected.HandleFunc("POST /api/v1/chat/{id}/resume", func(w http.ResponseWriter, r *http.Request) {
		chatH.PostResume(w, r, r.PathValue("id"))
	})

	protected.HandleFunc("GET /api/v1/stream/{run_id}", func(w http.ResponseWriter, r *http.Request) {
		streamH.GetStream(w, r, r.PathValue("run_id"))
	})

	protected.HandleFunc("GET /api/v1/artifacts/{session_id}", func(w http.ResponseWriter, r *http.Request) {
		artifactH.ListArtifacts(w, r, r.PathValue("session_id"))
	})
	protected.HandleFunc("GET /api/v1/artifacts/{session_id}/{id}", func(w http.ResponseWriter, r *http.Request) {
		artifactH.GetArtifact(w, r, r.PathValue("session_id"), r.PathValue("id"))
	})
	protected.HandleFunc("GET /api/v1/artifacts/{session_id}/{id}/versions", func(w http.ResponseWriter, r *http.Request) {
		artifactH.ListVersions(w, r, r.PathValue("session_id"), r.PathValue("id"))
	})
	protected.HandleFunc("GET /api/v1/artifacts/{session_id}/{id}/versions/{n}", func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(r.PathValue("n"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "version must be an integer"})
			return
		}
		artifactH.GetVersion(w, r, r.PathValue("session_id"), r.PathValue("id"), n)
	})

	mux.Handle("/api/v1/", auth.Middleware(d.JWT, d.Logger)(protected))

	var handler http.Handler = mux
	handler = auth.CORSMiddleware(d.CORSOrigins)(handler)
	handler = auth.LoggingMiddleware(d.Logger)(handler)
	return handler
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start binds the listener and serves in the background, returning once
// the listener is established (errors after that point are logged).
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.deps.Host, s.deps.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.buildMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.listener = listener

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	s.logger.Info("http server listening", "addr", addr)
	return nil
}

// Stop gracefully shuts the server down, waiting up to ctx's deadline for
// in-flight requests (SSE streams among them) to drain.
func (s *Server) Stop(ctx context.Context) {
	if s.httpSrv == nil {
		return
	}
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Warn("http server shutdown error", "error", err)
	}
	s.httpSrv = nil
}
