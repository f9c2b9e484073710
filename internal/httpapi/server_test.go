package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/artifactflow/server/internal/agentrt"
	"github.com/artifactflow/server/internal/artifacts"
	"github.com/artifactflow/server/internal/auth"
	"github.com/artifactflow/server/internal/conversation"
	"github.com/artifactflow/server/internal/execctl"
	"github.com/artifactflow/server/internal/orchestrator"
	"github.com/artifactflow/server/internal/streambuf"
	"github.com/artifactflow/server/internal/taskmgr"
	"github.com/artifactflow/server/internal/toolkit"
	"github.com/artifactflow/server/pkg/models"
)

type scriptedProvider struct {
	responses []string
	calls     int
}

func (p *scriptedProvider) Stream(ctx context.Context, req agentrt.CompletionRequest, onChunk func(agentrt.Chunk)) (string, error) {
	if p.calls >= len(p.responses) {
		return "", nil
	}
	resp := p.responses[p.calls]
	p.calls++
	onChunk(agentrt.Chunk{Content: resp})
	return resp, nil
}

func newTestHarness(t *testing.T) (http.Handler, *auth.JWTService, auth.UserStore) {
	t.Helper()

	lead := &agentrt.Agent{
		Name:    "lead",
		IsLead:  true,
		Toolkit: toolkit.NewRegistry().Toolkit(),
		BuildSystemPrompt: func(ctx agentrt.SystemPromptContext) string {
			return "you are the lead agent"
		},
	}
	graph := &orchestrator.Graph{
		Lead:      &orchestrator.Node{Agent: lead, Provider: &scriptedProvider{responses: []string{"hello there"}}},
		Subagents: map[string]*orchestrator.Node{},
		Checker:   toolkit.NewChecker(toolkit.NewRegistry(), time.Minute),
	}

	convStore := conversation.NewMemoryStore()
	artifactStore := artifacts.NewMemoryStore(nil)
	streams := streambuf.NewManager(time.Minute)
	tasks := taskmgr.NewManager(4, nil)

	controller := execctl.New(convStore, artifactStore, streams, graph, tasks, nil)

	users := auth.NewMemoryUserStore()
	hash, err := auth.HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if _, err := users.Create(context.Background(), "usr-1", "alice", hash, models.RoleAdmin); err != nil {
		t.Fatalf("Create user: %v", err)
	}

	jwt := auth.NewJWTService("test-secret", time.Hour)

	srv := NewServer(Deps{
		Controller:    controller,
		Conversations: convStore,
		Artifacts:     artifactStore,
		Streams:       streams,
		Users:         users,
		JWT:           jwt,
		Host:          "127.0.0.1",
		Port:          0,
		CORSOrigins:   []string{"*"},
		PingInterval:  time.Minute,
	})
	return srv.buildMux(), jwt, users
}

func TestLogin_Success(t *testing.T) {
	mux, _, _ := newTestHarness(t)

	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "correct-horse"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AccessToken == "" || resp.User.Username != "alice" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	mux, _, _ := newTestHarness(t)

	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "nope"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestChatEndpoint_RequiresBearer(t *testing.T) {
	mux, _, _ := newTestHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestPostMessage_ThenStream_YieldsCompleteEvent(t *testing.T) {
	mux, jwt, users := newTestHarness(t)

	user, err := users.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	token, _, err := jwt.Generate(user)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	body, _ := json.Marshal(map[string]string{"content": "hi there"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var posted newMessageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &posted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if posted.RunID == "" || posted.StreamURL == "" {
		t.Fatalf("posted = %+v", posted)
	}

	// The run executes on a background goroutine under the task manager;
	// poll the stream until it terminates or the test times out.
	deadline := time.Now().Add(2 * time.Second)
	var sawComplete bool
	for time.Now().Before(deadline) {
		streamReq := httptest.NewRequest(http.MethodGet, "/api/v1/stream/"+posted.RunID, nil)
		streamReq.Header.Set("Authorization", "Bearer "+token)
		streamRec := httptest.NewRecorder()
		mux.ServeHTTP(streamRec, streamReq)

		if strings.Contains(streamRec.Body.String(), "event: complete") {
			sawComplete = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !sawComplete {
		t.Fatal("stream never delivered a complete event")
	}
}

func TestGetStream_UnknownRun_404(t *testing.T) {
	mux, jwt, users := newTestHarness(t)
	user, _ := users.GetByUsername(context.Background(), "alice")
	token, _, _ := jwt.Generate(user)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stream/run-does-not-exist", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body = %s", rec.Code, rec.Body.String())
	}
}

func TestListUsers_RequiresAdmin(t *testing.T) {
	mux, jwt, users := newTestHarness(t)

	hash, _ := auth.HashPassword("pw")
	if _, err := users.Create(context.Background(), "usr-2", "bob", hash, models.RoleUser); err != nil {
		t.Fatalf("Create: %v", err)
	}
	bob, _ := users.GetByUsername(context.Background(), "bob")
	token, _, _ := jwt.Generate(bob)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	mux, _, _ := newTestHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	scanner := bufio.NewScanner(rec.Body)
	var gotStatus bool
	for scanner.Scan() {
		if strings.Contains(scanner.Text(), `"status":"ok"`) {
			gotStatus = true
		}
	}
	if !gotStatus {
		t.Fatalf("healthz body = %s", rec.Body.String())
	}
}
