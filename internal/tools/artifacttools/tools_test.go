package artifacttools

import (
	"context"
	"log/slog"
	"testing"

	"github.com/artifactflow/server/internal/artifacts"
	"github.com/artifactflow/server/internal/toolkit"
	"github.com/artifactflow/server/pkg/models"
)

func newTestStore(t *testing.T) artifacts.Store {
	t.Helper()
	return artifacts.NewMemoryStore(slog.Default())
}

func TestSessionIDMissingFromContextFails(t *testing.T) {
	store := newTestStore(t)
	tool := NewCreateArtifactTool(store)

	_, err := tool.Execute(context.Background(), map[string]any{
		"id": "doc", "content_type": "markdown", "title": "Doc", "content": "hello",
	})
	if err == nil {
		t.Fatal("expected error when no session id is bound to context")
	}
}

func TestCreateReadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := models.WithSessionID(context.Background(), "conv-1")
	if err := store.EnsureSession(ctx, "conv-1"); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}

	create := NewCreateArtifactTool(store)
	res, err := create.Execute(ctx, map[string]any{
		"id": "doc", "content_type": "markdown", "title": "Doc", "content": "hello world",
	})
	if err != nil {
		t.Fatalf("create_artifact: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}

	read := NewReadArtifactTool(store)
	res, err = read.Execute(ctx, map[string]any{"id": "doc"})
	if err != nil {
		t.Fatalf("read_artifact: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	data := res.Data
	if data["content"] != "hello world" {
		t.Fatalf("expected content %q, got %q", "hello world", data["content"])
	}
}

func TestUpdateArtifactCASConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := models.WithSessionID(context.Background(), "conv-2")
	if err := store.EnsureSession(ctx, "conv-2"); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}

	create := NewCreateArtifactTool(store)
	createRes, err := create.Execute(ctx, map[string]any{
		"id": "doc", "content_type": "text", "title": "Doc", "content": "hello world",
	})
	if err != nil || !createRes.Success {
		t.Fatalf("create_artifact: err=%v res=%+v", err, createRes)
	}

	update := NewUpdateArtifactTool(store)
	res, err := update.Execute(ctx, map[string]any{
		"id": "doc", "old_str": "hello", "new_str": "goodbye", "expected_lock": 99,
	})
	if err != nil {
		t.Fatalf("update_artifact call itself should not error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure on lock mismatch")
	}

	data := createRes.Data
	lock := data["lock_version"].(int)
	res, err = update.Execute(ctx, map[string]any{
		"id": "doc", "old_str": "hello", "new_str": "goodbye", "expected_lock": lock,
	})
	if err != nil {
		t.Fatalf("update_artifact: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success with correct lock_version, got error: %s", res.Error)
	}
}

func TestUpdateArtifactAmbiguousMatch(t *testing.T) {
	store := newTestStore(t)
	ctx := models.WithSessionID(context.Background(), "conv-3")
	if err := store.EnsureSession(ctx, "conv-3"); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}

	create := NewCreateArtifactTool(store)
	createRes, err := create.Execute(ctx, map[string]any{
		"id": "doc", "content_type": "text", "title": "Doc", "content": "foo bar foo",
	})
	if err != nil || !createRes.Success {
		t.Fatalf("create_artifact: err=%v res=%+v", err, createRes)
	}
	data := createRes.Data
	lock := data["lock_version"].(int)

	update := NewUpdateArtifactTool(store)
	res, err := update.Execute(ctx, map[string]any{
		"id": "doc", "old_str": "foo", "new_str": "baz", "expected_lock": lock,
	})
	if err != nil {
		t.Fatalf("update_artifact call itself should not error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure on ambiguous match (old_str occurs twice)")
	}
}

func TestRewriteArtifact(t *testing.T) {
	store := newTestStore(t)
	ctx := models.WithSessionID(context.Background(), "conv-4")
	if err := store.EnsureSession(ctx, "conv-4"); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}

	create := NewCreateArtifactTool(store)
	createRes, err := create.Execute(ctx, map[string]any{
		"id": "doc", "content_type": "text", "title": "Doc", "content": "v1",
	})
	if err != nil || !createRes.Success {
		t.Fatalf("create_artifact: err=%v res=%+v", err, createRes)
	}
	data := createRes.Data
	lock := data["lock_version"].(int)

	rewrite := NewRewriteArtifactTool(store)
	res, err := rewrite.Execute(ctx, map[string]any{
		"id": "doc", "content": "completely new content", "expected_lock": lock,
	})
	if err != nil {
		t.Fatalf("rewrite_artifact: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}

	read := NewReadArtifactTool(store)
	readRes, err := read.Execute(ctx, map[string]any{"id": "doc"})
	if err != nil {
		t.Fatalf("read_artifact: %v", err)
	}
	readData := readRes.Data
	if readData["content"] != "completely new content" {
		t.Fatalf("expected rewritten content, got %q", readData["content"])
	}
}

func TestListArtifacts(t *testing.T) {
	store := newTestStore(t)
	ctx := models.WithSessionID(context.Background(), "conv-5")
	if err := store.EnsureSession(ctx, "conv-5"); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}

	create := NewCreateArtifactTool(store)
	for _, id := range []string{"a", "b"} {
		res, err := create.Execute(ctx, map[string]any{
			"id": id, "content_type": "markdown", "title": "Title " + id, "content": "content " + id,
		})
		if err != nil || !res.Success {
			t.Fatalf("create_artifact %s: err=%v res=%+v", id, err, res)
		}
	}

	list := NewListArtifactsTool(store)
	res, err := list.Execute(ctx, map[string]any{})
	if err != nil {
		t.Fatalf("list_artifacts: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	items := res.Data["artifacts"].([]map[string]any)
	if len(items) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(items))
	}
}

func TestRegisterAllReturnsAllToolNames(t *testing.T) {
	registry := toolkit.NewRegistry()
	store := newTestStore(t)

	names, err := RegisterAll(registry, store)
	if err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	want := map[string]bool{
		"create_artifact": true, "update_artifact": true, "rewrite_artifact": true,
		"read_artifact": true, "list_artifacts": true,
	}
	if len(names) != len(want) {
		t.Fatalf("expected %d tool names, got %d: %v", len(want), len(names), names)
	}
	for _, n := range names {
		if !want[n] {
			t.Fatalf("unexpected tool name %q", n)
		}
	}
}
