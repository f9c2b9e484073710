package artifacts

import (
	"context"
	"errors"
	"testing"

	"github.com/artifactflow/server/pkg/models"
)

func TestMemoryStore_CreateUpdateRead(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	if err := s.EnsureSession(ctx, "sess1"); err != nil {
		t.Fatal(err)
	}

	art, err := s.Create(ctx, "sess1", "plan", "markdown", "Plan", "A\nB")
	if err != nil {
		t.Fatal(err)
	}
	if art.CurrentVersion != 1 || art.LockVersion != 1 {
		t.Fatalf("unexpected fresh artifact: %+v", art)
	}

	updated, err := s.Update(ctx, "sess1", "plan", "A", "A'", 1)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Content != "A'\nB" || updated.CurrentVersion != 2 || updated.LockVersion != 2 {
		t.Fatalf("unexpected updated artifact: %+v", updated)
	}

	versions, err := s.ListVersions(ctx, "sess1", "plan")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 || versions[0].UpdateType != models.UpdateTypeCreate || versions[1].UpdateType != models.UpdateTypeUpdate {
		t.Fatalf("unexpected versions: %+v", versions)
	}

	v1, err := s.GetVersion(ctx, "sess1", "plan", 1)
	if err != nil || v1.ContentSnapshot != "A\nB" {
		t.Fatalf("version 1 mismatch: %+v, err=%v", v1, err)
	}
}

func TestMemoryStore_AmbiguousMatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	s.EnsureSession(ctx, "sess1")
	s.Create(ctx, "sess1", "doc", "text", "", "AAA")

	_, err := s.Update(ctx, "sess1", "doc", "A", "B", 1)
	if !errors.Is(err, models.ErrAmbiguousMatch) {
		t.Fatalf("expected ErrAmbiguousMatch, got %v", err)
	}

	art, _ := s.Read(ctx, "sess1", "doc", nil)
	if art.Content != "AAA" || art.LockVersion != 1 {
		t.Fatalf("content/version must be unchanged after ambiguous match: %+v", art)
	}
}

func TestMemoryStore_VersionConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	s.EnsureSession(ctx, "sess1")
	s.Create(ctx, "sess1", "doc", "text", "", "hello")

	if _, err := s.Update(ctx, "sess1", "doc", "hello", "world", 1); err != nil {
		t.Fatal(err)
	}
	// Second caller still believes lock_version is 1.
	_, err := s.Update(ctx, "sess1", "doc", "world", "there", 1)
	if !errors.Is(err, models.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestMemoryStore_ClearTemporary(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	s.EnsureSession(ctx, "sess1")
	s.Create(ctx, "sess1", "task_plan", "markdown", "", "scratch")
	s.Create(ctx, "sess1", "keep", "markdown", "", "permanent")

	if err := s.ClearTemporary(ctx, "sess1", DefaultTemporaryIDs); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Read(ctx, "sess1", "task_plan", nil); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected task_plan to be gone, got err=%v", err)
	}
	if _, err := s.Read(ctx, "sess1", "keep", nil); err != nil {
		t.Fatalf("keep should survive ClearTemporary: %v", err)
	}
}
