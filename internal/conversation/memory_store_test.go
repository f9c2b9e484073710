package conversation

import (
	"context"
	"testing"
)

func TestMemoryStore_BranchingAndPath(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Create(ctx, "conv1", "", ""); err != nil {
		t.Fatal(err)
	}

	root, err := s.AddMessage(ctx, "conv1", "m1", "hi", "run1", "")
	if err != nil {
		t.Fatal(err)
	}
	if root.ParentID != "" {
		t.Fatalf("root should have no parent, got %q", root.ParentID)
	}

	if err := s.UpdateResponse(ctx, "m1", "hello back"); err != nil {
		t.Fatal(err)
	}

	m2, err := s.AddMessage(ctx, "conv1", "m2", "follow up", "run2", "")
	if err != nil {
		t.Fatal(err)
	}
	if m2.ParentID != "m1" {
		t.Fatalf("expected default parent m1, got %q", m2.ParentID)
	}

	c, _ := s.Get(ctx, "conv1")
	if c.ActiveBranchID != "m2" {
		t.Fatalf("active branch should be m2, got %q", c.ActiveBranchID)
	}

	// Branch: a second child of m1.
	alt, err := s.AddMessage(ctx, "conv1", "m3", "alt", "run3", "m1")
	if err != nil {
		t.Fatal(err)
	}
	if alt.ParentID != "m1" {
		t.Fatalf("expected explicit parent m1, got %q", alt.ParentID)
	}

	c, _ = s.Get(ctx, "conv1")
	if c.ActiveBranchID != "m3" {
		t.Fatalf("active branch should move to m3, got %q", c.ActiveBranchID)
	}

	// The original path via m2 must still resolve correctly.
	pathToM2, err := s.Path(ctx, "conv1", "m2")
	if err != nil {
		t.Fatal(err)
	}
	if len(pathToM2) != 2 || pathToM2[0].ID != "m1" || pathToM2[1].ID != "m2" {
		t.Fatalf("unexpected path to m2: %+v", pathToM2)
	}

	children, err := s.Children(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 children of m1, got %d", len(children))
	}
}

func TestMemoryStore_ConcurrentRunRejected(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Create(ctx, "conv1", "", "")

	if err := s.TryBeginRun(ctx, "conv1", "run1"); err != nil {
		t.Fatal(err)
	}
	if err := s.TryBeginRun(ctx, "conv1", "run2"); err == nil {
		t.Fatal("expected second concurrent run to be rejected")
	}
	if err := s.EndRun(ctx, "conv1", "run1"); err != nil {
		t.Fatal(err)
	}
	if err := s.TryBeginRun(ctx, "conv1", "run2"); err != nil {
		t.Fatalf("run2 should succeed after run1 ends: %v", err)
	}
}

func TestMemoryStore_EnsureExistsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i := 0; i < 3; i++ {
		if _, err := s.EnsureExists(ctx, "conv1"); err != nil {
			t.Fatal(err)
		}
	}
	all, _ := s.List(ctx, "", 0, 0)
	if len(all) != 1 {
		t.Fatalf("expected exactly one conversation, got %d", len(all))
	}
}
