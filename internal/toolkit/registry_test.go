package toolkit_test

import (
	"testing"

	"github.com/artifactflow/server/internal/toolkit"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := toolkit.NewRegistry()
	if err := r.Register(&toolkit.Tool{Name: "search"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, ok := r.Get("search"); !ok {
		t.Fatal("expected search to be registered")
	}
	if _, ok := r.Get("missing"); ok {
		t.Fatal("expected missing tool to be absent")
	}
}

func TestRegistry_RegisterDuplicateFails(t *testing.T) {
	r := toolkit.NewRegistry()
	r.Register(&toolkit.Tool{Name: "search"})
	if err := r.Register(&toolkit.Tool{Name: "search"}); err == nil {
		t.Fatal("expected error re-registering the same tool name")
	}
}

func TestRegistry_RegisterEmptyNameFails(t *testing.T) {
	r := toolkit.NewRegistry()
	if err := r.Register(&toolkit.Tool{}); err == nil {
		t.Fatal("expected error for empty tool name")
	}
}

func TestRegistry_ToolkitSkipsUnknownNames(t *testing.T) {
	r := toolkit.NewRegistry()
	r.Register(&toolkit.Tool{Name: "search"})

	tk := r.Toolkit("search", "bogus")
	if len(tk.Names()) != 1 || tk.Names()[0] != "search" {
		t.Fatalf("Names() = %v, want [search]", tk.Names())
	}
	if _, ok := tk.Get("bogus"); ok {
		t.Fatal("expected bogus tool to be absent from toolkit")
	}
}
