package toolkit_test

import (
	"testing"

	"github.com/artifactflow/server/internal/toolkit"
)

func searchTool() *toolkit.Tool {
	return &toolkit.Tool{
		Name:       "search",
		Permission: toolkit.PermissionPublic,
		Parameters: []toolkit.Parameter{
			{Name: "query", Type: "string", Required: true},
			{Name: "limit", Type: "integer"},
		},
	}
}

func TestTool_Validate_OK(t *testing.T) {
	tool := searchTool()
	if err := tool.Validate(map[string]any{"query": "go routines", "limit": 5}); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestTool_Validate_MissingRequired(t *testing.T) {
	tool := searchTool()
	if err := tool.Validate(map[string]any{"limit": 5}); err == nil {
		t.Fatal("expected error for missing required parameter")
	}
}

func TestTool_Validate_UnknownParameter(t *testing.T) {
	tool := searchTool()
	if err := tool.Validate(map[string]any{"query": "x", "bogus": true}); err == nil {
		t.Fatal("expected error for unknown parameter")
	}
}

func TestTool_Validate_WrongType(t *testing.T) {
	tool := searchTool()
	if err := tool.Validate(map[string]any{"query": "x", "limit": "not-a-number"}); err == nil {
		t.Fatal("expected error for wrong parameter type")
	}
}
