// Package artifacttools adapts the Artifact Store (spec.md §4.3) into the
// public toolkit.Tool surface agents call through the XML tool-call
// protocol: create_artifact, update_artifact, rewrite_artifact,
// read_artifact, and list_artifacts. These are the one concrete tool
// family spec.md §1 does NOT leave external — the store itself is core,
// and an agent has no other way to produce or revise an artifact.
//
// Grounded on original_source/src/tools/implementations/artifact_tools.py
// for the parameter shapes and on internal/toolkit/call_subagent.go for
// the Go Tool-builder idiom (definition + closure-bound Execute).
package artifacttools

import (
	"context"
	"fmt"

	"github.com/artifactflow/server/internal/artifacts"
	"github.com/artifactflow/server/internal/toolkit"
	"github.com/artifactflow/server/pkg/models"
)

// sessionID resolves which ArtifactSession a tool call addresses. Tools
// execute deep inside the graph, several call frames away from the
// Execution Controller that knows the conversation id, so it travels via
// context (pkg/models.WithSessionID) rather than as a tool parameter the
// LLM would have to supply (and could get wrong).
func sessionID(ctx context.Context) (string, error) {
	id, ok := models.SessionIDFromContext(ctx)
	if !ok || id == "" {
		return "", fmt.Errorf("%w: no artifact session bound to this run", models.ErrInternal)
	}
	return id, nil
}

// toolError renders a store error as a failed (not erroring) ToolResult so
// the agent sees it as ordinary tool output and can decide to retry or
// report it, per spec.md §7: "VersionConflict... surfaced to the agent as
// a tool error" and "ToolError... agent receives it as tool result and
// decides next step."
func toolError(err error) (models.ToolResult, error) {
	return models.ToolResult{Success: false, Error: err.Error()}, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// NewCreateArtifactTool builds the create_artifact tool (spec.md §4.3
// create).
func NewCreateArtifactTool(store artifacts.Store) *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "create_artifact",
		Description: "Create a new versioned artifact (document, code, plan) in this conversation",
		Permission:  toolkit.PermissionPublic,
		Parameters: []toolkit.Parameter{
			{Name: "id", Type: "string", Required: true, Description: "Unique identifier for the artifact within this conversation"},
			{Name: "content_type", Type: "string", Required: true, Description: "Content type, e.g. markdown, code, text"},
			{Name: "title", Type: "string", Required: true, Description: "Human-readable title"},
			{Name: "content", Type: "string", Required: true, Description: "Full initial content"},
		},
		Execute: func(ctx context.Context, params map[string]any) (models.ToolResult, error) {
			sid, err := sessionID(ctx)
			if err != nil {
				return models.ToolResult{}, err
			}
			id, _ := params["id"].(string)
			contentType, _ := params["content_type"].(string)
			title, _ := params["title"].(string)
			content, _ := params["content"].(string)

			art, err := store.Create(ctx, sid, id, contentType, title, content)
			if err != nil {
				return toolError(err)
			}
			return models.ToolResult{Success: true, Data: map[string]any{
				"id": art.ID, "version": art.CurrentVersion, "lock_version": art.LockVersion,
			}}, nil
		},
	}
}

// NewUpdateArtifactTool builds the update_artifact tool (spec.md §4.3
// update: unique-occurrence string replace under CAS).
func NewUpdateArtifactTool(store artifacts.Store) *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "update_artifact",
		Description: "Replace the unique occurrence of old_str with new_str in an artifact, subject to optimistic locking",
		Permission:  toolkit.PermissionPublic,
		Parameters: []toolkit.Parameter{
			{Name: "id", Type: "string", Required: true},
			{Name: "old_str", Type: "string", Required: true, Description: "Text that must occur exactly once in the current content"},
			{Name: "new_str", Type: "string", Required: true},
			{Name: "expected_lock", Type: "integer", Required: true, Description: "The artifact's current lock_version, for compare-and-swap"},
		},
		Execute: func(ctx context.Context, params map[string]any) (models.ToolResult, error) {
			sid, err := sessionID(ctx)
			if err != nil {
				return models.ToolResult{}, err
			}
			id, _ := params["id"].(string)
			oldStr, _ := params["old_str"].(string)
			newStr, _ := params["new_str"].(string)
			lock, ok := asInt(params["expected_lock"])
			if !ok {
				return models.ToolResult{Success: false, Error: "expected_lock must be an integer"}, nil
			}

			art, err := store.Update(ctx, sid, id, oldStr, newStr, lock)
			if err != nil {
				return toolError(err)
			}
			return models.ToolResult{Success: true, Data: map[string]any{
				"id": art.ID, "version": art.CurrentVersion, "lock_version": art.LockVersion,
			}}, nil
		},
	}
}

// NewRewriteArtifactTool builds the rewrite_artifact tool (spec.md §4.3
// rewrite: whole-content replace under CAS, no ambiguity check).
func NewRewriteArtifactTool(store artifacts.Store) *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "rewrite_artifact",
		Description: "Replace an artifact's entire content, subject to optimistic locking",
		Permission:  toolkit.PermissionPublic,
		Parameters: []toolkit.Parameter{
			{Name: "id", Type: "string", Required: true},
			{Name: "content", Type: "string", Required: true},
			{Name: "expected_lock", Type: "integer", Required: true},
		},
		Execute: func(ctx context.Context, params map[string]any) (models.ToolResult, error) {
			sid, err := sessionID(ctx)
			if err != nil {
				return models.ToolResult{}, err
			}
			id, _ := params["id"].(string)
			content, _ := params["content"].(string)
			lock, ok := asInt(params["expected_lock"])
			if !ok {
				return models.ToolResult{Success: false, Error: "expected_lock must be an integer"}, nil
			}

			art, err := store.Rewrite(ctx, sid, id, content, lock)
			if err != nil {
				return toolError(err)
			}
			return models.ToolResult{Success: true, Data: map[string]any{
				"id": art.ID, "version": art.CurrentVersion, "lock_version": art.LockVersion,
			}}, nil
		},
	}
}

// NewReadArtifactTool builds the read_artifact tool (spec.md §4.3 read).
func NewReadArtifactTool(store artifacts.Store) *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "read_artifact",
		Description: "Read an artifact's content, optionally at a specific historical version",
		Permission:  toolkit.PermissionPublic,
		Parameters: []toolkit.Parameter{
			{Name: "id", Type: "string", Required: true},
			{Name: "version", Type: "integer", Required: false, Description: "Omit for current content"},
		},
		Execute: func(ctx context.Context, params map[string]any) (models.ToolResult, error) {
			sid, err := sessionID(ctx)
			if err != nil {
				return models.ToolResult{}, err
			}
			id, _ := params["id"].(string)

			var versionPtr *int
			if v, ok := asInt(params["version"]); ok {
				versionPtr = &v
			}

			art, err := store.Read(ctx, sid, id, versionPtr)
			if err != nil {
				return toolError(err)
			}
			return models.ToolResult{Success: true, Data: map[string]any{
				"id": art.ID, "content": art.Content, "version": art.CurrentVersion,
				"lock_version": art.LockVersion, "title": art.Title, "content_type": art.ContentType,
			}}, nil
		},
	}
}

// NewListArtifactsTool builds the list_artifacts tool (spec.md §4.3 list:
// summaries excluding full content).
func NewListArtifactsTool(store artifacts.Store) *toolkit.Tool {
	return &toolkit.Tool{
		Name:        "list_artifacts",
		Description: "List artifact summaries in this conversation, optionally filtered by content_type",
		Permission:  toolkit.PermissionPublic,
		Parameters: []toolkit.Parameter{
			{Name: "content_type", Type: "string", Required: false},
		},
		Execute: func(ctx context.Context, params map[string]any) (models.ToolResult, error) {
			sid, err := sessionID(ctx)
			if err != nil {
				return models.ToolResult{}, err
			}
			contentType, _ := params["content_type"].(string)

			summaries, err := store.List(ctx, sid, contentType)
			if err != nil {
				return toolError(err)
			}
			items := make([]map[string]any, 0, len(summaries))
			for _, s := range summaries {
				items = append(items, map[string]any{
					"id": s.ID, "title": s.Title, "content_type": s.ContentType,
					"version": s.CurrentVersion, "preview": s.Preview,
				})
			}
			return models.ToolResult{Success: true, Data: map[string]any{"artifacts": items}}, nil
		},
	}
}

// RegisterAll registers every artifact tool into registry, returning their
// names for convenient toolkit binding.
func RegisterAll(registry *toolkit.Registry, store artifacts.Store) ([]string, error) {
	tools := []*toolkit.Tool{
		NewCreateArtifactTool(store),
		NewUpdateArtifactTool(store),
		NewRewriteArtifactTool(store),
		NewReadArtifactTool(store),
		NewListArtifactsTool(store),
	}
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
		names = append(names, t.Name)
	}
	return names, nil
}
