// Package toolkit implements the Tool Registry & Permissions component
// (spec.md §4.1): a flat name->tool catalog, immutable per-agent toolkits,
// and the permission gate that decides whether a call executes
// immediately, needs approval, or fails closed.
//
// Grounded on internal/agent/approval.go (Go shape) adapted to the
// permission-level-set semantics of
// original_source/src/tools/permissions.py (see DESIGN.md).
package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/artifactflow/server/pkg/models"
)

// Permission is the sensitivity tier of a tool.
type Permission string

const (
	PermissionPublic     Permission = "public"
	PermissionNotify      Permission = "notify"
	PermissionConfirm     Permission = "confirm"
	PermissionRestricted  Permission = "restricted"
)

// Parameter describes one named input a tool accepts.
type Parameter struct {
	Name        string
	Type        string // "string" | "integer" | "float" | "boolean" | "list"
	Description string
	Required    bool
}

// Tool is a callable capability with a declared permission tier.
type Tool struct {
	Name        string
	Description string
	Parameters  []Parameter
	Permission  Permission
	Execute     func(ctx context.Context, params map[string]any) (models.ToolResult, error)
}

// Validate checks params against the JSON schema derived from t.Parameters
// (unknown names, missing required fields, wrong types), grounded on
// pkg/pluginsdk/validation.go's compile-and-cache idiom.
func (t *Tool) Validate(params map[string]any) error {
	schema, err := t.compiledSchema()
	if err != nil {
		return fmt.Errorf("%w: %s: compile parameter schema: %w", models.ErrValidation, t.Name, err)
	}

	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%w: %s: encode parameters: %w", models.ErrValidation, t.Name, err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("%w: %s: decode parameters: %w", models.ErrValidation, t.Name, err)
	}

	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("%w: %s: %w", models.ErrValidation, t.Name, err)
	}
	return nil
}

var schemaCache sync.Map

// compiledSchema builds (or fetches from cache) the JSON schema implied by
// t.Parameters: an object with additionalProperties false and one property
// per declared parameter.
func (t *Tool) compiledSchema() (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(t.Name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	properties := make(map[string]any, len(t.Parameters))
	var required []string
	for _, p := range t.Parameters {
		properties[p.Name] = map[string]any{"type": jsonSchemaType(p.Type), "description": p.Description}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	raw, err := json.Marshal(map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	})
	if err != nil {
		return nil, err
	}

	compiled, err := jsonschema.CompileString(t.Name+".schema.json", string(raw))
	if err != nil {
		return nil, err
	}
	schemaCache.Store(t.Name, compiled)
	return compiled, nil
}

func jsonSchemaType(t string) string {
	switch t {
	case "integer":
		return "integer"
	case "float":
		return "number"
	case "boolean":
		return "boolean"
	case "list":
		return "array"
	default:
		return "string"
	}
}

// Toolkit is an immutable view of a subset of the registry's tools, bound
// to one agent. Agents hold a toolkit; tools never reference back into
// agents (spec.md §9 "Cyclic-reference removal").
type Toolkit struct {
	names   []string
	byName  map[string]*Tool
}

func (tk *Toolkit) Names() []string { return append([]string(nil), tk.names...) }

func (tk *Toolkit) Get(name string) (*Tool, bool) {
	t, ok := tk.byName[name]
	return t, ok
}
