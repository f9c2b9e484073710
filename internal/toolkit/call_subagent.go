package toolkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/artifactflow/server/pkg/models"
)

// CallSubagentName is the distinguished pseudo-tool name the graph
// recognizes as a routing instruction rather than a real tool execution
// (spec.md §9 "Tool invocation as routing").
const CallSubagentName = "call_subagent"

// NewCallSubagentTool builds the routing pseudo-tool. Its Execute is never
// invoked by the graph's tool-execution step (spec.md §4.8 forbids that);
// it exists only so the registry/validator can describe and validate its
// parameters uniformly with every other tool, and so the public-permission
// path (it is always public — routing itself needs no approval) is
// explicit.
//
// Grounded on original_source/src/tools/implementations/call_subagent.py.
func NewCallSubagentTool(validAgents []string) *Tool {
	return &Tool{
		Name:        CallSubagentName,
		Description: "Call a specialized sub-agent to handle a specific task",
		Permission:  PermissionPublic,
		Parameters: []Parameter{
			{Name: "agent_type", Type: "string", Required: true,
				Description: "Target sub-agent: one of " + strings.Join(validAgents, ", ")},
			{Name: "instruction", Type: "string", Required: true,
				Description: "Detailed task instruction for the sub-agent"},
		},
		Execute: func(ctx context.Context, params map[string]any) (models.ToolResult, error) {
			agentType, _ := params["agent_type"].(string)
			valid := false
			for _, a := range validAgents {
				if a == agentType {
					valid = true
					break
				}
			}
			if !valid {
				return models.ToolResult{Success: false, Error: fmt.Sprintf(
					"invalid agent_type %q, must be one of: %s", agentType, strings.Join(validAgents, ", "))}, nil
			}
			instruction, _ := params["instruction"].(string)
			instruction = strings.TrimSpace(instruction)
			if instruction == "" {
				return models.ToolResult{Success: false, Error: "instruction parameter cannot be empty"}, nil
			}
			return models.ToolResult{
				Success: true,
				Data: map[string]any{
					"route_to":    agentType,
					"instruction": instruction,
				},
			}, nil
		},
	}
}
