// Package orchestrator implements the Graph / State Machine component
// (spec.md §4.8): a fixed lead/subagent/permission-node graph whose
// transitions are driven entirely by RunState.Phase and CurrentAgent.
//
// Grounded on original_source/src/core/graph.py (routing table precedence,
// recursion-limit handling) and original_source/src/core/state.py
// (AgentState shape), reimplemented as an explicit Go state machine rather
// than a graph-library dependency per spec.md §9's "Interrupts without
// coroutine magic" — see DESIGN.md.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/artifactflow/server/internal/agentrt"
	"github.com/artifactflow/server/internal/toolkit"
	"github.com/artifactflow/server/pkg/models"
)

// Node binds one agent to the provider and retry policy it invokes with.
type Node struct {
	Agent    *agentrt.Agent
	Provider agentrt.Provider
	Retry    agentrt.RetryConfig
}

// Sink receives every event the graph and its agents emit. Built on top of
// agentrt.Sink (agent_start/llm_chunk/llm_complete) plus the graph-level
// events spec.md §6 names: tool_start/tool_complete, permission_request,
// and agent_complete.
type Sink interface {
	agentrt.Sink
	AgentComplete(agent, content string)
	ToolStart(agent, tool string, params map[string]any)
	ToolComplete(agent, tool string, success bool, duration time.Duration, errMsg string, resultData any)
	PermissionRequest(agent, tool string, params map[string]any, permission string)
}

// Graph is the fixed-shape state machine: one lead node, a set of
// subagent nodes, and the permission checker that gates tool execution.
type Graph struct {
	Lead      *Node
	Subagents map[string]*Node
	Checker   *toolkit.Checker
	MaxSteps  int
}

func (g *Graph) maxSteps() int {
	if g.MaxSteps <= 0 {
		return 100
	}
	return g.MaxSteps
}

func (g *Graph) leadName() string { return g.Lead.Agent.Name }

func (g *Graph) nodeByName(name string) *Node {
	if name == g.leadName() {
		return g.Lead
	}
	return g.Subagents[name]
}

// Run drives state until it suspends (WAITING_PERMISSION), completes, or
// errors. A suspended run is resumed later via Resume.
func (g *Graph) Run(ctx context.Context, state *models.RunState, sink Sink) error {
	if state.Phase == "" {
		state.Phase = models.PhaseLeadExecuting
		state.CurrentAgent = g.leadName()
	}
	if state.Metrics.ToolCallCount == nil {
		state.Metrics.ToolCallCount = make(map[string]int)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		state.StepCount++
		if state.StepCount > g.maxSteps() {
			return fmt.Errorf("%w: recursion limit of %d steps exceeded", models.ErrInternal, g.maxSteps())
		}

		switch state.Phase {
		case models.PhaseCompleted:
			return nil
		case models.PhaseWaitingPermission:
			pp := state.PendingPerm
			if pp == nil {
				return fmt.Errorf("%w: WAITING_PERMISSION phase with no pending permission", models.ErrInternal)
			}
			sink.PermissionRequest(pp.FromAgent, pp.ToolName, pp.Params, pp.Permission)
			return nil
		default:
			if err := g.step(ctx, state, sink); err != nil {
				return err
			}
		}
	}
}

// Resume delivers an approval decision for the pending permission and
// continues driving the graph (spec.md §4.8 permission-confirmation node).
func (g *Graph) Resume(ctx context.Context, state *models.RunState, approved bool, sink Sink) error {
	pp := state.PendingPerm
	if pp == nil {
		return fmt.Errorf("%w: no pending permission to resume", models.ErrValidation)
	}
	state.PendingPerm = nil

	// Records the decision and, if approved, a one-shot grant for this
	// (agent, tool) pair. Best-effort: the request may already have been
	// pruned by TTL, which is not fatal to resuming the run.
	if pp.RequestID != "" {
		_, _ = g.Checker.Decide(pp.RequestID, approved)
	}

	var result models.ToolResult
	if approved {
		sink.ToolStart(pp.FromAgent, pp.ToolName, pp.Params)
		start := time.Now()
		result = g.executeTool(ctx, pp.FromAgent, pp.ToolName, pp.Params)
		sink.ToolComplete(pp.FromAgent, pp.ToolName, result.Success, time.Since(start), result.Error, result.Data)
	} else {
		result = models.ToolResult{Success: false, Error: "Permission denied by user"}
		sink.ToolComplete(pp.FromAgent, pp.ToolName, false, 0, result.Error, nil)
	}

	mem := state.Memory(pp.FromAgent)
	mem.ToolInteractions = append(mem.ToolInteractions, models.ToolInteraction{
		ToolName: pp.ToolName, Params: pp.Params, Result: result,
	})
	mem.ToolRounds++
	state.Metrics.ToolCallCount[pp.ToolName]++

	if pp.FromAgent == g.leadName() {
		state.Phase = models.PhaseLeadExecuting
	} else {
		state.Phase = models.PhaseSubagentExecuting
	}
	state.CurrentAgent = pp.FromAgent

	return g.Run(ctx, state, sink)
}

func (g *Graph) executeTool(ctx context.Context, fromAgent, toolName string, params map[string]any) models.ToolResult {
	node := g.nodeByName(fromAgent)
	if node == nil || node.Agent.Toolkit == nil {
		return models.ToolResult{Success: false, Error: fmt.Sprintf("agent %q has no toolkit", fromAgent)}
	}
	tool, ok := node.Agent.Toolkit.Get(toolName)
	if !ok {
		return models.ToolResult{Success: false, Error: fmt.Sprintf("unknown tool %q", toolName)}
	}
	if err := tool.Validate(params); err != nil {
		return models.ToolResult{Success: false, Error: err.Error()}
	}
	result, err := tool.Execute(ctx, params)
	if err != nil {
		return models.ToolResult{Success: false, Error: err.Error()}
	}
	return result
}

// step runs exactly one agent-node invocation and applies the resulting
// routing transition. It never blocks across an invocation boundary
// beyond the single Invoke call.
func (g *Graph) step(ctx context.Context, state *models.RunState, sink Sink) error {
	agentName := state.CurrentAgent
	node := g.nodeByName(agentName)
	if node == nil {
		return fmt.Errorf("%w: unknown current agent %q", models.ErrInternal, agentName)
	}

	mem := state.Memory(agentName)
	task := state.CurrentTask
	if agentName != g.leadName() {
		task = mem.Task
	}

	in := agentrt.TurnInput{
		Task:             task,
		History:          state.History,
		ToolInteractions: mem.ToolInteractions,
		Context: agentrt.SystemPromptContext{
			Task:          task,
			ToolNames:     node.Agent.Toolkit.Names(),
			SubagentNames: node.Agent.SubagentNames,
		},
	}

	result, err := node.Agent.Invoke(ctx, node.Provider, node.Retry, in, sink)
	if err != nil {
		return err
	}
	state.Metrics.TotalTokens += result.Usage.TotalTokens
	sink.AgentComplete(agentName, result.Content)

	if result.Routing == nil {
		return g.finishTurn(state, agentName, result.Content)
	}

	switch result.Routing.Type {
	case models.RoutingSubagent:
		return g.routeSubagent(state, agentName, mem, result)
	default:
		return g.routeToolCall(ctx, state, node, agentName, mem, result, sink)
	}
}

// finishTurn handles an agent turn that produced no routing: the lead's
// content becomes the run's final response; a subagent's content becomes
// an observation fed back into the lead.
func (g *Graph) finishTurn(state *models.RunState, agentName, content string) error {
	mem := state.Memory(agentName)
	mem.FinalContent = content

	if agentName == g.leadName() {
		state.Phase = models.PhaseCompleted
		return nil
	}

	leadMem := state.Memory(g.leadName())
	leadMem.ToolInteractions = append(leadMem.ToolInteractions, models.ToolInteraction{
		ToolName: toolkit.CallSubagentName,
		Params:   map[string]any{"agent_type": agentName, "instruction": mem.Task},
		Result:   models.ToolResult{Success: true, Data: map[string]any{"observation": content}},
	})
	state.Phase = models.PhaseLeadExecuting
	state.CurrentAgent = g.leadName()
	return nil
}

func (g *Graph) routeSubagent(state *models.RunState, agentName string, mem *models.AgentMemory, result *agentrt.TurnResult) error {
	// spec.md §4.8 "Subagent node behavior... can only route to tool
	// calls (no further subagent routing)". A subagent attempting to
	// route to another subagent surfaces as a failed call, fed back as
	// an ordinary tool result rather than honored as routing.
	if agentName != g.leadName() {
		mem.ToolInteractions = append(mem.ToolInteractions, models.ToolInteraction{
			ToolName: toolkit.CallSubagentName,
			Params:   result.Routing.Params,
			Result:   models.ToolResult{Success: false, Error: "subagents cannot call further subagents"},
		})
		mem.ToolRounds++
		return nil
	}

	target := result.Routing.Target
	if _, ok := g.Subagents[target]; !ok {
		mem.ToolInteractions = append(mem.ToolInteractions, models.ToolInteraction{
			ToolName: toolkit.CallSubagentName,
			Params:   map[string]any{"agent_type": target, "instruction": result.Routing.Instruction},
			Result:   models.ToolResult{Success: false, Error: fmt.Sprintf("unknown subagent %q", target)},
		})
		return nil
	}

	tmem := state.Memory(target)
	tmem.Task = result.Routing.Instruction
	tmem.ToolInteractions = nil
	tmem.ToolRounds = 0
	state.Phase = models.PhaseSubagentExecuting
	state.CurrentAgent = target
	return nil
}

func (g *Graph) routeToolCall(ctx context.Context, state *models.RunState, node *Node, agentName string, mem *models.AgentMemory, result *agentrt.TurnResult, sink Sink) error {
	toolName := result.Routing.ToolName

	// The graph must never execute call_subagent as a normal tool
	// (spec.md §9): it only reaches here when the parsed params failed
	// call_subagent's own validation, so surface that as a tool error.
	if toolName == toolkit.CallSubagentName {
		mem.ToolInteractions = append(mem.ToolInteractions, models.ToolInteraction{
			ToolName: toolName, Params: result.Routing.Params,
			Result: models.ToolResult{Success: false, Error: "invalid call_subagent parameters: agent_type and instruction are required"},
		})
		mem.ToolRounds++
		return nil
	}

	tool, ok := node.Agent.Toolkit.Get(toolName)
	if !ok {
		mem.ToolInteractions = append(mem.ToolInteractions, models.ToolInteraction{
			ToolName: toolName, Params: result.Routing.Params,
			Result: models.ToolResult{Success: false, Error: fmt.Sprintf("unknown tool %q", toolName)},
		})
		mem.ToolRounds++
		return nil
	}
	if err := tool.Validate(result.Routing.Params); err != nil {
		mem.ToolInteractions = append(mem.ToolInteractions, models.ToolInteraction{
			ToolName: toolName, Params: result.Routing.Params,
			Result: models.ToolResult{Success: false, Error: err.Error()},
		})
		mem.ToolRounds++
		return nil
	}

	if mem.ToolRounds >= node.Agent.MaxToolRoundsOrDefault() {
		mem.ToolInteractions = append(mem.ToolInteractions, models.ToolInteraction{
			ToolName: toolName, Params: result.Routing.Params,
			Result: models.ToolResult{Success: false, Error: "maximum consecutive tool rounds exceeded; respond without further tool calls"},
		})
		return nil
	}

	decision := g.Checker.Check(agentName, toolName, tool.Permission)
	switch decision {
	case toolkit.DecisionAsk:
		requestID := uuid.New().String()
		g.Checker.CreateRequest(requestID, state.RunID, agentName, toolName, result.Routing.Params, tool.Permission)
		state.PendingPerm = &models.PendingPermission{
			RequestID: requestID, FromAgent: agentName, ToolName: toolName, Params: result.Routing.Params, Permission: string(tool.Permission),
		}
		state.Phase = models.PhaseWaitingPermission
		return nil
	case toolkit.DecisionDeny:
		mem.ToolInteractions = append(mem.ToolInteractions, models.ToolInteraction{
			ToolName: toolName, Params: result.Routing.Params,
			Result: models.ToolResult{Success: false, Error: "permission denied"},
		})
		mem.ToolRounds++
		state.Metrics.ToolCallCount[toolName]++
		return nil
	default:
		sink.ToolStart(agentName, toolName, result.Routing.Params)
		start := time.Now()
		execResult, err := tool.Execute(ctx, result.Routing.Params)
		if err != nil {
			execResult = models.ToolResult{Success: false, Error: err.Error()}
		}
		sink.ToolComplete(agentName, toolName, execResult.Success, time.Since(start), execResult.Error, execResult.Data)

		mem.ToolInteractions = append(mem.ToolInteractions, models.ToolInteraction{
			ToolName: toolName, Params: result.Routing.Params, Result: execResult,
		})
		mem.ToolRounds++
		state.Metrics.ToolCallCount[toolName]++
		return nil
	}
}
