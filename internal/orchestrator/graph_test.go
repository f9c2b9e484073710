package orchestrator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/artifactflow/server/internal/agentrt"
	"github.com/artifactflow/server/internal/orchestrator"
	"github.com/artifactflow/server/internal/toolkit"
	"github.com/artifactflow/server/pkg/models"
)

type scriptedProvider struct {
	responses []string
	calls     int
}

func (p *scriptedProvider) Stream(ctx context.Context, req agentrt.CompletionRequest, onChunk func(agentrt.Chunk)) (string, error) {
	i := p.calls
	p.calls++
	content := ""
	if i < len(p.responses) {
		content = p.responses[i]
	}
	onChunk(agentrt.Chunk{Type: agentrt.ChunkContent, Content: content})
	return content, nil
}

type recordingSink struct {
	permissionRequests int
	toolStarts         []string
	agentCompletes     []string
}

func (s *recordingSink) AgentStart(agent string)                           {}
func (s *recordingSink) LLMChunk(agent, content, reasoning string)         {}
func (s *recordingSink) LLMComplete(agent string, usage models.TokenUsage) {}
func (s *recordingSink) AgentComplete(agent, content string) {
	s.agentCompletes = append(s.agentCompletes, agent)
}
func (s *recordingSink) ToolStart(agent, tool string, params map[string]any) {
	s.toolStarts = append(s.toolStarts, tool)
}
func (s *recordingSink) ToolComplete(agent, tool string, success bool, duration time.Duration, errMsg string, resultData any) {
}
func (s *recordingSink) PermissionRequest(agent, tool string, params map[string]any, permission string) {
	s.permissionRequests++
}

func newEchoTool(name string, perm toolkit.Permission) *toolkit.Tool {
	return &toolkit.Tool{
		Name:       name,
		Permission: perm,
		Parameters: []toolkit.Parameter{{Name: "q", Type: "string"}},
		Execute: func(ctx context.Context, params map[string]any) (models.ToolResult, error) {
			return models.ToolResult{Success: true, Data: map[string]any{"echo": params["q"]}}, nil
		},
	}
}

func buildGraph(t *testing.T, leadResponses []string, leadPerm toolkit.Permission) (*orchestrator.Graph, *models.RunState, *recordingSink) {
	t.Helper()
	registry := toolkit.NewRegistry()
	if err := registry.Register(newEchoTool("search", leadPerm)); err != nil {
		t.Fatalf("register: %v", err)
	}

	checker := toolkit.NewChecker(registry, time.Minute)

	leadAgent := &agentrt.Agent{Name: "lead", ModelID: "test-model", Toolkit: registry.Toolkit("search"), IsLead: true}
	lead := &orchestrator.Node{Agent: leadAgent, Provider: &scriptedProvider{responses: leadResponses}}

	g := &orchestrator.Graph{Lead: lead, Subagents: map[string]*orchestrator.Node{}, Checker: checker}
	state := &models.RunState{RunID: "run1", ConversationID: "conv1", MessageID: "msg1", CurrentTask: "do it"}
	return g, state, &recordingSink{}
}

func TestGraphRun_LeadNoToolCall_Completes(t *testing.T) {
	g, state, sink := buildGraph(t, []string{"all done"}, toolkit.PermissionPublic)

	if err := g.Run(context.Background(), state, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Phase != models.PhaseCompleted {
		t.Fatalf("phase = %v, want Completed", state.Phase)
	}
	if state.Memory("lead").FinalContent != "all done" {
		t.Fatalf("final content = %q", state.Memory("lead").FinalContent)
	}
}

func TestGraphRun_PublicTool_ExecutesDirectly(t *testing.T) {
	call := `<tool_call><name>search</name><params><q><![CDATA[golang]]></q></params></tool_call>`
	g, state, sink := buildGraph(t, []string{call, "found it"}, toolkit.PermissionPublic)

	if err := g.Run(context.Background(), state, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Phase != models.PhaseCompleted {
		t.Fatalf("phase = %v, want Completed", state.Phase)
	}
	if len(sink.toolStarts) != 1 || sink.toolStarts[0] != "search" {
		t.Fatalf("toolStarts = %v", sink.toolStarts)
	}
	if state.Metrics.ToolCallCount["search"] != 1 {
		t.Fatalf("tool call count = %+v", state.Metrics.ToolCallCount)
	}
}

func TestGraphRun_ConfirmTool_SuspendsThenApprove(t *testing.T) {
	call := `<tool_call><name>search</name><params><q><![CDATA[golang]]></q></params></tool_call>`
	g, state, sink := buildGraph(t, []string{call, "found it"}, toolkit.PermissionConfirm)

	if err := g.Run(context.Background(), state, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Phase != models.PhaseWaitingPermission {
		t.Fatalf("phase = %v, want WaitingPermission", state.Phase)
	}
	if sink.permissionRequests != 1 {
		t.Fatalf("permissionRequests = %d", sink.permissionRequests)
	}
	if len(sink.toolStarts) != 0 {
		t.Fatalf("toolStarts = %v, want none before approval", sink.toolStarts)
	}

	if err := g.Resume(context.Background(), state, true, sink); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if state.Phase != models.PhaseCompleted {
		t.Fatalf("phase after resume = %v, want Completed", state.Phase)
	}
	if len(sink.toolStarts) != 1 {
		t.Fatalf("toolStarts after resume = %v", sink.toolStarts)
	}
}

func TestGraphResume_Denied_SynthesizesErrorResult(t *testing.T) {
	call := `<tool_call><name>search</name><params><q><![CDATA[golang]]></q></params></tool_call>`
	g, state, sink := buildGraph(t, []string{call, "handled denial"}, toolkit.PermissionConfirm)

	if err := g.Run(context.Background(), state, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := g.Resume(context.Background(), state, false, sink); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if state.Phase != models.PhaseCompleted {
		t.Fatalf("phase = %v, want Completed", state.Phase)
	}
	if len(sink.toolStarts) != 0 {
		t.Fatalf("toolStarts = %v, want none on denial", sink.toolStarts)
	}
	mem := state.Memory("lead")
	if len(mem.ToolInteractions) != 1 || mem.ToolInteractions[0].Result.Error != "Permission denied by user" {
		t.Fatalf("tool interactions = %+v", mem.ToolInteractions)
	}
}

func TestGraphRun_RestrictedTool_DeniedWithoutGrant(t *testing.T) {
	call := `<tool_call><name>search</name><params><q><![CDATA[golang]]></q></params></tool_call>`
	g, state, sink := buildGraph(t, []string{call, "ok, denied"}, toolkit.PermissionRestricted)

	if err := g.Run(context.Background(), state, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Phase != models.PhaseCompleted {
		t.Fatalf("phase = %v, want Completed", state.Phase)
	}
	mem := state.Memory("lead")
	if len(mem.ToolInteractions) != 1 || mem.ToolInteractions[0].Result.Success {
		t.Fatalf("tool interactions = %+v", mem.ToolInteractions)
	}
}

func TestGraphRun_SubagentRouting_ObservationInjected(t *testing.T) {
	registry := toolkit.NewRegistry()
	checker := toolkit.NewChecker(registry, time.Minute)

	routeCall := `<tool_call><name>` + toolkit.CallSubagentName + `</name><params>` +
		`<agent_type>researcher</agent_type><instruction><![CDATA[look into X]]></instruction></params></tool_call>`
	leadAgent := &agentrt.Agent{Name: "lead", ModelID: "test-model", Toolkit: registry.Toolkit(), IsLead: true, SubagentNames: []string{"researcher"}}
	lead := &orchestrator.Node{Agent: leadAgent, Provider: &scriptedProvider{responses: []string{routeCall, "synthesized final"}}}

	subAgent := &agentrt.Agent{Name: "researcher", ModelID: "test-model", Toolkit: registry.Toolkit()}
	sub := &orchestrator.Node{Agent: subAgent, Provider: &scriptedProvider{responses: []string{"here is what I found"}}}

	g := &orchestrator.Graph{Lead: lead, Subagents: map[string]*orchestrator.Node{"researcher": sub}, Checker: checker}
	state := &models.RunState{RunID: "run1", ConversationID: "conv1", MessageID: "msg1", CurrentTask: "investigate"}
	sink := &recordingSink{}

	if err := g.Run(context.Background(), state, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Phase != models.PhaseCompleted {
		t.Fatalf("phase = %v, want Completed", state.Phase)
	}
	leadMem := state.Memory("lead")
	if len(leadMem.ToolInteractions) != 1 || leadMem.ToolInteractions[0].ToolName != toolkit.CallSubagentName {
		t.Fatalf("lead tool interactions = %+v", leadMem.ToolInteractions)
	}
	data, ok := leadMem.ToolInteractions[0].Result.Data.(map[string]any)
	if !ok || data["observation"] != "here is what I found" {
		t.Fatalf("observation = %+v", leadMem.ToolInteractions[0].Result.Data)
	}
}

func TestGraphRun_SubagentCallingSubagent_SynthesizesError(t *testing.T) {
	registry := toolkit.NewRegistry()
	checker := toolkit.NewChecker(registry, time.Minute)

	routeCall := `<tool_call><name>` + toolkit.CallSubagentName + `</name><params>` +
		`<agent_type>researcher</agent_type><instruction><![CDATA[look into X]]></instruction></params></tool_call>`
	nestedCall := `<tool_call><name>` + toolkit.CallSubagentName + `</name><params>` +
		`<agent_type>other</agent_type><instruction><![CDATA[help]]></instruction></params></tool_call>`

	leadAgent := &agentrt.Agent{Name: "lead", ModelID: "test-model", Toolkit: registry.Toolkit(), IsLead: true, SubagentNames: []string{"researcher"}}
	lead := &orchestrator.Node{Agent: leadAgent, Provider: &scriptedProvider{responses: []string{routeCall, "done after nested failure"}}}

	subAgent := &agentrt.Agent{Name: "researcher", ModelID: "test-model", Toolkit: registry.Toolkit()}
	sub := &orchestrator.Node{Agent: subAgent, Provider: &scriptedProvider{responses: []string{nestedCall}}}

	g := &orchestrator.Graph{Lead: lead, Subagents: map[string]*orchestrator.Node{"researcher": sub}, Checker: checker}
	state := &models.RunState{RunID: "run1", ConversationID: "conv1", MessageID: "msg1", CurrentTask: "investigate"}
	sink := &recordingSink{}

	if err := g.Run(context.Background(), state, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The graph keeps driving the subagent past the rejected nested call
	// (its next turn returns empty content and finishes), so the run
	// ultimately completes rather than staying suspended on the subagent.
	if state.Phase != models.PhaseCompleted {
		t.Fatalf("phase = %v, want Completed", state.Phase)
	}
	subMem := state.Memory("researcher")
	if len(subMem.ToolInteractions) != 1 || subMem.ToolInteractions[0].Result.Success {
		t.Fatalf("sub tool interactions = %+v", subMem.ToolInteractions)
	}
	if subMem.ToolInteractions[0].Result.Error != "subagents cannot call further subagents" {
		t.Fatalf("error = %q", subMem.ToolInteractions[0].Result.Error)
	}
}

func TestGraphRun_RecursionLimitExceeded(t *testing.T) {
	call := `<tool_call><name>search</name><params><q><![CDATA[x]]></q></params></tool_call>`
	responses := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		responses = append(responses, call)
	}
	g, state, sink := buildGraph(t, responses, toolkit.PermissionPublic)
	g.MaxSteps = 3

	err := g.Run(context.Background(), state, sink)
	if err == nil {
		t.Fatal("expected recursion-limit error")
	}
	if !errors.Is(err, models.ErrInternal) {
		t.Fatalf("err = %v, want wrapping models.ErrInternal", err)
	}
}
