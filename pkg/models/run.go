package models

// Phase is the RunState's position in the graph's fixed state machine.
type Phase string

const (
	PhaseLeadExecuting     Phase = "LEAD_EXECUTING"
	PhaseSubagentExecuting Phase = "SUBAGENT_EXECUTING"
	PhaseWaitingPermission Phase = "WAITING_PERMISSION"
	PhaseCompleted         Phase = "COMPLETED"
)

// RoutingType distinguishes the two things an agent's tool call can mean.
type RoutingType string

const (
	RoutingToolCall RoutingType = "tool_call"
	RoutingSubagent RoutingType = "subagent"
)

// Routing is extracted from an agent's parsed tool call (spec.md §4.7 step 5).
// It replaces the original's marker-key-sniffed dict with a typed value.
type Routing struct {
	Type       RoutingType    `json:"type"`
	ToolName   string         `json:"tool_name,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
	Target     string         `json:"target,omitempty"`     // subagent name, when Type == RoutingSubagent
	Instruction string        `json:"instruction,omitempty"` // subagent task, when Type == RoutingSubagent
	FromAgent  string         `json:"from_agent"`
	Permission string         `json:"permission_level,omitempty"`
}

// PendingPermission captures the tool call awaiting an approval decision.
type PendingPermission struct {
	RequestID  string         `json:"request_id"`
	FromAgent  string         `json:"from_agent"`
	ToolName   string         `json:"tool_name"`
	Params     map[string]any `json:"params"`
	Permission string         `json:"permission_level"`
}

// ToolInteraction records one agent-turn tool call/result pair, replayed
// into the next invocation's message list per spec.md §4.7 step 1.
type ToolInteraction struct {
	ToolName string         `json:"tool_name"`
	Params   map[string]any `json:"params"`
	Result   ToolResult     `json:"result"`
}

// ToolResult is what a tool execution (or a synthesized permission-denial)
// produces.
type ToolResult struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ExecutionMetrics is attached to the terminal `complete` event.
// Grounded on original_source/src/core/controller.py's metrics block
// (SPEC_FULL.md §12).
type ExecutionMetrics struct {
	DurationMS    int64          `json:"duration_ms"`
	TotalTokens   int            `json:"total_tokens_used"`
	ToolCallCount map[string]int `json:"tool_call_count,omitempty"`
}

// AgentMemory holds one agent's rolling tool-interaction history and
// consecutive tool-round counter within a single run.
type AgentMemory struct {
	// Task is the instruction this agent is working on for the current
	// phase. For the lead it mirrors RunState.CurrentTask; for a subagent
	// it is the instruction carried over from the call_subagent routing
	// that invoked it (spec.md §4.8 "carry the instruction into the
	// subagent's next invocation").
	Task             string            `json:"task,omitempty"`
	ToolInteractions []ToolInteraction `json:"tool_interactions,omitempty"`
	ToolRounds       int               `json:"tool_rounds"`
	FinalContent     string            `json:"final_content,omitempty"`
}

// RunState is the transient, per-execution state driving the graph.
// Persisted only indirectly, via Message.AgentFinalResponse and Artifact
// mutations (spec.md §3 Ownership).
type RunState struct {
	RunID          string                  `json:"run_id"`
	ConversationID string                  `json:"conversation_id"`
	MessageID      string                  `json:"message_id"`
	CurrentTask    string                  `json:"current_task"`
	History        []HistoryTurn           `json:"conversation_history"`
	Phase          Phase                   `json:"phase"`
	CurrentAgent   string                  `json:"current_agent"`
	Routing        *Routing                `json:"routing,omitempty"`
	PendingPerm    *PendingPermission      `json:"pending_permission,omitempty"`
	AgentMemories  map[string]*AgentMemory `json:"agent_memories"`
	Metrics        ExecutionMetrics        `json:"execution_metrics"`
	StepCount      int                     `json:"-"`
	Err            error                   `json:"-"`
}

// Memory returns (creating if necessary) the per-agent scratch memory.
func (rs *RunState) Memory(agent string) *AgentMemory {
	if rs.AgentMemories == nil {
		rs.AgentMemories = make(map[string]*AgentMemory)
	}
	m, ok := rs.AgentMemories[agent]
	if !ok {
		m = &AgentMemory{}
		rs.AgentMemories[agent] = m
	}
	return m
}
