package models

// EventType enumerates the SSE event names in spec.md §6.
type EventType string

const (
	EventMetadata         EventType = "metadata"
	EventAgentStart       EventType = "agent_start"
	EventLLMChunk         EventType = "llm_chunk"
	EventLLMComplete      EventType = "llm_complete"
	EventToolStart        EventType = "tool_start"
	EventToolComplete     EventType = "tool_complete"
	EventPermissionReq    EventType = "permission_request"
	EventAgentComplete    EventType = "agent_complete"
	EventComplete         EventType = "complete"
	EventError            EventType = "error"

	// EventHeartbeat is a synthesized sentinel (never sent to the producer
	// side) rendered as an SSE comment ": ping\n\n" rather than a named
	// event, to keep the TCP connection warm (spec.md §4.5).
	EventHeartbeat EventType = "heartbeat"
)

// Event is the envelope pushed into a run's stream buffer and rendered on
// the wire as `event: <Type>\ndata: <json(Data)>\n\n`.
type Event struct {
	Type EventType `json:"-"`
	Data any       `json:"-"`
}

func (e Event) IsTerminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

type MetadataPayload struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	RunID          string `json:"run_id"`
}

type AgentStartPayload struct {
	Agent string `json:"agent"`
}

type LLMChunkPayload struct {
	Agent            string `json:"agent"`
	Content          string `json:"content,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type LLMCompletePayload struct {
	Agent      string     `json:"agent"`
	TokenUsage TokenUsage `json:"token_usage"`
}

type ToolStartPayload struct {
	Agent  string         `json:"agent"`
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

type ToolCompletePayload struct {
	Agent      string `json:"agent"`
	Tool       string `json:"tool"`
	Success    bool   `json:"success"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	ResultData any    `json:"result_data,omitempty"`
}

type PermissionRequestPayload struct {
	Agent      string         `json:"agent"`
	Tool       string         `json:"tool"`
	Params     map[string]any `json:"params"`
	Permission string         `json:"permission_level"`
}

type AgentCompletePayload struct {
	Agent   string `json:"agent"`
	Content string `json:"content"`
}

type CompletePayload struct {
	Interrupted     bool              `json:"interrupted"`
	Response        string            `json:"response,omitempty"`
	ExecutionMetrics ExecutionMetrics `json:"execution_metrics"`
	InterruptType   string            `json:"interrupt_type,omitempty"`
	InterruptData   any               `json:"interrupt_data,omitempty"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
