package execctl

import (
	"time"

	"github.com/artifactflow/server/internal/metrics"
	"github.com/artifactflow/server/internal/streambuf"
	"github.com/artifactflow/server/pkg/models"
)

// bufferSink adapts the orchestrator.Sink contract to a run's stream
// buffer (spec.md §4.5): every agent/graph event is pushed verbatim, per
// spec.md §4.9 step 8 "Forward every event from agent and graph layers
// verbatim." It also records the ambient Prometheus metrics alongside
// the forwarded event, since both derive from the same call.
type bufferSink struct {
	streams *streambuf.Manager
	runID   string
	metrics *metrics.Metrics
}

func newBufferSink(streams *streambuf.Manager, runID string, mx *metrics.Metrics) *bufferSink {
	return &bufferSink{streams: streams, runID: runID, metrics: mx}
}

func (s *bufferSink) push(t models.EventType, data any) bool {
	return s.streams.Push(s.runID, models.Event{Type: t, Data: data})
}

func (s *bufferSink) AgentStart(agent string) {
	s.push(models.EventAgentStart, models.AgentStartPayload{Agent: agent})
}

func (s *bufferSink) LLMChunk(agent, content, reasoning string) {
	s.push(models.EventLLMChunk, models.LLMChunkPayload{Agent: agent, Content: content, ReasoningContent: reasoning})
}

func (s *bufferSink) LLMComplete(agent string, usage models.TokenUsage) {
	s.push(models.EventLLMComplete, models.LLMCompletePayload{Agent: agent, TokenUsage: usage})
	s.metrics.LLMRequest(agent, "success", usage.PromptTokens, usage.CompletionTokens)
}

func (s *bufferSink) AgentComplete(agent, content string) {
	s.push(models.EventAgentComplete, models.AgentCompletePayload{Agent: agent, Content: content})
}

func (s *bufferSink) ToolStart(agent, tool string, params map[string]any) {
	s.push(models.EventToolStart, models.ToolStartPayload{Agent: agent, Tool: tool, Params: params})
}

func (s *bufferSink) ToolComplete(agent, tool string, success bool, duration time.Duration, errMsg string, resultData any) {
	s.push(models.EventToolComplete, models.ToolCompletePayload{
		Agent: agent, Tool: tool, Success: success, DurationMS: duration.Milliseconds(), Error: errMsg, ResultData: resultData,
	})
	status := "success"
	if !success {
		status = "error"
	}
	s.metrics.ToolExecution(tool, status, duration.Seconds())
}

func (s *bufferSink) PermissionRequest(agent, tool string, params map[string]any, permission string) {
	s.push(models.EventPermissionReq, models.PermissionRequestPayload{Agent: agent, Tool: tool, Params: params, Permission: permission})
}
