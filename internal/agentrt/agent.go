// Package agentrt implements the Agent Runtime component (spec.md §4.7):
// single-turn LLM invocation with retry, streamed chunk emission, and
// post-hoc parsing of the coordinator's free-form output for tool calls.
//
// Grounded on internal/agent/runtime.go's message-composition, retry-loop,
// and chunk-tagging idiom, adapted to call internal/xmltool instead of a
// provider's native tool-calling API, and to populate Routing rather than
// execute tools directly (spec.md §4.7's closing paragraph).
package agentrt

import (
	"time"

	"github.com/artifactflow/server/internal/toolkit"
)

// defaultCallTimeout bounds a single provider call when neither the caller's
// context nor the agent specifies a deadline.
const defaultCallTimeout = 2 * time.Minute

// Agent is one LLM-backed role: the lead/coordinator or a specialized
// subagent.
type Agent struct {
	Name            string
	Description     string
	ModelID         string
	Temperature     float64
	MaxToolRounds   int
	CallTimeout     time.Duration // per-call bound; defaultCallTimeout if zero
	Toolkit         *toolkit.Toolkit
	IsLead          bool
	SubagentNames   []string // valid call_subagent targets; only set on the lead

	BuildSystemPrompt   func(state SystemPromptContext) string
	FormatFinalResponse func(content string) string
}

// SystemPromptContext is what BuildSystemPrompt needs to render a prompt:
// the task, the available tool names, and the subagent names it may route to.
type SystemPromptContext struct {
	Task          string
	ToolNames     []string
	SubagentNames []string
}

func (a *Agent) maxToolRounds() int {
	return a.MaxToolRoundsOrDefault()
}

// MaxToolRoundsOrDefault returns the agent's configured per-run consecutive
// tool-round bound (spec.md §4.8), defaulting to 5 when unset.
func (a *Agent) MaxToolRoundsOrDefault() int {
	if a.MaxToolRounds <= 0 {
		return 5
	}
	return a.MaxToolRounds
}
