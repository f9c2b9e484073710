package agentrt

import "context"

// Message is one entry of the composed LLM request, per spec.md §4.7
// step 1: [system_prompt, ...conversation_history, {user, instruction},
// ...tool_interactions, ?tool_result].
type Message struct {
	Role    string // "system" | "user" | "assistant" | "tool"
	Content string
}

// CompletionRequest is one single-turn LLM invocation.
type CompletionRequest struct {
	Model       string
	Temperature float64
	Messages    []Message
}

// ChunkType tags streamed pieces of the response per spec.md §4.7 step 3.
type ChunkType string

const (
	ChunkContent   ChunkType = "content"
	ChunkReasoning ChunkType = "reasoning"
	ChunkUsage     ChunkType = "usage"
	ChunkFinal     ChunkType = "final"
)

type Chunk struct {
	Type             ChunkType
	Content          string
	ReasoningContent string
	PromptTokens     int
	CompletionTokens int
}

// Provider is the narrow contract concrete LLM adapters implement.
// spec.md §1 explicitly puts concrete adapters out of scope; this
// interface is what they plug into (SPEC_FULL.md §11 wires
// implementations behind it using go-openai, anthropic-sdk-go, and
// google.golang.org/genai).
type Provider interface {
	// Stream issues one completion request, invoking onChunk for every
	// streamed piece, and returns the full accumulated content on success.
	Stream(ctx context.Context, req CompletionRequest, onChunk func(Chunk)) (content string, err error)
}

// ProviderErrorKind classifies a failure for retry purposes (spec.md §4.7
// step 2).
type ProviderErrorKind int

const (
	ErrKindOther ProviderErrorKind = iota
	ErrKindRateLimit
	ErrKindTimeout
	ErrKindAuth
)

// ClassifiableError lets a Provider's error carry retry-classification
// hints without the runtime needing to string-match provider-specific
// messages.
type ClassifiableError interface {
	error
	Kind() ProviderErrorKind
}
