package agentrt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/artifactflow/server/internal/toolkit"
	"github.com/artifactflow/server/internal/xmltool"
	"github.com/artifactflow/server/pkg/models"
)

// RetryConfig controls Agent.Invoke's backoff schedule (spec.md §4.7 step 2).
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

func (r RetryConfig) maxRetries() int {
	if r.MaxRetries <= 0 {
		return 3
	}
	return r.MaxRetries
}

func (r RetryConfig) baseDelay() time.Duration {
	if r.BaseDelay <= 0 {
		return time.Second
	}
	return r.BaseDelay
}

// Sink receives events emitted during one agent turn. Implementations
// translate these into models.Event values pushed through the stream
// buffer (spec.md §4.5); the runtime itself knows nothing about SSE.
type Sink interface {
	AgentStart(agent string)
	LLMChunk(agent string, contentCumulative, reasoningCumulative string)
	LLMComplete(agent string, usage models.TokenUsage)
}

// TurnInput is everything Invoke needs to compose one LLM call, per
// spec.md §4.7 step 1: [system_prompt, ...history, {user, instruction},
// ...tool_interactions, ?tool_result]. ToolInteractions/ToolResult are
// populated only when resuming after tool execution.
type TurnInput struct {
	Task             string
	History          []models.HistoryTurn
	ToolInteractions []models.ToolInteraction
	Context          SystemPromptContext
}

// TurnResult is what one agent turn produces: the final formatted content
// and, if the content parsed to a tool call, the extracted routing.
type TurnResult struct {
	Content     string
	RawContent  string
	Usage       models.TokenUsage
	Routing     *models.Routing
}

// Invoke runs one full agent turn: compose messages, call the provider
// with retry/backoff, stream chunks to sink, then parse the response for
// a tool call and populate routing (spec.md §4.7).
//
// The agent never executes a tool itself (spec.md §4.7 closing paragraph,
// §9 "Cyclic-reference removal") — Routing is handed back to the graph,
// which owns the tool-execution step.
func (a *Agent) Invoke(ctx context.Context, provider Provider, retry RetryConfig, in TurnInput, sink Sink) (*TurnResult, error) {
	if sink != nil {
		sink.AgentStart(a.Name)
	}

	messages := a.composeMessages(in)
	req := CompletionRequest{
		Model:       a.ModelID,
		Temperature: a.Temperature,
		Messages:    messages,
	}

	content, usage, err := a.streamWithRetry(ctx, provider, req, retry, sink)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", models.ErrLLMError, a.Name, err)
	}

	if sink != nil {
		sink.LLMComplete(a.Name, usage)
	}

	result := &TurnResult{RawContent: content, Usage: usage}

	call := xmltool.Parse(content)
	if call == nil {
		formatted := content
		if a.FormatFinalResponse != nil {
			formatted = a.FormatFinalResponse(content)
		}
		result.Content = formatted
		return result, nil
	}

	result.Content = content
	result.Routing = a.routeCall(call)
	return result, nil
}

// composeMessages builds the provider-facing message list.
func (a *Agent) composeMessages(in TurnInput) []Message {
	msgs := make([]Message, 0, len(in.History)+len(in.ToolInteractions)+2)

	system := ""
	if a.BuildSystemPrompt != nil {
		system = a.BuildSystemPrompt(in.Context)
	}
	if system != "" {
		msgs = append(msgs, Message{Role: "system", Content: system})
	}

	for _, h := range in.History {
		msgs = append(msgs, Message{Role: h.Role, Content: h.Content})
	}

	msgs = append(msgs, Message{Role: "user", Content: in.Task})

	for _, ti := range in.ToolInteractions {
		msgs = append(msgs, Message{Role: "assistant", Content: renderToolCall(ti.ToolName, ti.Params)})
		msgs = append(msgs, Message{Role: "tool", Content: renderToolResult(ti.Result)})
	}

	return msgs
}

func renderToolCall(name string, params map[string]any) string {
	var b strings.Builder
	b.WriteString("<tool_call><name>")
	b.WriteString(name)
	b.WriteString("</name><params>")
	for k, v := range params {
		fmt.Fprintf(&b, "<%s>%v</%s>", k, v, k)
	}
	b.WriteString("</params></tool_call>")
	return b.String()
}

func renderToolResult(res models.ToolResult) string {
	if !res.Success {
		return "Error: " + res.Error
	}
	return fmt.Sprintf("%v", res.Data)
}

// routeCall converts a parsed XML tool call into a typed Routing,
// recognizing the distinguished call_subagent pseudo-tool per spec.md
// §4.7 step 5.
func (a *Agent) routeCall(call *xmltool.ToolCall) *models.Routing {
	if call.Name == toolkit.CallSubagentName {
		target, _ := call.Params["agent_type"].(string)
		instruction, _ := call.Params["instruction"].(string)
		if target != "" && instruction != "" {
			return &models.Routing{
				Type:        models.RoutingSubagent,
				Target:      target,
				Instruction: instruction,
				FromAgent:   a.Name,
			}
		}
		// Invalid call_subagent params: fall through to a normal tool-call
		// routing so the graph surfaces the validation error via the tool
		// node instead of silently dropping the call.
	}
	return &models.Routing{
		Type:      models.RoutingToolCall,
		ToolName:  call.Name,
		Params:    call.Params,
		FromAgent: a.Name,
	}
}

// streamWithRetry invokes the provider, retrying per spec.md §4.7 step 2's
// error classification: rate-limit -> doubled wait, timeout -> quick
// retry at base wait, auth -> fail fast, otherwise -> linear backoff.
func (a *Agent) streamWithRetry(ctx context.Context, provider Provider, req CompletionRequest, retry RetryConfig, sink Sink) (string, models.TokenUsage, error) {
	var lastErr error
	delay := retry.baseDelay()

	for attempt := 0; attempt <= retry.maxRetries(); attempt++ {
		var contentBuf strings.Builder
		var reasoningBuf strings.Builder
		var usage models.TokenUsage

		callCtx, cancel := a.callTimeout(ctx)
		content, err := provider.Stream(callCtx, req, func(c Chunk) {
			switch c.Type {
			case ChunkContent:
				contentBuf.WriteString(c.Content)
				if sink != nil {
					sink.LLMChunk(a.Name, contentBuf.String(), reasoningBuf.String())
				}
			case ChunkReasoning:
				reasoningBuf.WriteString(c.ReasoningContent)
				if sink != nil {
					sink.LLMChunk(a.Name, contentBuf.String(), reasoningBuf.String())
				}
			case ChunkUsage:
				usage.PromptTokens += c.PromptTokens
				usage.CompletionTokens += c.CompletionTokens
				usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
			}
		})
		cancel()
		if err == nil {
			return content, usage, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", usage, ctx.Err()
		}

		kind := classify(err)
		if kind == ErrKindAuth {
			return "", usage, err
		}
		if attempt == retry.maxRetries() {
			break
		}

		wait := nextDelay(kind, delay, attempt)
		select {
		case <-ctx.Done():
			return "", usage, ctx.Err()
		case <-time.After(wait):
		}
		if kind == ErrKindRateLimit {
			delay *= 2
		}
	}
	return "", models.TokenUsage{}, lastErr
}

// callTimeout bounds a single provider call so a hung connection surfaces as
// a context error instead of blocking the retry loop forever. Per-agent
// override takes precedence; otherwise falls back to a package default.
func (a *Agent) callTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	timeout := a.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func nextDelay(kind ProviderErrorKind, base time.Duration, attempt int) time.Duration {
	switch kind {
	case ErrKindRateLimit:
		return base
	case ErrKindTimeout:
		return base
	default:
		return time.Duration(math.Max(1, float64(attempt+1))) * base
	}
}

// classify inspects a provider error for retry purposes. It prefers a
// ClassifiableError implementation (concrete adapters should return one)
// and falls back to the same string-pattern heuristics as the teacher's
// providers.ClassifyError, reimplemented here with a smaller vocabulary
// scoped to spec.md §4.7 step 2's four buckets.
func classify(err error) ProviderErrorKind {
	var ce ClassifiableError
	if errors.As(err, &ce) {
		return ce.Kind()
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "rate limit"), strings.Contains(s, "rate_limit"),
		strings.Contains(s, "too many requests"), strings.Contains(s, "429"):
		return ErrKindRateLimit
	case strings.Contains(s, "timeout"), strings.Contains(s, "deadline exceeded"),
		strings.Contains(s, "context deadline"):
		return ErrKindTimeout
	case strings.Contains(s, "unauthorized"), strings.Contains(s, "invalid api key"),
		strings.Contains(s, "invalid_api_key"), strings.Contains(s, "authentication"),
		strings.Contains(s, "401"), strings.Contains(s, "403"):
		return ErrKindAuth
	default:
		return ErrKindOther
	}
}
