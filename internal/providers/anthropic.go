package providers

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/artifactflow/server/internal/agentrt"
)

// AnthropicProvider implements agentrt.Provider against Claude's message
// streaming API, grounded on internal/agent/providers/anthropic.go's
// message-conversion and SSE event-tagging idiom (text_delta/
// thinking_delta/message_delta), narrowed to this runtime's content+
// reasoning+usage chunk shape.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
}

func NewAnthropicProvider(apiKey, defaultModel string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if defaultModel == "" {
		defaultModel = "claude-sonnet-4-20250514"
	}
	return &AnthropicProvider{
		client:       anthropic.NewClient(option.WithAPIKey(apiKey)),
		defaultModel: defaultModel,
	}, nil
}

func (p *AnthropicProvider) Stream(ctx context.Context, req agentrt.CompletionRequest, onChunk func(agentrt.Chunk)) (string, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	var system []anthropic.TextBlockParam
	var messages []anthropic.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			// "user" and "tool" both map to Anthropic's user turn, matching
			// the teacher's convertMessages.
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: 4096,
	}
	if len(system) > 0 {
		params.System = system
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	var content string
	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					content += delta.Text
					onChunk(agentrt.Chunk{Type: agentrt.ChunkContent, Content: delta.Text})
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					onChunk(agentrt.Chunk{Type: agentrt.ChunkReasoning, ReasoningContent: delta.Thinking})
				}
			}
		case "message_start":
			usage := event.AsMessageStart().Message.Usage
			if usage.InputTokens > 0 {
				onChunk(agentrt.Chunk{Type: agentrt.ChunkUsage, PromptTokens: int(usage.InputTokens)})
			}
		case "message_delta":
			usage := event.AsMessageDelta().Usage
			if usage.OutputTokens > 0 {
				onChunk(agentrt.Chunk{Type: agentrt.ChunkUsage, CompletionTokens: int(usage.OutputTokens)})
			}
		}
	}
	if err := stream.Err(); err != nil {
		return content, classify("anthropic", err)
	}
	return content, nil
}

var _ agentrt.Provider = (*AnthropicProvider)(nil)
