package providers

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/artifactflow/server/internal/agentrt"
)

// OpenAIProvider implements agentrt.Provider against OpenAI's chat
// completion streaming API, grounded on
// internal/agent/providers/openai.go's client/stream handling.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider builds an OpenAI-backed provider. apiKey must be
// non-empty; callers typically source it from an environment variable at
// startup wiring time.
func NewOpenAIProvider(apiKey string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	return &OpenAIProvider{client: openai.NewClient(apiKey)}, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, req agentrt.CompletionRequest, onChunk func(agentrt.Chunk)) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := m.Role
		if role == "tool" {
			role = openai.ChatMessageRoleTool
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		Stream:      true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return "", classify("openai", err)
	}
	defer stream.Close()

	var content string
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return content, nil
		}
		if err != nil {
			return content, classify("openai", err)
		}

		if resp.Usage != nil {
			onChunk(agentrt.Chunk{
				Type:             agentrt.ChunkUsage,
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
			})
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			content += delta
			onChunk(agentrt.Chunk{Type: agentrt.ChunkContent, Content: delta})
		}
	}
}

var _ agentrt.Provider = (*OpenAIProvider)(nil)
