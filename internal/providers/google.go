package providers

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"github.com/artifactflow/server/internal/agentrt"
)

// GoogleProvider implements agentrt.Provider against the Gemini API via
// google.golang.org/genai's streaming iterator, grounded on
// internal/agent/providers/google.go's convertMessages/
// processStreamResponse idiom.
type GoogleProvider struct {
	client       *genai.Client
	defaultModel string
}

func NewGoogleProvider(ctx context.Context, apiKey, defaultModel string) (*GoogleProvider, error) {
	if apiKey == "" {
		return nil, errors.New("google: API key is required")
	}
	if defaultModel == "" {
		defaultModel = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, classify("google", err)
	}
	return &GoogleProvider{client: client, defaultModel: defaultModel}, nil
}

func (p *GoogleProvider) Stream(ctx context.Context, req agentrt.CompletionRequest, onChunk func(agentrt.Chunk)) (string, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	var config *genai.GenerateContentConfig
	var contents []*genai.Content
	for _, m := range req.Messages {
		if m.Role == "system" {
			if config == nil {
				config = &genai.GenerateContentConfig{}
			}
			config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: m.Content}}}
			continue
		}
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	var content string
	for resp, err := range p.client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			return content, classify("google", err)
		}
		if resp == nil {
			continue
		}
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil || part.Text == "" {
					continue
				}
				content += part.Text
				onChunk(agentrt.Chunk{Type: agentrt.ChunkContent, Content: part.Text})
			}
		}
	}
	return content, nil
}

var _ agentrt.Provider = (*GoogleProvider)(nil)
