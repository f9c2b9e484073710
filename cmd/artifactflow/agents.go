package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/artifactflow/server/internal/agentrt"
	"github.com/artifactflow/server/internal/artifacts"
	"github.com/artifactflow/server/internal/orchestrator"
	"github.com/artifactflow/server/internal/providers"
	"github.com/artifactflow/server/internal/tools/artifacttools"
	"github.com/artifactflow/server/internal/toolkit"
)

// Agent names. "lead" is the distinguished coordinator spec.md §4.8
// requires; researcher/reviewer are the worker roster this deployment
// ships, each bound to a different provider so all three adapters
// SPEC_FULL.md §11 wires in are actually exercised.
const (
	agentLead       = "lead"
	agentResearcher = "researcher"
	agentReviewer   = "reviewer"
)

// buildGraph wires the Tool Registry, Checker, agent roster, and LLM
// providers into the fixed-shape Graph spec.md §4.8 describes. Provider
// construction is best-effort: a missing API key yields a provider that
// fails every call with an auth-classified error rather than preventing
// the server from starting, so `doctor` (not a crash at boot) is how an
// operator discovers a missing credential.
func buildGraph(logger *slog.Logger, artifactStore artifacts.Store) (*orchestrator.Graph, error) {
	registry := toolkit.NewRegistry()
	artifactToolNames, err := artifacttools.RegisterAll(registry, artifactStore)
	if err != nil {
		return nil, fmt.Errorf("register artifact tools: %w", err)
	}
	if err := registry.Register(toolkit.NewCallSubagentTool([]string{agentResearcher, agentReviewer})); err != nil {
		return nil, fmt.Errorf("register call_subagent tool: %w", err)
	}

	leadToolNames := append(append([]string(nil), artifactToolNames...), toolkit.CallSubagentName)
	workerToolNames := artifactToolNames

	checker := toolkit.NewChecker(registry, 5*time.Minute)
	checker.SetAgentDefaults(agentLead, toolkit.PermissionPublic, toolkit.PermissionNotify)
	checker.SetAgentDefaults(agentResearcher, toolkit.PermissionPublic, toolkit.PermissionNotify)
	checker.SetAgentDefaults(agentReviewer, toolkit.PermissionPublic, toolkit.PermissionNotify)

	anthropicProvider, err := buildAnthropicProvider()
	if err != nil {
		return nil, err
	}
	openaiProvider, err := buildOpenAIProvider()
	if err != nil {
		return nil, err
	}
	googleProvider, err := buildGoogleProvider()
	if err != nil {
		return nil, err
	}

	leadAgent := &agentrt.Agent{
		Name:          agentLead,
		Description:   "Coordinator: plans work, delegates to subagents, and produces the final response",
		ModelID:       "claude-sonnet-4-20250514",
		Temperature:   0.3,
		MaxToolRounds: 8,
		Toolkit:       registry.Toolkit(leadToolNames...),
		IsLead:        true,
		SubagentNames: []string{agentResearcher, agentReviewer},

		BuildSystemPrompt:   buildLeadSystemPrompt,
		FormatFinalResponse: formatFinalResponse,
	}

	researcherAgent := &agentrt.Agent{
		Name:          agentResearcher,
		Description:   "Researches and drafts artifact content from the lead's instruction",
		ModelID:       "gpt-4o",
		Temperature:   0.5,
		MaxToolRounds: 5,
		Toolkit:       registry.Toolkit(workerToolNames...),

		BuildSystemPrompt:   buildSubagentSystemPrompt(agentResearcher),
		FormatFinalResponse: formatFinalResponse,
	}

	reviewerAgent := &agentrt.Agent{
		Name:          agentReviewer,
		Description:   "Reviews and revises artifact content for correctness and clarity",
		ModelID:       "gemini-2.0-flash",
		Temperature:   0.2,
		MaxToolRounds: 5,
		Toolkit:       registry.Toolkit(workerToolNames...),

		BuildSystemPrompt:   buildSubagentSystemPrompt(agentReviewer),
		FormatFinalResponse: formatFinalResponse,
	}

	retry := agentrt.RetryConfig{MaxRetries: 3, BaseDelay: time.Second}

	graph := &orchestrator.Graph{
		Lead: &orchestrator.Node{Agent: leadAgent, Provider: anthropicProvider, Retry: retry},
		Subagents: map[string]*orchestrator.Node{
			agentResearcher: {Agent: researcherAgent, Provider: openaiProvider, Retry: retry},
			agentReviewer:   {Agent: reviewerAgent, Provider: googleProvider, Retry: retry},
		},
		Checker:  checker,
		MaxSteps: 100,
	}

	return graph, nil
}

func buildLeadSystemPrompt(ctx agentrt.SystemPromptContext) string {
	return fmt.Sprintf(
		"You are the lead coordinator in ArtifactFlow. Task: %s\n"+
			"Available tools: %v\n"+
			"Available subagents: %v\n"+
			"Delegate research and review work to subagents via call_subagent, "+
			"use the artifact tools to create and revise durable work products, "+
			"and respond with your final answer once the task is complete.",
		ctx.Task, ctx.ToolNames, ctx.SubagentNames)
}

func buildSubagentSystemPrompt(name string) func(agentrt.SystemPromptContext) string {
	return func(ctx agentrt.SystemPromptContext) string {
		return fmt.Sprintf(
			"You are the %s subagent in ArtifactFlow. Task: %s\n"+
				"Available tools: %v\n"+
				"Use the artifact tools to read or update the relevant artifact, then "+
				"respond with a concise final observation for the lead.",
			name, ctx.Task, ctx.ToolNames)
	}
}

func formatFinalResponse(content string) string { return content }

func buildAnthropicProvider() (agentrt.Provider, error) {
	key := os.Getenv("ANTHROPIC_API_KEY")
	if key == "" {
		return unconfiguredProvider{name: "anthropic", envVar: "ANTHROPIC_API_KEY"}, nil
	}
	return providers.NewAnthropicProvider(key, "")
}

func buildOpenAIProvider() (agentrt.Provider, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return unconfiguredProvider{name: "openai", envVar: "OPENAI_API_KEY"}, nil
	}
	return providers.NewOpenAIProvider(key)
}

func buildGoogleProvider() (agentrt.Provider, error) {
	key := os.Getenv("GOOGLE_API_KEY")
	if key == "" {
		return unconfiguredProvider{name: "google", envVar: "GOOGLE_API_KEY"}, nil
	}
	return providers.NewGoogleProvider(context.Background(), key, "")
}

// unconfiguredProvider stands in for a provider whose API key wasn't
// supplied at startup. It fails fast and auth-classified so agentrt's
// retry loop (spec.md §4.7 step 2: "auth/key errors -> fail fast, no
// retry") doesn't waste retries on something `doctor` should have caught.
type unconfiguredProvider struct {
	name   string
	envVar string
}

func (p unconfiguredProvider) Stream(ctx context.Context, req agentrt.CompletionRequest, onChunk func(agentrt.Chunk)) (string, error) {
	return "", &unconfiguredProviderError{provider: p.name, envVar: p.envVar}
}

// unconfiguredProviderError classifies as an auth error so agentrt's retry
// loop fails fast (spec.md §4.7 step 2) instead of retrying a credential
// that will never appear mid-run.
type unconfiguredProviderError struct {
	provider string
	envVar   string
}

func (e *unconfiguredProviderError) Error() string {
	return fmt.Sprintf("%s: %s is not set", e.provider, e.envVar)
}

func (e *unconfiguredProviderError) Kind() agentrt.ProviderErrorKind {
	return agentrt.ErrKindAuth
}

var _ agentrt.ClassifiableError = (*unconfiguredProviderError)(nil)
