// Package providers implements the concrete LLM adapters that plug into
// agentrt.Provider (spec.md §1 leaves concrete adapters out of scope but
// requires a contract for the Agent Runtime to drive; SPEC_FULL.md §11
// wires three real SDKs behind it).
//
// Grounded on internal/agent/providers/{openai,anthropic,google}.go for the
// client construction and streaming idiom, narrowed to ArtifactFlow's
// Provider.Stream shape: one accumulated content string plus typed chunk
// callbacks, since spec.md §4.2 has the Agent Runtime parse tool calls out
// of free-form text rather than use a provider's native tool-calling API
// (see DESIGN.md).
package providers

import (
	"errors"
	"strings"

	"github.com/artifactflow/server/internal/agentrt"
)

// classifiedError adapts a provider-specific failure to
// agentrt.ClassifiableError, letting the runtime's retry loop classify
// rate-limit/timeout/auth errors without string-matching provider SDK
// messages at the call site (spec.md §4.7 step 2).
type classifiedError struct {
	provider string
	kind     agentrt.ProviderErrorKind
	cause    error
}

func (e *classifiedError) Error() string {
	return e.provider + ": " + e.cause.Error()
}

func (e *classifiedError) Unwrap() error { return e.cause }

func (e *classifiedError) Kind() agentrt.ProviderErrorKind { return e.kind }

var _ agentrt.ClassifiableError = (*classifiedError)(nil)

// classify inspects a raw SDK error and tags it with a retry kind,
// grounded on internal/agent/providers/errors.go's FailoverReason
// classification, narrowed to spec.md §4.7's four buckets.
func classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	var ce *classifiedError
	if errors.As(err, &ce) {
		return err
	}

	s := strings.ToLower(err.Error())
	kind := agentrt.ErrKindOther
	switch {
	case strings.Contains(s, "rate limit"), strings.Contains(s, "rate_limit"),
		strings.Contains(s, "too many requests"), strings.Contains(s, "429"):
		kind = agentrt.ErrKindRateLimit
	case strings.Contains(s, "timeout"), strings.Contains(s, "deadline exceeded"):
		kind = agentrt.ErrKindTimeout
	case strings.Contains(s, "unauthorized"), strings.Contains(s, "invalid api key"),
		strings.Contains(s, "invalid_api_key"), strings.Contains(s, "authentication"),
		strings.Contains(s, "401"), strings.Contains(s, "403"):
		kind = agentrt.ErrKindAuth
	case strings.Contains(s, "500"), strings.Contains(s, "502"),
		strings.Contains(s, "503"), strings.Contains(s, "504"):
		kind = agentrt.ErrKindOther
	}
	return &classifiedError{provider: provider, kind: kind, cause: err}
}
