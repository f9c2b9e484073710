package models

import "context"

type sessionIDContextKey struct{}

// WithSessionID attaches the active run's artifact-session id (which
// always equals the owning conversation id, per ArtifactSession's
// ownership rule in spec.md §3) to ctx, so tools invoked deep inside the
// graph/agent runtime can address the right session without RunState
// itself crossing the toolkit.Tool boundary.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDContextKey{}, sessionID)
}

// SessionIDFromContext retrieves the artifact-session id set by
// WithSessionID, if any.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDContextKey{}).(string)
	return id, ok
}
