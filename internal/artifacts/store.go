// Package artifacts implements the Artifact Store component (spec.md §4.3):
// versioned content objects under a session, optimistic-locked via a
// monotonically increasing lock_version.
//
// Grounded on original_source/src/repositories/artifact_repo.py for exact
// CAS/versioning semantics and internal/artifacts/{repository,sql_repository}.go
// for the Go repository shape (see DESIGN.md).
package artifacts

import (
	"context"

	"github.com/artifactflow/server/pkg/models"
)

// Store is the Artifact Store's contract. Implementations: MemoryStore
// (tests/simple deployments) and SQLStore (Postgres/CockroachDB via
// database/sql + lib/pq).
type Store interface {
	EnsureSession(ctx context.Context, sessionID string) error

	Create(ctx context.Context, sessionID, id, contentType, title, content string) (*models.Artifact, error)

	// Update replaces the unique occurrence of oldStr with newStr under CAS
	// on expectedLock. Returns models.ErrAmbiguousMatch if oldStr appears
	// zero or more-than-one times, models.ErrVersionConflict if
	// expectedLock doesn't match the current lock_version.
	Update(ctx context.Context, sessionID, id, oldStr, newStr string, expectedLock int) (*models.Artifact, error)

	Rewrite(ctx context.Context, sessionID, id, newContent string, expectedLock int) (*models.Artifact, error)

	Read(ctx context.Context, sessionID, id string, version *int) (*models.Artifact, error)

	List(ctx context.Context, sessionID string, contentType string) ([]models.ArtifactSummary, error)

	ListVersions(ctx context.Context, sessionID, id string) ([]models.ArtifactVersion, error)
	GetVersion(ctx context.Context, sessionID, id string, version int) (*models.ArtifactVersion, error)
	Diff(ctx context.Context, sessionID, id string, from, to int) (*models.ArtifactDiff, error)

	// ClearTemporary bulk-deletes the named scratch artifacts (default:
	// ["task_plan"]) at the start of each new top-level turn.
	ClearTemporary(ctx context.Context, sessionID string, ids []string) error
}

// DefaultTemporaryIDs is the scratch-artifact id list cleared every turn.
var DefaultTemporaryIDs = []string{"task_plan"}
