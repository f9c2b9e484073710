package models

import "time"

// ArtifactSession is the per-conversation container for Artifacts; its id
// always equals the owning conversation's id.
type ArtifactSession struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Artifact is a named, versioned content object scoped to one session.
// LockVersion is the optimistic-concurrency counter; CurrentVersion tracks
// the append-only ArtifactVersion log.
type Artifact struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	ContentType    string    `json:"content_type"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	CurrentVersion int       `json:"current_version"`
	LockVersion    int       `json:"lock_version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ArtifactSummary is the list-view projection: everything but Content.
type ArtifactSummary struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	ContentType    string    `json:"content_type"`
	Title          string    `json:"title"`
	Preview        string    `json:"preview,omitempty"`
	CurrentVersion int       `json:"current_version"`
	LockVersion    int       `json:"lock_version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UpdateType distinguishes how an ArtifactVersion came to exist.
type UpdateType string

const (
	UpdateTypeCreate  UpdateType = "create"
	UpdateTypeUpdate  UpdateType = "update"
	UpdateTypeRewrite UpdateType = "rewrite"
)

// ArtifactChange records one old_str→new_str substitution within an update.
type ArtifactChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// ArtifactVersion is one immutable snapshot in an artifact's append-only log.
type ArtifactVersion struct {
	ArtifactID      string           `json:"artifact_id"`
	SessionID       string           `json:"session_id"`
	Version         int              `json:"version"`
	ContentSnapshot string           `json:"content_snapshot"`
	UpdateType      UpdateType       `json:"update_type"`
	Changes         []ArtifactChange `json:"changes,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// ArtifactDiff is the result of comparing two versions of the same artifact.
type ArtifactDiff struct {
	ArtifactID string `json:"artifact_id"`
	FromVer    int    `json:"from_version"`
	ToVer      int    `json:"to_version"`
	FromContent string `json:"from_content"`
	ToContent   string `json:"to_content"`
}
