package artifacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artifactflow/server/pkg/models"
	_ "github.com/lib/pq"
)

// SQLStore is a Postgres/CockroachDB-backed Store using database/sql with
// prepared $N-placeholder statements, grounded directly on
// internal/artifacts/sql_repository.go's CAS idiom:
//
//	UPDATE artifacts SET content = $1, current_version = current_version + 1,
//	  lock_version = lock_version + 1, updated_at = now()
//	WHERE session_id = $2 AND id = $3 AND lock_version = $4
//	RETURNING current_version, lock_version, updated_at
//
// Before this statement runs, Update and Rewrite read the row with
// SELECT ... FOR UPDATE in the same transaction: no row yields NotFound and
// a lock_version mismatch yields VersionConflict, matching the spec's
// NotFound-vs-VersionConflict distinction (spec.md §4.3).
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS artifact_sessions (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS artifacts (
	session_id TEXT NOT NULL REFERENCES artifact_sessions(id) ON DELETE CASCADE,
	id TEXT NOT NULL,
	content_type TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	current_version INTEGER NOT NULL DEFAULT 1,
	lock_version INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (session_id, id)
);

CREATE TABLE IF NOT EXISTS artifact_versions (
	artifact_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	version INTEGER NOT NULL,
	content_snapshot TEXT NOT NULL,
	update_type TEXT NOT NULL,
	changes_json TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (session_id, artifact_id, version),
	FOREIGN KEY (session_id, artifact_id) REFERENCES artifacts(session_id, id) ON DELETE CASCADE
);
`

// Migrate creates the artifact schema if it does not already exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaDDL)
	return err
}

func (s *SQLStore) EnsureSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifact_sessions (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, sessionID)
	return err
}

func (s *SQLStore) Create(ctx context.Context, sessionID, id, contentType, title, content string) (*models.Artifact, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM artifact_sessions WHERE id = $1)`, sessionID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: session %q", models.ErrNotFound, sessionID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	var dup bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM artifacts WHERE session_id = $1 AND id = $2)`, sessionID, id).Scan(&dup); err != nil {
		return nil, err
	}
	if dup {
		return nil, fmt.Errorf("%w: artifact (%s,%s)", models.ErrDuplicate, sessionID, id)
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO artifacts (session_id, id, content_type, title, content, current_version, lock_version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, 1, 1, $6, $6)`,
		sessionID, id, contentType, title, content, now); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO artifact_versions (artifact_id, session_id, version, content_snapshot, update_type, created_at)
		 VALUES ($1, $2, 1, $3, $4, $5)`,
		id, sessionID, content, models.UpdateTypeCreate, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &models.Artifact{
		ID: id, SessionID: sessionID, ContentType: contentType, Title: title, Content: content,
		CurrentVersion: 1, LockVersion: 1, CreatedAt: now, UpdatedAt: now,
	}, nil
}

func (s *SQLStore) Update(ctx context.Context, sessionID, id, oldStr, newStr string, expectedLock int) (*models.Artifact, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	var content string
	var lockVersion int
	err = tx.QueryRowContext(ctx,
		`SELECT content, lock_version FROM artifacts WHERE session_id = $1 AND id = $2 FOR UPDATE`,
		sessionID, id).Scan(&content, &lockVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: artifact (%s,%s)", models.ErrNotFound, sessionID, id)
	}
	if err != nil {
		return nil, err
	}
	if lockVersion != expectedLock {
		return nil, fmt.Errorf("%w: expected lock %d, current %d", models.ErrVersionConflict, expectedLock, lockVersion)
	}

	count := strings.Count(content, oldStr)
	if count != 1 {
		return nil, fmt.Errorf("%w: %q occurs %d times", models.ErrAmbiguousMatch, oldStr, count)
	}
	newContent := strings.Replace(content, oldStr, newStr, 1)

	var newVersion, newLock int
	var updatedAt time.Time
	if err := tx.QueryRowContext(ctx,
		`UPDATE artifacts SET content = $1, current_version = current_version + 1,
		   lock_version = lock_version + 1, updated_at = now()
		 WHERE session_id = $2 AND id = $3 AND lock_version = $4
		 RETURNING current_version, lock_version, updated_at`,
		newContent, sessionID, id, expectedLock).Scan(&newVersion, &newLock, &updatedAt); err != nil {
		return nil, err
	}

	changesJSON := fmt.Sprintf(`[{"old":%q,"new":%q}]`, oldStr, newStr)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO artifact_versions (artifact_id, session_id, version, content_snapshot, update_type, changes_json, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, sessionID, newVersion, newContent, models.UpdateTypeUpdate, changesJSON, updatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &models.Artifact{
		ID: id, SessionID: sessionID, Content: newContent,
		CurrentVersion: newVersion, LockVersion: newLock, UpdatedAt: updatedAt,
	}, nil
}

func (s *SQLStore) Rewrite(ctx context.Context, sessionID, id, newContent string, expectedLock int) (*models.Artifact, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	var currentLock int
	err = tx.QueryRowContext(ctx,
		`SELECT lock_version FROM artifacts WHERE session_id = $1 AND id = $2 FOR UPDATE`,
		sessionID, id).Scan(&currentLock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: artifact (%s,%s)", models.ErrNotFound, sessionID, id)
	}
	if err != nil {
		return nil, err
	}
	if currentLock != expectedLock {
		return nil, fmt.Errorf("%w: expected lock %d, current %d", models.ErrVersionConflict, expectedLock, currentLock)
	}

	var newVersion, newLock int
	var updatedAt time.Time
	if err := tx.QueryRowContext(ctx,
		`UPDATE artifacts SET content = $1, current_version = current_version + 1,
		   lock_version = lock_version + 1, updated_at = now()
		 WHERE session_id = $2 AND id = $3 AND lock_version = $4
		 RETURNING current_version, lock_version, updated_at`,
		newContent, sessionID, id, expectedLock).Scan(&newVersion, &newLock, &updatedAt); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO artifact_versions (artifact_id, session_id, version, content_snapshot, update_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, sessionID, newVersion, newContent, models.UpdateTypeRewrite, updatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &models.Artifact{
		ID: id, SessionID: sessionID, Content: newContent,
		CurrentVersion: newVersion, LockVersion: newLock, UpdatedAt: updatedAt,
	}, nil
}

func (s *SQLStore) Read(ctx context.Context, sessionID, id string, version *int) (*models.Artifact, error) {
	if version == nil {
		a := &models.Artifact{ID: id, SessionID: sessionID}
		err := s.db.QueryRowContext(ctx,
			`SELECT content_type, title, content, current_version, lock_version, created_at, updated_at
			 FROM artifacts WHERE session_id = $1 AND id = $2`, sessionID, id).
			Scan(&a.ContentType, &a.Title, &a.Content, &a.CurrentVersion, &a.LockVersion, &a.CreatedAt, &a.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: artifact (%s,%s)", models.ErrNotFound, sessionID, id)
		}
		return a, err
	}

	a := &models.Artifact{ID: id, SessionID: sessionID, CurrentVersion: *version}
	err := s.db.QueryRowContext(ctx,
		`SELECT content_snapshot, created_at FROM artifact_versions
		 WHERE session_id = $1 AND artifact_id = $2 AND version = $3`, sessionID, id, *version).
		Scan(&a.Content, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: version %d of artifact (%s,%s)", models.ErrNotFound, *version, sessionID, id)
	}
	return a, err
}

func (s *SQLStore) List(ctx context.Context, sessionID string, contentType string) ([]models.ArtifactSummary, error) {
	query := `SELECT id, content_type, title, left(content, 200), current_version, lock_version, created_at, updated_at
	          FROM artifacts WHERE session_id = $1`
	args := []any{sessionID}
	if contentType != "" {
		query += ` AND content_type = $2`
		args = append(args, contentType)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ArtifactSummary
	for rows.Next() {
		var sm models.ArtifactSummary
		sm.SessionID = sessionID
		if err := rows.Scan(&sm.ID, &sm.ContentType, &sm.Title, &sm.Preview, &sm.CurrentVersion, &sm.LockVersion, &sm.CreatedAt, &sm.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListVersions(ctx context.Context, sessionID, id string) ([]models.ArtifactVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, content_snapshot, update_type, created_at FROM artifact_versions
		 WHERE session_id = $1 AND artifact_id = $2 ORDER BY version ASC`, sessionID, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ArtifactVersion
	for rows.Next() {
		v := models.ArtifactVersion{ArtifactID: id, SessionID: sessionID}
		var updateType string
		if err := rows.Scan(&v.Version, &v.ContentSnapshot, &updateType, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.UpdateType = models.UpdateType(updateType)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetVersion(ctx context.Context, sessionID, id string, version int) (*models.ArtifactVersion, error) {
	v := &models.ArtifactVersion{ArtifactID: id, SessionID: sessionID, Version: version}
	var updateType string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_snapshot, update_type, created_at FROM artifact_versions
		 WHERE session_id = $1 AND artifact_id = $2 AND version = $3`, sessionID, id, version).
		Scan(&v.ContentSnapshot, &updateType, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: version %d of artifact (%s,%s)", models.ErrNotFound, version, sessionID, id)
	}
	v.UpdateType = models.UpdateType(updateType)
	return v, err
}

func (s *SQLStore) Diff(ctx context.Context, sessionID, id string, from, to int) (*models.ArtifactDiff, error) {
	fromV, err := s.GetVersion(ctx, sessionID, id, from)
	if err != nil {
		return nil, err
	}
	toV, err := s.GetVersion(ctx, sessionID, id, to)
	if err != nil {
		return nil, err
	}
	return &models.ArtifactDiff{ArtifactID: id, FromVer: from, ToVer: to, FromContent: fromV.ContentSnapshot, ToContent: toV.ContentSnapshot}, nil
}

func (s *SQLStore) ClearTemporary(ctx context.Context, sessionID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, sessionID)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	query := fmt.Sprintf(`DELETE FROM artifacts WHERE session_id = $1 AND id IN (%s)`, strings.Join(placeholders, ","))
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}
