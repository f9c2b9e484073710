package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/artifactflow/server/pkg/models"
)

// MemoryStore is an in-memory Store implementation, grounded on the
// mutex-guarded-map + *slog.Logger shape of internal/artifacts/repository.go.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]bool
	items    map[string]*models.Artifact               // key: sessionID+"/"+id
	versions map[string][]models.ArtifactVersion        // same key
	logger   *slog.Logger
}

func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		sessions: make(map[string]bool),
		items:    make(map[string]*models.Artifact),
		versions: make(map[string][]models.ArtifactVersion),
		logger:   logger.With("component", "artifacts.memory_store"),
	}
}

func key(sessionID, id string) string { return sessionID + "/" + id }

func (s *MemoryStore) EnsureSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = true
	return nil
}

func (s *MemoryStore) Create(ctx context.Context, sessionID, id, contentType, title, content string) (*models.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sessions[sessionID] {
		return nil, fmt.Errorf("%w: session %q", models.ErrNotFound, sessionID)
	}
	k := key(sessionID, id)
	if _, exists := s.items[k]; exists {
		return nil, fmt.Errorf("%w: artifact (%s,%s)", models.ErrDuplicate, sessionID, id)
	}

	now := time.Now()
	art := &models.Artifact{
		ID: id, SessionID: sessionID, ContentType: contentType, Title: title, Content: content,
		CurrentVersion: 1, LockVersion: 1, CreatedAt: now, UpdatedAt: now,
	}
	s.items[k] = art
	s.versions[k] = []models.ArtifactVersion{{
		ArtifactID: id, SessionID: sessionID, Version: 1,
		ContentSnapshot: content, UpdateType: models.UpdateTypeCreate, CreatedAt: now,
	}}
	return cloneArtifact(art), nil
}

func (s *MemoryStore) Update(ctx context.Context, sessionID, id, oldStr, newStr string, expectedLock int) (*models.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(sessionID, id)
	art, ok := s.items[k]
	if !ok {
		return nil, fmt.Errorf("%w: artifact (%s,%s)", models.ErrNotFound, sessionID, id)
	}
	if art.LockVersion != expectedLock {
		return nil, fmt.Errorf("%w: expected lock %d, current %d", models.ErrVersionConflict, expectedLock, art.LockVersion)
	}
	count := strings.Count(art.Content, oldStr)
	if count != 1 {
		return nil, fmt.Errorf("%w: %q occurs %d times", models.ErrAmbiguousMatch, oldStr, count)
	}

	newContent := strings.Replace(art.Content, oldStr, newStr, 1)
	art.Content = newContent
	art.CurrentVersion++
	art.LockVersion++
	art.UpdatedAt = time.Now()

	s.versions[k] = append(s.versions[k], models.ArtifactVersion{
		ArtifactID: id, SessionID: sessionID, Version: art.CurrentVersion,
		ContentSnapshot: newContent, UpdateType: models.UpdateTypeUpdate,
		Changes:   []models.ArtifactChange{{Old: oldStr, New: newStr}},
		CreatedAt: art.UpdatedAt,
	})
	return cloneArtifact(art), nil
}

func (s *MemoryStore) Rewrite(ctx context.Context, sessionID, id, newContent string, expectedLock int) (*models.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(sessionID, id)
	art, ok := s.items[k]
	if !ok {
		return nil, fmt.Errorf("%w: artifact (%s,%s)", models.ErrNotFound, sessionID, id)
	}
	if art.LockVersion != expectedLock {
		return nil, fmt.Errorf("%w: expected lock %d, current %d", models.ErrVersionConflict, expectedLock, art.LockVersion)
	}

	art.Content = newContent
	art.CurrentVersion++
	art.LockVersion++
	art.UpdatedAt = time.Now()

	s.versions[k] = append(s.versions[k], models.ArtifactVersion{
		ArtifactID: id, SessionID: sessionID, Version: art.CurrentVersion,
		ContentSnapshot: newContent, UpdateType: models.UpdateTypeRewrite, CreatedAt: art.UpdatedAt,
	})
	return cloneArtifact(art), nil
}

func (s *MemoryStore) Read(ctx context.Context, sessionID, id string, version *int) (*models.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(sessionID, id)
	art, ok := s.items[k]
	if !ok {
		return nil, fmt.Errorf("%w: artifact (%s,%s)", models.ErrNotFound, sessionID, id)
	}
	if version == nil {
		return cloneArtifact(art), nil
	}
	for _, v := range s.versions[k] {
		if v.Version == *version {
			out := cloneArtifact(art)
			out.Content = v.ContentSnapshot
			out.CurrentVersion = v.Version
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: version %d of artifact (%s,%s)", models.ErrNotFound, *version, sessionID, id)
}

func (s *MemoryStore) List(ctx context.Context, sessionID string, contentType string) ([]models.ArtifactSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.ArtifactSummary
	for _, art := range s.items {
		if art.SessionID != sessionID {
			continue
		}
		if contentType != "" && art.ContentType != contentType {
			continue
		}
		out = append(out, models.ArtifactSummary{
			ID: art.ID, SessionID: art.SessionID, ContentType: art.ContentType, Title: art.Title,
			Preview:        preview(art.Content, 200),
			CurrentVersion: art.CurrentVersion, LockVersion: art.LockVersion,
			CreatedAt: art.CreatedAt, UpdatedAt: art.UpdatedAt,
		})
	}
	return out, nil
}

func (s *MemoryStore) ListVersions(ctx context.Context, sessionID, id string) ([]models.ArtifactVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(sessionID, id)
	if _, ok := s.items[k]; !ok {
		return nil, fmt.Errorf("%w: artifact (%s,%s)", models.ErrNotFound, sessionID, id)
	}
	return append([]models.ArtifactVersion(nil), s.versions[k]...), nil
}

func (s *MemoryStore) GetVersion(ctx context.Context, sessionID, id string, version int) (*models.ArtifactVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(sessionID, id)
	for _, v := range s.versions[k] {
		if v.Version == version {
			vv := v
			return &vv, nil
		}
	}
	return nil, fmt.Errorf("%w: version %d of artifact (%s,%s)", models.ErrNotFound, version, sessionID, id)
}

func (s *MemoryStore) Diff(ctx context.Context, sessionID, id string, from, to int) (*models.ArtifactDiff, error) {
	fromV, err := s.GetVersion(ctx, sessionID, id, from)
	if err != nil {
		return nil, err
	}
	toV, err := s.GetVersion(ctx, sessionID, id, to)
	if err != nil {
		return nil, err
	}
	return &models.ArtifactDiff{
		ArtifactID: id, FromVer: from, ToVer: to,
		FromContent: fromV.ContentSnapshot, ToContent: toV.ContentSnapshot,
	}, nil
}

func (s *MemoryStore) ClearTemporary(ctx context.Context, sessionID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		k := key(sessionID, id)
		delete(s.items, k)
		delete(s.versions, k)
	}
	s.logger.Info("cleared temporary artifacts", "session_id", sessionID, "ids", ids)
	return nil
}

func cloneArtifact(a *models.Artifact) *models.Artifact {
	out := *a
	return &out
}

func preview(content string, n int) string {
	if len(content) <= n {
		return content
	}
	return content[:n]
}
