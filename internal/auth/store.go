package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/artifactflow/server/pkg/models"
)

// UserStore is the user-management contract spec.md §6's auth/users
// endpoints sit on.
type UserStore interface {
	Create(ctx context.Context, id, username, passwordHash, role string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]models.User, error)

	// Update applies the non-nil fields of patch and returns the
	// resulting user.
	Update(ctx context.Context, id string, patch UserPatch) (*models.User, error)
}

// UserPatch carries the optional fields PUT /api/v1/auth/users/{id} may
// change; a nil field leaves the corresponding column untouched.
type UserPatch struct {
	PasswordHash *string
	Role         *string
	Active       *bool
}

// MemoryUserStore is an in-memory UserStore, grounded on the
// mutex-guarded-map idiom shared by conversation.MemoryStore and
// artifacts.MemoryStore.
type MemoryUserStore struct {
	mu         sync.Mutex
	byID       map[string]*models.User
	usernameID map[string]string
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:       make(map[string]*models.User),
		usernameID: make(map[string]string),
	}
}

func (s *MemoryUserStore) Create(ctx context.Context, id, username, passwordHash, role string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(username)
	if _, exists := s.usernameID[key]; exists {
		return nil, fmt.Errorf("%w: username %q", models.ErrDuplicate, username)
	}
	now := time.Now()
	u := &models.User{
		ID: id, Username: username, PasswordHash: passwordHash, Role: role,
		Active: true, CreatedAt: now, UpdatedAt: now,
	}
	s.byID[id] = u
	s.usernameID[key] = id

	up := *u
	return &up, nil
}

func (s *MemoryUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %q", models.ErrNotFound, id)
	}
	up := *u
	return &up, nil
}

func (s *MemoryUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.usernameID[strings.ToLower(username)]
	if !ok {
		return nil, fmt.Errorf("%w: username %q", models.ErrNotFound, username)
	}
	up := *s.byID[id]
	return &up, nil
}

func (s *MemoryUserStore) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, *u)
	}
	if offset < len(out) {
		out = out[offset:]
	} else {
		out = nil
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryUserStore) Update(ctx context.Context, id string, patch UserPatch) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %q", models.ErrNotFound, id)
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.Active != nil {
		u.Active = *patch.Active
	}
	u.UpdatedAt = time.Now()

	up := *u
	return &up, nil
}
