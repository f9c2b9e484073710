package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/artifactflow/server/pkg/models"
)

// MemoryStore is an in-memory Store, grounded on
// internal/sessions/branch_memory.go's adjacency-list + mutex idiom.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]*models.Conversation
	messages      map[string]*models.Message
	children      map[string][]string // parent message id -> child ids, ordered
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string]*models.Message),
		children:      make(map[string][]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, id, ownerUserID, title string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.conversations[id]; exists {
		return nil, fmt.Errorf("%w: conversation %q", models.ErrDuplicate, id)
	}
	now := time.Now()
	c := &models.Conversation{ID: id, OwnerUserID: ownerUserID, Title: title, CreatedAt: now, UpdatedAt: now}
	s.conversations[id] = c
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) EnsureExists(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conversations[id]; ok {
		cp := *c
		return &cp, nil
	}
	now := time.Now()
	c := &models.Conversation{ID: id, CreatedAt: now, UpdatedAt: now}
	s.conversations[id] = c
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%w: conversation %q", models.ErrNotFound, id)
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) List(ctx context.Context, ownerUserID string, limit, offset int) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Conversation
	for _, c := range s.conversations {
		if ownerUserID != "" && c.OwnerUserID != ownerUserID {
			continue
		}
		out = append(out, *c)
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

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
	for mid, m := range s.messages {
		if m.ConversationID == id {
			delete(s.messages, mid)
			delete(s.children, mid)
		}
	}
	return nil
}

func (s *MemoryStore) TryBeginRun(ctx context.Context, conversationID, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return fmt.Errorf("%w: conversation %q", models.ErrNotFound, conversationID)
	}
	if c.ActiveRunID != "" {
		return fmt.Errorf("%w: conversation %q already has an active run %q", models.ErrDuplicate, conversationID, c.ActiveRunID)
	}
	c.ActiveRunID = runID
	return nil
}

func (s *MemoryStore) EndRun(ctx context.Context, conversationID, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return fmt.Errorf("%w: conversation %q", models.ErrNotFound, conversationID)
	}
	if c.ActiveRunID == runID {
		c.ActiveRunID = ""
	}
	return nil
}

func (s *MemoryStore) AddMessage(ctx context.Context, convID, msgID, content, runID, parentID string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[convID]
	if !ok {
		return nil, fmt.Errorf("%w: conversation %q", models.ErrNotFound, convID)
	}
	if _, exists := s.messages[msgID]; exists {
		return nil, fmt.Errorf("%w: message %q", models.ErrDuplicate, msgID)
	}
	if parentID == "" {
		parentID = c.ActiveBranchID
	}
	if parentID != "" {
		if p, ok := s.messages[parentID]; !ok || p.ConversationID != convID {
			return nil, fmt.Errorf("%w: parent message %q", models.ErrNotFound, parentID)
		}
	}

	now := time.Now()
	m := &models.Message{ID: msgID, ConversationID: convID, ParentID: parentID, UserContent: content, RunID: runID, CreatedAt: now}
	s.messages[msgID] = m
	if parentID != "" {
		s.children[parentID] = append(s.children[parentID], msgID)
	}
	c.ActiveBranchID = msgID
	c.UpdatedAt = now

	mp := *m
	return &mp, nil
}

func (s *MemoryStore) UpdateResponse(ctx context.Context, msgID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[msgID]
	if !ok {
		return fmt.Errorf("%w: message %q", models.ErrNotFound, msgID)
	}
	m.AgentFinalResponse = text
	return nil
}

func (s *MemoryStore) GetMessage(ctx context.Context, msgID string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[msgID]
	if !ok {
		return nil, fmt.Errorf("%w: message %q", models.ErrNotFound, msgID)
	}
	mp := *m
	return &mp, nil
}

func (s *MemoryStore) Path(ctx context.Context, convID, toMsgID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := toMsgID
	if target == "" {
		c, ok := s.conversations[convID]
		if !ok {
			return nil, fmt.Errorf("%w: conversation %q", models.ErrNotFound, convID)
		}
		target = c.ActiveBranchID
	}
	if target == "" {
		return nil, nil
	}

	var chain []models.Message
	cur := target
	for cur != "" {
		m, ok := s.messages[cur]
		if !ok {
			return nil, fmt.Errorf("%w: message %q", models.ErrNotFound, cur)
		}
		chain = append(chain, *m)
		cur = m.ParentID
	}
	// reverse to oldest-first
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func (s *MemoryStore) Children(ctx context.Context, msgID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, cid := range s.children[msgID] {
		out = append(out, *s.messages[cid])
	}
	return out, nil
}

func (s *MemoryStore) FormatHistory(ctx context.Context, convID, toMsgID string) ([]models.HistoryTurn, error) {
	path, err := s.Path(ctx, convID, toMsgID)
	if err != nil {
		return nil, err
	}
	turns := make([]models.HistoryTurn, 0, len(path)*2)
	for _, m := range path {
		turns = append(turns, models.HistoryTurn{Role: "user", Content: m.UserContent})
		if m.AgentFinalResponse != "" {
			turns = append(turns, models.HistoryTurn{Role: "assistant", Content: m.AgentFinalResponse})
		}
	}
	return turns, nil
}
