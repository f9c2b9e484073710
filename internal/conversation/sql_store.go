package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/artifactflow/server/pkg/models"
	_ "github.com/lib/pq"
)

// SQLStore is a Postgres/CockroachDB-backed Store, grounded on the
// teacher's prepared-$N-statement idiom (internal/artifacts/sql_repository.go)
// applied to the branching-tree shape of internal/sessions/branch_store.go,
// using a recursive CTE for the ancestor-path walk.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

const schemaDDL = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	owner_user_id TEXT,
	title TEXT,
	active_branch_message_id TEXT,
	active_run_id TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	parent_id TEXT REFERENCES messages(id),
	user_content TEXT NOT NULL,
	run_id TEXT NOT NULL,
	agent_final_response TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS messages_conversation_id_idx ON messages(conversation_id);
`

func (s *SQLStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaDDL)
	return err
}

func (s *SQLStore) Create(ctx context.Context, id, ownerUserID, title string) (*models.Conversation, error) {
	var c models.Conversation
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO conversations (id, owner_user_id, title) VALUES ($1, $2, $3)
		 RETURNING id, owner_user_id, title, created_at, updated_at`,
		id, ownerUserID, title).Scan(&c.ID, &c.OwnerUserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDuplicate, err)
	}
	return &c, nil
}

func (s *SQLStore) EnsureExists(ctx context.Context, id string) (*models.Conversation, error) {
	_, err := s.db.ExecContext(ctx, `INSERT INTO conversations (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *SQLStore) Get(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	var owner, title, activeBranch, activeRun sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_user_id, title, active_branch_message_id, active_run_id, created_at, updated_at
		 FROM conversations WHERE id = $1`, id).
		Scan(&c.ID, &owner, &title, &activeBranch, &activeRun, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: conversation %q", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	c.OwnerUserID, c.Title, c.ActiveBranchID, c.ActiveRunID = owner.String, title.String, activeBranch.String, activeRun.String
	return &c, nil
}

func (s *SQLStore) List(ctx context.Context, ownerUserID string, limit, offset int) ([]models.Conversation, error) {
	query := `SELECT id, owner_user_id, title, active_branch_message_id, created_at, updated_at FROM conversations`
	var args []any
	if ownerUserID != "" {
		query += ` WHERE owner_user_id = $1`
		args = append(args, ownerUserID)
	}
	query += ` ORDER BY updated_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	if offset > 0 {
		query += fmt.Sprintf(` OFFSET %d`, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		var c models.Conversation
		var owner, title, activeBranch sql.NullString
		if err := rows.Scan(&c.ID, &owner, &title, &activeBranch, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.OwnerUserID, c.Title, c.ActiveBranchID = owner.String, title.String, activeBranch.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	return err
}

func (s *SQLStore) TryBeginRun(ctx context.Context, conversationID, runID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET active_run_id = $1 WHERE id = $2 AND (active_run_id IS NULL OR active_run_id = '')`,
		runID, conversationID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: conversation %q already has an active run", models.ErrDuplicate, conversationID)
	}
	return nil
}

func (s *SQLStore) EndRun(ctx context.Context, conversationID, runID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET active_run_id = '' WHERE id = $1 AND active_run_id = $2`, conversationID, runID)
	return err
}

func (s *SQLStore) AddMessage(ctx context.Context, convID, msgID, content, runID, parentID string) (*models.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	if parentID == "" {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(active_branch_message_id, '') FROM conversations WHERE id = $1`, convID).
			Scan(&parentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("%w: conversation %q", models.ErrNotFound, convID)
			}
			return nil, err
		}
	}

	var parentArg any
	if parentID != "" {
		parentArg = parentID
	}

	var m models.Message
	m.ID, m.ConversationID, m.UserContent, m.RunID, m.ParentID = msgID, convID, content, runID, parentID
	err = tx.QueryRowContext(ctx,
		`INSERT INTO messages (id, conversation_id, parent_id, user_content, run_id)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		msgID, convID, parentArg, content, runID).Scan(&m.CreatedAt)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET active_branch_message_id = $1, updated_at = now() WHERE id = $2`, msgID, convID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SQLStore) UpdateResponse(ctx context.Context, msgID, text string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET agent_final_response = $1 WHERE id = $2`, text, msgID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: message %q", models.ErrNotFound, msgID)
	}
	return nil
}

func (s *SQLStore) GetMessage(ctx context.Context, msgID string) (*models.Message, error) {
	var m models.Message
	var parent, resp sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, conversation_id, parent_id, user_content, run_id, agent_final_response, created_at
		 FROM messages WHERE id = $1`, msgID).
		Scan(&m.ID, &m.ConversationID, &parent, &m.UserContent, &m.RunID, &resp, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: message %q", models.ErrNotFound, msgID)
	}
	m.ParentID, m.AgentFinalResponse = parent.String, resp.String
	return &m, err
}

// Path walks parent_id links via a recursive CTE, matching
// internal/sessions/branch_store.go's GetFullBranchPath idiom.
func (s *SQLStore) Path(ctx context.Context, convID, toMsgID string) ([]models.Message, error) {
	target := toMsgID
	if target == "" {
		var nullable sql.NullString
		if err := s.db.QueryRowContext(ctx,
			`SELECT active_branch_message_id FROM conversations WHERE id = $1`, convID).Scan(&nullable); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("%w: conversation %q", models.ErrNotFound, convID)
			}
			return nil, err
		}
		target = nullable.String
	}
	if target == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE ancestors AS (
			SELECT id, conversation_id, parent_id, user_content, run_id, agent_final_response, created_at, 0 AS depth
			FROM messages WHERE id = $1
			UNION ALL
			SELECT m.id, m.conversation_id, m.parent_id, m.user_content, m.run_id, m.agent_final_response, m.created_at, a.depth + 1
			FROM messages m JOIN ancestors a ON m.id = a.parent_id
		)
		SELECT id, conversation_id, parent_id, user_content, run_id, agent_final_response, created_at
		FROM ancestors ORDER BY depth DESC`, target)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		var parent, resp sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &parent, &m.UserContent, &m.RunID, &resp, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.ParentID, m.AgentFinalResponse = parent.String, resp.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLStore) Children(ctx context.Context, msgID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, parent_id, user_content, run_id, agent_final_response, created_at
		 FROM messages WHERE parent_id = $1 ORDER BY created_at ASC`, msgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		var parent, resp sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &parent, &m.UserContent, &m.RunID, &resp, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.ParentID, m.AgentFinalResponse = parent.String, resp.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLStore) FormatHistory(ctx context.Context, convID, toMsgID string) ([]models.HistoryTurn, error) {
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
