package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/artifactflow/server/pkg/models"
	_ "github.com/lib/pq"
)

// SQLUserStore is a Postgres/CockroachDB-backed UserStore, grounded on
// internal/conversation/sql_store.go's prepared-$N-statement idiom.
type SQLUserStore struct {
	db *sql.DB
}

func NewSQLUserStore(db *sql.DB) *SQLUserStore { return &SQLUserStore{db: db} }

const userSchemaDDL = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *SQLUserStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, userSchemaDDL)
	return err
}

func (s *SQLUserStore) Create(ctx context.Context, id, username, passwordHash, role string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (id, username, password_hash, role) VALUES ($1, $2, $3, $4)
		 RETURNING id, username, password_hash, role, active, created_at, updated_at`,
		id, username, passwordHash, role).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDuplicate, err)
	}
	return &u, nil
}

func (s *SQLUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.scanOne(ctx, `SELECT id, username, password_hash, role, active, created_at, updated_at
		FROM users WHERE id = $1`, id)
}

func (s *SQLUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.scanOne(ctx, `SELECT id, username, password_hash, role, active, created_at, updated_at
		FROM users WHERE username = $1`, username)
}

func (s *SQLUserStore) scanOne(ctx context.Context, query, arg string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %q", models.ErrNotFound, arg)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLUserStore) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password_hash, role, active, created_at, updated_at
		FROM users ORDER BY created_at ASC LIMIT $1 OFFSET $2`,
		nullIfZero(limit), offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func nullIfZero(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func (s *SQLUserStore) Update(ctx context.Context, id string, patch UserPatch) (*models.User, error) {
	if patch.PasswordHash != nil {
		if _, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`, *patch.PasswordHash, id); err != nil {
			return nil, err
		}
	}
	if patch.Role != nil {
		if _, err := s.db.ExecContext(ctx, `UPDATE users SET role = $1, updated_at = now() WHERE id = $2`, *patch.Role, id); err != nil {
			return nil, err
		}
	}
	if patch.Active != nil {
		if _, err := s.db.ExecContext(ctx, `UPDATE users SET active = $1, updated_at = now() WHERE id = $2`, *patch.Active, id); err != nil {
			return nil, err
		}
	}
	return s.GetByID(ctx, id)
}
