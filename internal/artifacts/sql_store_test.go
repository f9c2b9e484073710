package artifacts

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/artifactflow/server/pkg/models"
)

func setupMockStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *SQLStore) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock, NewSQLStore(db)
}

func TestSQLStoreCreateSuccess(t *testing.T) {
	db, mock, store := setupMockStore(t)
	_ = db

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM artifact_sessions WHERE id = \$1\)`).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM artifacts WHERE session_id = \$1 AND id = \$2\)`).
		WithArgs("conv-1", "doc").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO artifacts`).
		WithArgs("conv-1", "doc", "markdown", "Doc", "hello", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO artifact_versions`).
		WithArgs("doc", "conv-1", "hello", models.UpdateTypeCreate, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	art, err := store.Create(context.Background(), "conv-1", "doc", "markdown", "Doc", "hello")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if art.CurrentVersion != 1 || art.LockVersion != 1 {
		t.Fatalf("expected version/lock 1/1, got %d/%d", art.CurrentVersion, art.LockVersion)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStoreCreateMissingSession(t *testing.T) {
	_, mock, store := setupMockStore(t)

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM artifact_sessions WHERE id = \$1\)`).
		WithArgs("conv-missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := store.Create(context.Background(), "conv-missing", "doc", "markdown", "Doc", "hello")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStoreUpdateVersionConflict(t *testing.T) {
	_, mock, store := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT content, lock_version FROM artifacts WHERE session_id = \$1 AND id = \$2 FOR UPDATE`).
		WithArgs("conv-1", "doc").
		WillReturnRows(sqlmock.NewRows([]string{"content", "lock_version"}).AddRow("hello world", 3))
	mock.ExpectRollback()

	_, err := store.Update(context.Background(), "conv-1", "doc", "hello", "goodbye", 1)
	if !errors.Is(err, models.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStoreUpdateAmbiguousMatch(t *testing.T) {
	_, mock, store := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT content, lock_version FROM artifacts WHERE session_id = \$1 AND id = \$2 FOR UPDATE`).
		WithArgs("conv-1", "doc").
		WillReturnRows(sqlmock.NewRows([]string{"content", "lock_version"}).AddRow("foo bar foo", 1))
	mock.ExpectRollback()

	_, err := store.Update(context.Background(), "conv-1", "doc", "foo", "baz", 1)
	if !errors.Is(err, models.ErrAmbiguousMatch) {
		t.Fatalf("expected ErrAmbiguousMatch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStoreUpdateSuccess(t *testing.T) {
	_, mock, store := setupMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT content, lock_version FROM artifacts WHERE session_id = \$1 AND id = \$2 FOR UPDATE`).
		WithArgs("conv-1", "doc").
		WillReturnRows(sqlmock.NewRows([]string{"content", "lock_version"}).AddRow("hello world", 1))
	mock.ExpectQuery(`UPDATE artifacts SET content = \$1`).
		WithArgs("goodbye world", "conv-1", "doc", 1).
		WillReturnRows(sqlmock.NewRows([]string{"current_version", "lock_version", "updated_at"}).AddRow(2, 2, now))
	mock.ExpectExec(`INSERT INTO artifact_versions`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	art, err := store.Update(context.Background(), "conv-1", "doc", "hello", "goodbye", 1)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if art.CurrentVersion != 2 || art.LockVersion != 2 {
		t.Fatalf("expected version/lock 2/2, got %d/%d", art.CurrentVersion, art.LockVersion)
	}
	if art.Content != "goodbye world" {
		t.Fatalf("expected replaced content, got %q", art.Content)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStoreReadNotFound(t *testing.T) {
	_, mock, store := setupMockStore(t)

	mock.ExpectQuery(`SELECT content_type, title, content, current_version, lock_version, created_at, updated_at`).
		WithArgs("conv-1", "missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Read(context.Background(), "conv-1", "missing", nil)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
