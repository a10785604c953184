package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studylink/internal/database/migrations"
	"studylink/internal/studylink"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	getItemQuery    = `SELECT value FROM local_storage WHERE key = ?`
	removeItemQuery = `DELETE FROM local_storage WHERE key = ?`
	setItemQuery    = `
INSERT INTO local_storage (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	insertOperationQuery = `
INSERT INTO operations (name, parameters, user_id, status, started_at)
VALUES (?, ?, ?, 'running', ?)`
	finishOperationQuery = `
UPDATE operations SET status = ?, detail = ?, finished_at = ? WHERE id = ?`
	listOperationsQuery = `
SELECT id, name, parameters, user_id, status, detail, started_at, finished_at
FROM operations
ORDER BY started_at DESC, id DESC
LIMIT ?`
)

// SQLiteDatabase stores client state and the operation history in SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteDatabase{
		db:   db,
		path: path,
	}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Local storage

func (s *SQLiteDatabase) GetItem(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(context.Background(), getItemQuery, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("getting item %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteDatabase) SetItem(key, value string) error {
	if _, err := s.db.ExecContext(context.Background(), setItemQuery, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("setting item %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteDatabase) RemoveItem(key string) error {
	if _, err := s.db.ExecContext(context.Background(), removeItemQuery, key); err != nil {
		return fmt.Errorf("removing item %q: %w", key, err)
	}
	return nil
}

// Operations

func (s *SQLiteDatabase) StartOperation(name, parameters string, user studylink.UserID, startedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(context.Background(), insertOperationQuery, name, parameters, int64(user), startedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("creating operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading operation id: %w", err)
	}
	return id, nil
}

func (s *SQLiteDatabase) FinishOperation(id int64, status, detail string, finishedAt time.Time) error {
	res, err := s.db.ExecContext(context.Background(), finishOperationQuery, status, detail, finishedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("finishing operation %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing operation %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("finishing operation %d: not found", id)
	}
	return nil
}

func (s *SQLiteDatabase) ListOperations(limit int) ([]*studylink.Operation, error) {
	rows, err := s.db.QueryContext(context.Background(), listOperationsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*studylink.Operation
	for rows.Next() {
		var op studylink.Operation
		var user int64
		if err := rows.Scan(&op.ID, &op.Name, &op.Parameters, &user, &op.Status, &op.Detail, &op.StartedAt, &op.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		op.UserID = studylink.UserID(user)
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate brings the schema up to the latest version.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// MigrationStatus reports the schema version of the database.
func (s *SQLiteDatabase) MigrationStatus() (migrations.Status, error) {
	return migrations.GetStatus(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time checks that SQLiteDatabase implements the storage interfaces
var (
	_ studylink.LocalStorage = (*SQLiteDatabase)(nil)
	_ studylink.OperationLog = (*SQLiteDatabase)(nil)
)
