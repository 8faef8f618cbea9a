// Package store provides the persisted-connection repositories behind
// connection.Store: PostgreSQL for production and SQLite for local use and
// tests. Rows hold opaque ciphertext; encryption and decryption happen in
// the connection loader and the Save helpers.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/millstone-labs/millflow/connection"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS workspace_connections (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	encrypted_data BLOB NOT NULL,
	deleted_at TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_workspace_connections_workspace
	ON workspace_connections(workspace_id);
`

// SQLite persists connection rows in a SQLite database.
type SQLite struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSQLite creates a store over an existing database handle and bootstraps
// the schema.
func NewSQLite(db *sql.DB, log *slog.Logger) (*SQLite, error) {
	if db == nil {
		return nil, errors.New("sqlite store: db is nil")
	}
	if log == nil {
		log = slog.Default()
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("sqlite store create schema: %w", err)
	}
	return &SQLite{db: db, log: log.With("component", "sqlite_store")}, nil
}

// OpenSQLite opens (or creates) a SQLite database at path and returns a
// store over it. Use ":memory:" for an in-memory database.
func OpenSQLite(path string, log *slog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store open %q: %w", path, err)
	}
	store, err := NewSQLite(db, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Save upserts a connection row.
func (s *SQLite) Save(ctx context.Context, record connection.Record) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO workspace_connections (id, workspace_id, encrypted_data, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	workspace_id = excluded.workspace_id,
	encrypted_data = excluded.encrypted_data,
	updated_at = excluded.updated_at`,
		record.ID.String(), record.WorkspaceID.String(), record.EncryptedData, now, now)
	if err != nil {
		return fmt.Errorf("sqlite store save: %w", err)
	}
	s.log.Debug("saved connection", "connection_id", record.ID, "workspace_id", record.WorkspaceID)
	return nil
}

// Delete soft-deletes a connection row.
func (s *SQLite) Delete(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
UPDATE workspace_connections SET deleted_at = ?, updated_at = ? WHERE id = ?`,
		now, now, id.String())
	if err != nil {
		return fmt.Errorf("sqlite store delete: %w", err)
	}
	return nil
}

// ListWorkspaceConnections returns up to limit active rows for a workspace,
// starting at offset, ordered by creation time.
func (s *SQLite) ListWorkspaceConnections(ctx context.Context, workspaceID uuid.UUID, limit, offset int) ([]connection.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, workspace_id, encrypted_data
FROM workspace_connections
WHERE workspace_id = ? AND deleted_at IS NULL
ORDER BY created_at ASC, id ASC
LIMIT ? OFFSET ?`,
		workspaceID.String(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite store list: %w", err)
	}
	defer rows.Close()

	var records []connection.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite store list scan: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store list rows: %w", err)
	}
	return records, nil
}

// FindConnection returns the active row with the given id, or nil.
func (s *SQLite) FindConnection(ctx context.Context, id uuid.UUID) (*connection.Record, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, workspace_id, encrypted_data
FROM workspace_connections
WHERE id = ? AND deleted_at IS NULL`,
		id.String())

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite store find: %w", err)
	}
	return &rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (connection.Record, error) {
	var (
		rec         connection.Record
		id          string
		workspaceID string
	)
	if err := row.Scan(&id, &workspaceID, &rec.EncryptedData); err != nil {
		return connection.Record{}, err
	}

	var err error
	if rec.ID, err = uuid.Parse(id); err != nil {
		return connection.Record{}, fmt.Errorf("parse connection id: %w", err)
	}
	if rec.WorkspaceID, err = uuid.Parse(workspaceID); err != nil {
		return connection.Record{}, fmt.Errorf("parse workspace id: %w", err)
	}
	return rec, nil
}

var _ connection.Store = (*SQLite)(nil)
