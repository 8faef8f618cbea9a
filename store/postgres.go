package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/millstone-labs/millflow/connection"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS workspace_connections (
	id UUID PRIMARY KEY,
	workspace_id UUID NOT NULL,
	encrypted_data BYTEA NOT NULL,
	deleted_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_workspace_connections_workspace
	ON workspace_connections(workspace_id);
`

// Postgres persists connection rows in PostgreSQL.
type Postgres struct {
	db  *sql.DB
	log *slog.Logger
}

// NewPostgres connects to databaseURL, verifies the connection, and
// bootstraps the schema.
func NewPostgres(ctx context.Context, databaseURL string, log *slog.Logger) (*Postgres, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres store open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres store ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres store create schema: %w", err)
	}

	log = log.With("component", "postgres_store")
	log.Info("connected to postgres")
	return &Postgres{db: db, log: log}, nil
}

// Close closes the underlying database.
func (s *Postgres) Close() error {
	return s.db.Close()
}

// Save upserts a connection row.
func (s *Postgres) Save(ctx context.Context, record connection.Record) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO workspace_connections (id, workspace_id, encrypted_data)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET
	workspace_id = EXCLUDED.workspace_id,
	encrypted_data = EXCLUDED.encrypted_data,
	updated_at = now()`,
		record.ID, record.WorkspaceID, record.EncryptedData)
	if err != nil {
		return fmt.Errorf("postgres store save: %w", err)
	}
	s.log.Debug("saved connection", "connection_id", record.ID, "workspace_id", record.WorkspaceID)
	return nil
}

// Delete soft-deletes a connection row.
func (s *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE workspace_connections SET deleted_at = now(), updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres store delete: %w", err)
	}
	return nil
}

// ListWorkspaceConnections returns up to limit active rows for a workspace,
// starting at offset, ordered by creation time.
func (s *Postgres) ListWorkspaceConnections(ctx context.Context, workspaceID uuid.UUID, limit, offset int) ([]connection.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, workspace_id, encrypted_data
FROM workspace_connections
WHERE workspace_id = $1 AND deleted_at IS NULL
ORDER BY created_at ASC, id ASC
LIMIT $2 OFFSET $3`,
		workspaceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("postgres store list: %w", err)
	}
	defer rows.Close()

	var records []connection.Record
	for rows.Next() {
		var rec connection.Record
		if err := rows.Scan(&rec.ID, &rec.WorkspaceID, &rec.EncryptedData); err != nil {
			return nil, fmt.Errorf("postgres store list scan: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store list rows: %w", err)
	}
	return records, nil
}

// FindConnection returns the active row with the given id, or nil.
func (s *Postgres) FindConnection(ctx context.Context, id uuid.UUID) (*connection.Record, error) {
	var rec connection.Record
	err := s.db.QueryRowContext(ctx, `
SELECT id, workspace_id, encrypted_data
FROM workspace_connections
WHERE id = $1 AND deleted_at IS NULL`, id).
		Scan(&rec.ID, &rec.WorkspaceID, &rec.EncryptedData)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store find: %w", err)
	}
	return &rec, nil
}

var _ connection.Store = (*Postgres)(nil)
