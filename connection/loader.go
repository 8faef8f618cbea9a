package connection

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/millstone-labs/millflow/crypto"
	"github.com/millstone-labs/millflow/workflow"
)

// pageSize is the batch size used when listing a workspace's connections.
const pageSize = 1000

// Record is a persisted connection row as fetched from the store. The
// encrypted payload decrypts to a ProviderConnection under the owning
// workspace's derived key.
type Record struct {
	ID            uuid.UUID
	WorkspaceID   uuid.UUID
	EncryptedData []byte
}

// Store is the relational collaborator the loader reads connection rows
// from.
type Store interface {
	// ListWorkspaceConnections returns up to limit active rows for a
	// workspace, starting at offset.
	ListWorkspaceConnections(ctx context.Context, workspaceID uuid.UUID, limit, offset int) ([]Record, error)

	// FindConnection returns the row with the given id, or nil when no such
	// row exists.
	FindConnection(ctx context.Context, id uuid.UUID) (*Record, error)
}

// Loader decrypts persisted connection records into registries. It holds the
// master encryption key and derives a workspace-specific key per workspace,
// so connections from different workspaces stay cryptographically isolated
// behind a single managed secret.
type Loader struct {
	store     Store
	masterKey crypto.EncryptionKey
	log       *slog.Logger
}

// NewLoader returns a loader over the given store and master key. A nil
// logger falls back to slog.Default.
func NewLoader(store Store, masterKey crypto.EncryptionKey, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{store: store, masterKey: masterKey, log: log.With("component", "connection_loader")}
}

// DeriveKey returns the workspace-specific encryption key. Derivation is
// deterministic per (master key, workspace) pair.
func (l *Loader) DeriveKey(workspaceID uuid.UUID) crypto.EncryptionKey {
	return l.masterKey.DeriveWorkspaceKey(workspaceID)
}

// LoadWorkspaceConnections fetches all active rows for one workspace,
// derives the workspace key once, and decrypts every row into a fresh
// registry. Any decrypt or decode failure aborts the whole load; a partially
// populated registry could silently misroute a workflow.
func (l *Loader) LoadWorkspaceConnections(ctx context.Context, workspaceID uuid.UUID) (*Registry, error) {
	key := l.DeriveKey(workspaceID)
	registry := NewRegistry()

	for offset := 0; ; offset += pageSize {
		records, err := l.store.ListWorkspaceConnections(ctx, workspaceID, pageSize, offset)
		if err != nil {
			l.log.Error("list workspace connections failed",
				"workspace_id", workspaceID, "error", err)
			return nil, fmt.Errorf("%w: list workspace connections: %s", workflow.ErrInternal, err)
		}

		for _, record := range records {
			conn, err := l.decrypt(key, record)
			if err != nil {
				return nil, err
			}
			registry.Register(record.ID, conn)
		}

		if len(records) < pageSize {
			break
		}
	}

	l.log.Debug("loaded workspace connections",
		"workspace_id", workspaceID, "count", registry.Len())
	return registry, nil
}

// LoadConnection fetches one row and decrypts it with the key derived for
// that row's own workspace. Per-row derivation is required: connections
// loaded by id may span workspaces.
func (l *Loader) LoadConnection(ctx context.Context, id uuid.UUID) (ProviderConnection, error) {
	record, err := l.store.FindConnection(ctx, id)
	if err != nil {
		l.log.Error("find connection failed", "connection_id", id, "error", err)
		return nil, fmt.Errorf("%w: find connection: %s", workflow.ErrInternal, err)
	}
	if record == nil {
		return nil, NotFoundError{ID: id}
	}

	key := l.DeriveKey(record.WorkspaceID)
	return l.decrypt(key, *record)
}

// LoadConnections loads each id individually and aggregates the results into
// one registry. Any failure aborts the whole load.
func (l *Loader) LoadConnections(ctx context.Context, ids []uuid.UUID) (*Registry, error) {
	registry := NewRegistry()
	for _, id := range ids {
		conn, err := l.LoadConnection(ctx, id)
		if err != nil {
			return nil, err
		}
		registry.Register(id, conn)
	}
	return registry, nil
}

func (l *Loader) decrypt(key crypto.EncryptionKey, record Record) (ProviderConnection, error) {
	plaintext, err := crypto.Decrypt(key, record.EncryptedData)
	if err != nil {
		l.log.Error("connection decrypt failed", "connection_id", record.ID, "error", err)
		return nil, fmt.Errorf("%w: decrypt connection %s: %s", workflow.ErrInternal, record.ID, err)
	}
	conn, err := Unmarshal(plaintext)
	if err != nil {
		l.log.Error("connection decode failed", "connection_id", record.ID, "error", err)
		return nil, fmt.Errorf("%w: decode connection %s: %s", workflow.ErrInternal, record.ID, err)
	}
	return conn, nil
}
