package connection

import (
	"fmt"

	"github.com/google/uuid"
)

// NotFoundError reports a connection id that is not present in a registry or
// store. It carries the id so callers can distinguish a bad graph from a
// revoked credential.
type NotFoundError struct {
	ID uuid.UUID
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("connection %s not found", e.ID)
}

// Registry is an in-memory map of decrypted provider connections. It is
// populated once per compilation session and read-only from the compiler's
// perspective; it is not safe for concurrent mutation.
type Registry struct {
	connections map[uuid.UUID]ProviderConnection
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{connections: make(map[uuid.UUID]ProviderConnection)}
}

// Register stores a connection under id, replacing any previous entry.
func (r *Registry) Register(id uuid.UUID, conn ProviderConnection) {
	if r.connections == nil {
		r.connections = make(map[uuid.UUID]ProviderConnection)
	}
	r.connections[id] = conn
}

// Get returns the connection stored under id, or a NotFoundError.
func (r *Registry) Get(id uuid.UUID) (ProviderConnection, error) {
	conn, ok := r.connections[id]
	if !ok {
		return nil, NotFoundError{ID: id}
	}
	return conn, nil
}

// Contains reports whether id is registered. Satisfies the graph package's
// credential checker.
func (r *Registry) Contains(id uuid.UUID) bool {
	_, ok := r.connections[id]
	return ok
}

// Remove deletes and returns the connection stored under id, or nil.
func (r *Registry) Remove(id uuid.UUID) ProviderConnection {
	conn, ok := r.connections[id]
	if !ok {
		return nil
	}
	delete(r.connections, id)
	return conn
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	return len(r.connections)
}

// IsEmpty reports whether the registry holds no connections.
func (r *Registry) IsEmpty() bool {
	return len(r.connections) == 0
}

// Clear removes all connections.
func (r *Registry) Clear() {
	clear(r.connections)
}
