// Package provider declares the narrow collaborator contracts the compiler
// binds workflow nodes to: data readers and writers, AI clients, and the
// agent bundle used by AI-backed transformers. Concrete wire implementations
// live outside the engine; this package also ships in-memory implementations
// for tests and dry runs.
package provider

import (
	"context"

	"github.com/millstone-labs/millflow/connection"
	"github.com/millstone-labs/millflow/data"
	"github.com/millstone-labs/millflow/workflow"
)

// InputReader yields data units from a provider. Read returns io.EOF when
// the source is exhausted.
type InputReader interface {
	Read(ctx context.Context) (data.Value, error)
	Close() error
}

// OutputWriter persists data units to a provider in batches.
type OutputWriter interface {
	WriteBatch(ctx context.Context, values []data.Value) error
	Close() error
}

// Connector opens live readers and writers for provider nodes. Opening may
// perform network I/O and an auth check.
type Connector interface {
	OpenInput(ctx context.Context, params workflow.ProviderParams, conn *connection.DALConnection) (InputReader, error)
	OpenOutput(ctx context.Context, params workflow.ProviderParams, conn *connection.DALConnection) (OutputWriter, error)
}

// CompletionClient is a bound chat-completion provider.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest is a single completion call.
type CompletionRequest struct {
	Instructions string
	Prompt       string
	Temperature  *float32
	MaxTokens    int
}

// EmbeddingClient is a bound embedding provider.
type EmbeddingClient interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Dialer constructs AI clients from decrypted credentials. Construction may
// perform a handshake.
type Dialer interface {
	Completion(ctx context.Context, creds connection.AICredentials) (CompletionClient, error)
	Embedding(ctx context.Context, creds connection.AICredentials) (EmbeddingClient, error)
}
