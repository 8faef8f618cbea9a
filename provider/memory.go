package provider

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/millstone-labs/millflow/connection"
	"github.com/millstone-labs/millflow/data"
	"github.com/millstone-labs/millflow/workflow"
)

// SliceReader is an InputReader over a fixed slice of values.
type SliceReader struct {
	values []data.Value
	pos    int
	closed bool
}

// NewSliceReader returns a reader that yields the given values in order.
func NewSliceReader(values []data.Value) *SliceReader {
	return &SliceReader{values: values}
}

// Read returns the next value or io.EOF.
func (r *SliceReader) Read(ctx context.Context) (data.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.closed || r.pos >= len(r.values) {
		return nil, io.EOF
	}
	v := r.values[r.pos]
	r.pos++
	return v, nil
}

// Close stops the reader; subsequent reads return io.EOF.
func (r *SliceReader) Close() error {
	r.closed = true
	return nil
}

// CollectWriter is an OutputWriter that records written batches in memory.
type CollectWriter struct {
	mu      sync.Mutex
	batches [][]data.Value
	closed  bool
}

// NewCollectWriter returns an empty collecting writer.
func NewCollectWriter() *CollectWriter {
	return &CollectWriter{}
}

// WriteBatch records one batch.
func (w *CollectWriter) WriteBatch(ctx context.Context, values []data.Value) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("writer is closed")
	}
	batch := make([]data.Value, len(values))
	copy(batch, values)
	w.batches = append(w.batches, batch)
	return nil
}

// Close marks the writer closed.
func (w *CollectWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// Batches returns the recorded batches.
func (w *CollectWriter) Batches() [][]data.Value {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([][]data.Value, len(w.batches))
	copy(out, w.batches)
	return out
}

// Values returns all written values flattened in write order.
func (w *CollectWriter) Values() []data.Value {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []data.Value
	for _, b := range w.batches {
		out = append(out, b...)
	}
	return out
}

// MemConnector is an in-memory Connector keyed by provider target (bucket,
// container, or table). Inputs read preloaded values; outputs collect into
// writers retrievable after a run.
type MemConnector struct {
	mu      sync.Mutex
	sources map[string][]data.Value
	sinks   map[string]*CollectWriter
}

// NewMemConnector returns an empty connector.
func NewMemConnector() *MemConnector {
	return &MemConnector{
		sources: make(map[string][]data.Value),
		sinks:   make(map[string]*CollectWriter),
	}
}

// AddSource preloads values for the given target.
func (c *MemConnector) AddSource(target string, values ...data.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[target] = append(c.sources[target], values...)
}

// Sink returns the collecting writer for a target, creating it on demand.
func (c *MemConnector) Sink(target string) *CollectWriter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sink(target)
}

func (c *MemConnector) sink(target string) *CollectWriter {
	w, ok := c.sinks[target]
	if !ok {
		w = NewCollectWriter()
		c.sinks[target] = w
	}
	return w
}

// OpenInput returns a reader over the values preloaded for the params'
// target. Opening an unknown target yields an empty reader.
func (c *MemConnector) OpenInput(ctx context.Context, params workflow.ProviderParams, _ *connection.DALConnection) (InputReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := Target(params)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return NewSliceReader(c.sources[target]), nil
}

// OpenOutput returns the collecting writer for the params' target.
func (c *MemConnector) OpenOutput(ctx context.Context, params workflow.ProviderParams, _ *connection.DALConnection) (OutputWriter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := Target(params)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sink(target), nil
}

// Target names the location provider params address: the bucket or
// container for object stores, the table for relational stores.
func Target(params workflow.ProviderParams) (string, error) {
	switch p := params.(type) {
	case workflow.S3Params:
		return p.Bucket, nil
	case workflow.GCSParams:
		return p.Bucket, nil
	case workflow.AzureBlobParams:
		return p.Container, nil
	case workflow.PostgresParams:
		return p.Table, nil
	case workflow.MySQLParams:
		return p.Table, nil
	}
	return "", fmt.Errorf("unknown provider params %T", params)
}

// StaticDialer is a Dialer returning canned AI clients, for tests and dry
// runs.
type StaticDialer struct {
	// CompleteFunc handles completion calls; nil echoes a fixed reply.
	CompleteFunc func(ctx context.Context, req CompletionRequest) (string, error)
	// EmbedDim is the dimensionality of fake embeddings.
	EmbedDim int
}

type staticCompletion struct {
	fn func(ctx context.Context, req CompletionRequest) (string, error)
}

func (c staticCompletion) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.fn != nil {
		return c.fn(ctx, req)
	}
	return "ok: " + firstLine(req.Prompt), nil
}

type staticEmbedding struct {
	dim int
}

func (e staticEmbedding) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dim := e.dim
	if dim <= 0 {
		dim = 4
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, dim)
		for j := range vec {
			vec[j] = float64(len(text)%7) + float64(j)
		}
		out[i] = vec
	}
	return out, nil
}

// Completion returns a canned completion client.
func (d *StaticDialer) Completion(ctx context.Context, _ connection.AICredentials) (CompletionClient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return staticCompletion{fn: d.CompleteFunc}, nil
}

// Embedding returns a canned embedding client.
func (d *StaticDialer) Embedding(ctx context.Context, _ connection.AICredentials) (EmbeddingClient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return staticEmbedding{dim: d.EmbedDim}, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var (
	_ Connector = (*MemConnector)(nil)
	_ Dialer    = (*StaticDialer)(nil)
)
