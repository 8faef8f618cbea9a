package engine

import (
	"context"
	"io"

	"github.com/millstone-labs/millflow/data"
	"github.com/millstone-labs/millflow/provider"
)

// DefaultBatchSize is the number of values buffered before an output node
// flushes to its provider, unless the node configures its own size.
const DefaultBatchSize = 64

// BatchWriter buffers values and forwards them to an OutputWriter in batches.
// It is not safe for concurrent use.
type BatchWriter struct {
	w       provider.OutputWriter
	buf     []data.Value
	size    int
	written int
}

// NewBatchWriter wraps w with a buffer of the given size. A size of zero or
// less means DefaultBatchSize.
func NewBatchWriter(w provider.OutputWriter, size int) *BatchWriter {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &BatchWriter{w: w, buf: make([]data.Value, 0, size), size: size}
}

// Write buffers v, flushing when the buffer reaches the batch size.
func (b *BatchWriter) Write(ctx context.Context, v data.Value) error {
	b.buf = append(b.buf, v)
	if len(b.buf) >= b.size {
		return b.Flush(ctx)
	}
	return nil
}

// Flush forwards any buffered values.
func (b *BatchWriter) Flush(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	batch := b.buf
	b.buf = b.buf[len(b.buf):]
	if err := b.w.WriteBatch(ctx, batch); err != nil {
		return err
	}
	b.written += len(batch)
	return nil
}

// Written returns the number of values flushed so far.
func (b *BatchWriter) Written() int {
	return b.written
}

// Close closes the underlying writer. Callers flush first; Close does not,
// since it has no context to flush under.
func (b *BatchWriter) Close() error {
	return b.w.Close()
}

// LimitReader caps how many values are read from an InputReader. A limit of
// zero or less means no cap. Used for dry runs and sampling.
type LimitReader struct {
	r     provider.InputReader
	limit int
	count int
}

// NewLimitReader wraps r so at most limit values are returned.
func NewLimitReader(r provider.InputReader, limit int) *LimitReader {
	return &LimitReader{r: r, limit: limit}
}

// Read returns the next value, or io.EOF once the cap is reached.
func (l *LimitReader) Read(ctx context.Context) (data.Value, error) {
	if l.limit > 0 && l.count >= l.limit {
		return nil, io.EOF
	}
	v, err := l.r.Read(ctx)
	if err != nil {
		return nil, err
	}
	l.count++
	return v, nil
}

// Count returns the number of values read so far.
func (l *LimitReader) Count() int {
	return l.count
}

// Close closes the underlying reader.
func (l *LimitReader) Close() error {
	return l.r.Close()
}

var _ provider.InputReader = (*LimitReader)(nil)
