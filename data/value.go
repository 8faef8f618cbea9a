// Package data defines the unit of data that flows through a compiled
// workflow. A Value is either a Blob (file-shaped: bytes plus path, content
// type, and a metadata map) or a Record (row-shaped: named columns).
//
// Metadata values originate from JSON, so accessors coerce between the
// scalar shapes JSON decoding produces (string, float64, int, bool,
// json.Number) and treat anything that cannot be coerced as absent.
package data

import (
	"encoding/json"
	"strconv"
	"time"
)

// Value is the unit of data passed between workflow nodes.
// The set of implementations is closed: Blob and Record.
type Value interface {
	isValue()
}

// Blob is file-shaped data: raw bytes with a path, an optional MIME content
// type, and free-form metadata.
type Blob struct {
	Path        string         `json:"path"`
	Data        []byte         `json:"data,omitempty"`
	ContentType string         `json:"content_type,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewBlob creates a blob with the given path and payload.
func NewBlob(path string, payload []byte) *Blob {
	return &Blob{Path: path, Data: payload, Metadata: make(map[string]any)}
}

// Name returns the final path segment.
func (b *Blob) Name() string {
	for i := len(b.Path) - 1; i >= 0; i-- {
		if b.Path[i] == '/' {
			return b.Path[i+1:]
		}
	}
	return b.Path
}

// Extension returns the suffix after the final dot of the path, without the
// dot. Empty if the path has no dot.
func (b *Blob) Extension() string {
	for i := len(b.Path) - 1; i >= 0; i-- {
		switch b.Path[i] {
		case '.':
			return b.Path[i+1:]
		case '/':
			return ""
		}
	}
	return ""
}

// Clone returns a copy with its own metadata map. The payload bytes are
// shared; callers treat Data as immutable.
func (b *Blob) Clone() *Blob {
	dup := *b
	dup.Metadata = make(map[string]any, len(b.Metadata))
	for k, v := range b.Metadata {
		dup.Metadata[k] = v
	}
	return &dup
}

func (b *Blob) isValue() {}

// Record is row-shaped data: a set of named columns.
type Record struct {
	Columns map[string]any `json:"columns"`
}

// NewRecord creates a record with the given columns.
func NewRecord(columns map[string]any) *Record {
	if columns == nil {
		columns = make(map[string]any)
	}
	return &Record{Columns: columns}
}

// Clone returns a copy with its own column map.
func (r *Record) Clone() *Record {
	columns := make(map[string]any, len(r.Columns))
	for k, v := range r.Columns {
		columns[k] = v
	}
	return &Record{Columns: columns}
}

func (r *Record) isValue() {}

// fields returns the metadata side channel of a value: a blob's metadata map
// or a record's columns. Nil for nil values.
func fields(v Value) map[string]any {
	switch v := v.(type) {
	case *Blob:
		return v.Metadata
	case *Record:
		return v.Columns
	default:
		return nil
	}
}

// MetaString looks up a metadata key as a string. Numbers and bools are
// formatted; other shapes are treated as absent.
func MetaString(v Value, key string) (string, bool) {
	raw, ok := fields(v)[key]
	if !ok {
		return "", false
	}
	switch x := raw.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	case json.Number:
		return x.String(), true
	default:
		return "", false
	}
}

// MetaInt looks up a metadata key as an int64, accepting JSON numbers and
// numeric strings.
func MetaInt(v Value, key string) (int64, bool) {
	raw, ok := fields(v)[key]
	if !ok {
		return 0, false
	}
	switch x := raw.(type) {
	case float64:
		return int64(x), true
	case int:
		return int64(x), true
	case int64:
		return x, true
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		if f, err := x.Float64(); err == nil {
			return int64(f), true
		}
		return 0, false
	case string:
		if n, err := strconv.ParseInt(x, 10, 64); err == nil {
			return n, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// MetaFloat looks up a metadata key as a float64.
func MetaFloat(v Value, key string) (float64, bool) {
	raw, ok := fields(v)[key]
	if !ok {
		return 0, false
	}
	switch x := raw.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f, true
		}
		return 0, false
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// MetaTime looks up a metadata key holding an RFC 3339 timestamp.
func MetaTime(v Value, key string) (time.Time, bool) {
	s, ok := MetaString(v, key)
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
