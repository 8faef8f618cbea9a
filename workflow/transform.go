package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Transformer is the closed set of transformer kinds. Partition and Chunk run
// locally and need no credential; the other four bind to an AI provider.
type Transformer interface {
	isTransformer()
	transformerKind() string

	// CredentialsID returns the AI credential this transformer needs, or
	// false when it runs without one.
	CredentialsID() (uuid.UUID, bool)
}

// PartitionStrategy selects how documents are split into elements.
type PartitionStrategy string

const (
	PartitionAuto    PartitionStrategy = "auto"
	PartitionFast    PartitionStrategy = "fast"
	PartitionHiRes   PartitionStrategy = "hi_res"
	PartitionOCROnly PartitionStrategy = "ocr_only"
)

// ChunkStrategy selects how partitioned elements are grouped into chunks.
type ChunkStrategy string

const (
	ChunkByCharacter ChunkStrategy = "character"
	ChunkBySentence  ChunkStrategy = "sentence"
	ChunkByParagraph ChunkStrategy = "paragraph"
	ChunkByPage      ChunkStrategy = "page"
	ChunkByTitle     ChunkStrategy = "title"
)

// AIProviderParams references the completion or embedding connection a
// transformer binds to, plus the model to request.
type AIProviderParams struct {
	Credentials uuid.UUID `json:"credentials_id" validate:"required"`
	Model       string    `json:"model,omitempty"`
}

// Partition splits raw documents into typed elements.
type Partition struct {
	Strategy           PartitionStrategy `json:"strategy,omitempty"`
	IncludePageBreaks  bool              `json:"include_page_breaks,omitempty"`
	DiscardUnsupported bool              `json:"discard_unsupported,omitempty"`
}

// Chunk groups elements into retrieval-sized pieces.
type Chunk struct {
	Strategy ChunkStrategy `json:"strategy,omitempty"`
	MaxSize  int           `json:"max_size,omitempty" validate:"gte=0"`
	Overlap  int           `json:"overlap,omitempty" validate:"gte=0"`
}

// Embedding computes vector embeddings for chunks.
type Embedding struct {
	Provider  AIProviderParams `json:"provider"`
	Normalize bool             `json:"normalize,omitempty"`
}

// Enrich augments elements with AI-generated descriptions.
type Enrich struct {
	Provider       AIProviderParams `json:"provider"`
	Task           string           `json:"task,omitempty"`
	OverridePrompt string           `json:"override_prompt,omitempty"`
}

// Extract pulls structured fields out of elements.
type Extract struct {
	Provider       AIProviderParams `json:"provider"`
	Task           string           `json:"task,omitempty"`
	OverridePrompt string           `json:"override_prompt,omitempty"`
}

// Derive produces new artifacts (summaries, translations) from elements.
type Derive struct {
	Provider       AIProviderParams `json:"provider"`
	Task           string           `json:"task,omitempty"`
	OverridePrompt string           `json:"override_prompt,omitempty"`
}

func (Partition) isTransformer() {}
func (Chunk) isTransformer()     {}
func (Embedding) isTransformer() {}
func (Enrich) isTransformer()    {}
func (Extract) isTransformer()   {}
func (Derive) isTransformer()    {}

func (Partition) transformerKind() string { return "partition" }
func (Chunk) transformerKind() string     { return "chunk" }
func (Embedding) transformerKind() string { return "embedding" }
func (Enrich) transformerKind() string    { return "enrich" }
func (Extract) transformerKind() string   { return "extract" }
func (Derive) transformerKind() string    { return "derive" }

func (Partition) CredentialsID() (uuid.UUID, bool) { return uuid.UUID{}, false }
func (Chunk) CredentialsID() (uuid.UUID, bool)     { return uuid.UUID{}, false }

func (t Embedding) CredentialsID() (uuid.UUID, bool) { return t.Provider.Credentials, true }
func (t Enrich) CredentialsID() (uuid.UUID, bool)    { return t.Provider.Credentials, true }
func (t Extract) CredentialsID() (uuid.UUID, bool)   { return t.Provider.Credentials, true }
func (t Derive) CredentialsID() (uuid.UUID, bool)    { return t.Provider.Credentials, true }

func marshalTransformer(t Transformer) (json.RawMessage, error) {
	if t == nil {
		return nil, fmt.Errorf("transformer missing")
	}
	body, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return tagObject(t.transformerKind(), body)
}

func unmarshalTransformer(raw json.RawMessage) (Transformer, error) {
	kind, body, err := untagObject(raw)
	if err != nil {
		return nil, fmt.Errorf("transformer: %w", err)
	}

	switch kind {
	case "partition":
		var t Partition
		err = json.Unmarshal(body, &t)
		return t, err
	case "chunk":
		var t Chunk
		err = json.Unmarshal(body, &t)
		return t, err
	case "embedding":
		var t Embedding
		err = json.Unmarshal(body, &t)
		return t, err
	case "enrich":
		var t Enrich
		err = json.Unmarshal(body, &t)
		return t, err
	case "extract":
		var t Extract
		err = json.Unmarshal(body, &t)
		return t, err
	case "derive":
		var t Derive
		err = json.Unmarshal(body, &t)
		return t, err
	}
	return nil, fmt.Errorf("unknown transformer kind %q", kind)
}
