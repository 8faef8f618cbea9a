package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/millstone-labs/millflow/data"
	"github.com/millstone-labs/millflow/provider"
	"github.com/millstone-labs/millflow/workflow"
)

// Processor applies one transformer to a single value. A processor may emit
// zero, one, or many values; it never mutates its input.
type Processor interface {
	Process(ctx context.Context, v data.Value) ([]data.Value, error)
}

const (
	metaElementIndex = "element_index"
	metaPageNumber   = "page_number"
	metaChunkIndex   = "chunk_index"
	metaEmbedding    = "embedding"
	metaEnrichment   = "enrichment"
	metaDerivedFrom  = "derived_from"
)

// partitionProcessor splits blobs into typed elements. Pages are delimited by
// form feeds, paragraphs by blank lines. Records pass through untouched.
type partitionProcessor struct {
	params workflow.Partition
}

func (p partitionProcessor) Process(_ context.Context, v data.Value) ([]data.Value, error) {
	blob, ok := v.(*data.Blob)
	if !ok {
		return []data.Value{v}, nil
	}
	if !utf8.Valid(blob.Data) {
		if p.params.DiscardUnsupported {
			return nil, nil
		}
		return []data.Value{v}, nil
	}

	var out []data.Value
	index := 0
	for page, text := range strings.Split(string(blob.Data), "\f") {
		for _, para := range strings.Split(text, "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			el := blob.Clone()
			el.Data = []byte(para)
			el.ContentType = "text/plain"
			el.Metadata[metaElementIndex] = index
			if p.params.IncludePageBreaks {
				el.Metadata[metaPageNumber] = page + 1
			}
			out = append(out, el)
			index++
		}
	}
	return out, nil
}

// defaultChunkSize bounds chunks when the definition leaves max_size unset.
const defaultChunkSize = 1000

// chunkProcessor packs text into retrieval-sized pieces, carrying Overlap
// trailing characters into the next chunk. Records pass through untouched.
type chunkProcessor struct {
	params workflow.Chunk
}

func (p chunkProcessor) Process(_ context.Context, v data.Value) ([]data.Value, error) {
	blob, ok := v.(*data.Blob)
	if !ok {
		return []data.Value{v}, nil
	}

	maxSize := p.params.MaxSize
	if maxSize <= 0 {
		maxSize = defaultChunkSize
	}
	overlap := p.params.Overlap
	if overlap >= maxSize {
		overlap = maxSize - 1
	}

	var chunks []string
	var current strings.Builder
	for _, unit := range splitUnits(string(blob.Data), p.params.Strategy) {
		if current.Len() > 0 && current.Len()+len(unit) > maxSize {
			chunk := current.String()
			chunks = append(chunks, chunk)
			current.Reset()
			if overlap > 0 && len(chunk) > overlap {
				current.WriteString(chunk[len(chunk)-overlap:])
			}
		}
		current.WriteString(unit)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	out := make([]data.Value, 0, len(chunks))
	for i, chunk := range chunks {
		c := blob.Clone()
		c.Data = []byte(chunk)
		c.Metadata[metaChunkIndex] = i
		out = append(out, c)
	}
	return out, nil
}

// splitUnits breaks text into the granularity the chunk strategy packs.
func splitUnits(text string, strategy workflow.ChunkStrategy) []string {
	switch strategy {
	case workflow.ChunkBySentence:
		return splitAfterAny(text, ".!?")
	case workflow.ChunkByParagraph:
		return splitKeepSep(text, "\n\n")
	case workflow.ChunkByPage:
		return splitKeepSep(text, "\f")
	case workflow.ChunkByTitle:
		var units []string
		for line := range strings.Lines(text) {
			if strings.HasPrefix(line, "#") || len(units) == 0 {
				units = append(units, line)
			} else {
				units[len(units)-1] += line
			}
		}
		return units
	default:
		// character strategy: each rune is a unit, so chunks are packed
		// purely by size.
		units := make([]string, 0, len(text))
		for _, r := range text {
			units = append(units, string(r))
		}
		return units
	}
}

func splitAfterAny(text, terminators string) []string {
	var units []string
	start := 0
	for i, r := range text {
		if strings.ContainsRune(terminators, r) {
			units = append(units, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		units = append(units, text[start:])
	}
	return units
}

func splitKeepSep(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	units := parts[:0]
	for _, p := range parts {
		if p != "" {
			units = append(units, p)
		}
	}
	return units
}

// embeddingProcessor computes a vector for each value and stores it under the
// embedding metadata key.
type embeddingProcessor struct {
	client    provider.EmbeddingClient
	normalize bool
}

func (p embeddingProcessor) Process(ctx context.Context, v data.Value) ([]data.Value, error) {
	text, err := valueText(v)
	if err != nil {
		return nil, err
	}
	vectors, err := p.client.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed: got %d vectors for one input", len(vectors))
	}
	vec := vectors[0]
	if p.normalize {
		vec = normalizeVector(vec)
	}

	switch v := v.(type) {
	case *data.Blob:
		out := v.Clone()
		out.Metadata[metaEmbedding] = vec
		return []data.Value{out}, nil
	case *data.Record:
		out := v.Clone()
		out.Columns[metaEmbedding] = vec
		return []data.Value{out}, nil
	}
	return []data.Value{v}, nil
}

func normalizeVector(vec []float64) []float64 {
	var sum float64
	for _, x := range vec {
		sum += x * x
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	out := make([]float64, len(vec))
	for i, x := range vec {
		out[i] = x / norm
	}
	return out
}

// agentKind distinguishes the three completion-backed transformers, which
// share a processor but differ in what they do with the agent's answer.
type agentKind int

const (
	agentEnrich agentKind = iota
	agentExtract
	agentDerive
)

// agentProcessor runs a task agent over each value.
type agentProcessor struct {
	agents   *provider.Agents
	task     string
	override string
	kind     agentKind
}

func (p agentProcessor) Process(ctx context.Context, v data.Value) ([]data.Value, error) {
	content, err := valueText(v)
	if err != nil {
		return nil, err
	}
	answer, err := p.agents.Run(ctx, p.task, p.override, content)
	if err != nil {
		return nil, err
	}

	switch p.kind {
	case agentEnrich:
		switch v := v.(type) {
		case *data.Blob:
			out := v.Clone()
			out.Metadata[metaEnrichment] = answer
			return []data.Value{out}, nil
		case *data.Record:
			out := v.Clone()
			out.Columns[metaEnrichment] = answer
			return []data.Value{out}, nil
		}
		return []data.Value{v}, nil

	case agentExtract:
		// A JSON object answer becomes the record's columns directly.
		var columns map[string]any
		if err := json.Unmarshal([]byte(answer), &columns); err != nil || columns == nil {
			columns = map[string]any{"extracted": answer}
		}
		if blob, ok := v.(*data.Blob); ok && blob.Path != "" {
			columns["source_path"] = blob.Path
		}
		return []data.Value{data.NewRecord(columns)}, nil

	default:
		out := data.NewBlob(derivedPath(v), []byte(answer))
		out.ContentType = "text/plain"
		if blob, ok := v.(*data.Blob); ok {
			out.Metadata[metaDerivedFrom] = blob.Path
		}
		return []data.Value{out}, nil
	}
}

func derivedPath(v data.Value) string {
	if blob, ok := v.(*data.Blob); ok && blob.Path != "" {
		return blob.Path + ".derived.txt"
	}
	return "derived.txt"
}

// valueText renders a value as the text a model sees: blob payload bytes, or
// a record's columns as JSON.
func valueText(v data.Value) (string, error) {
	switch v := v.(type) {
	case *data.Blob:
		return string(v.Data), nil
	case *data.Record:
		b, err := json.Marshal(v.Columns)
		if err != nil {
			return "", fmt.Errorf("render record: %w", err)
		}
		return string(b), nil
	}
	return "", fmt.Errorf("render value: unsupported type %T", v)
}
