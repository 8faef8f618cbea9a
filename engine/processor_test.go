package engine

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/millstone-labs/millflow/connection"
	"github.com/millstone-labs/millflow/data"
	"github.com/millstone-labs/millflow/provider"
	"github.com/millstone-labs/millflow/workflow"
)

func connectionlessCreds() connection.AICredentials {
	return connection.AICredentials{}
}

func textBlob(path, text string) *data.Blob {
	b := data.NewBlob(path, []byte(text))
	b.ContentType = "text/plain"
	return b
}

func TestPartitionSplitsParagraphs(t *testing.T) {
	p := partitionProcessor{params: workflow.Partition{}}
	blob := textBlob("doc.txt", "first paragraph\n\nsecond paragraph\n\n\n\nthird")

	out, err := p.Process(context.Background(), blob)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(out))
	}
	for i, v := range out {
		el := v.(*data.Blob)
		if el.Path != "doc.txt" {
			t.Errorf("element %d lost its path: %q", i, el.Path)
		}
		if idx, ok := data.MetaInt(el, "element_index"); !ok || idx != int64(i) {
			t.Errorf("element %d has index %d", i, idx)
		}
	}
	if string(out[2].(*data.Blob).Data) != "third" {
		t.Errorf("last element = %q", out[2].(*data.Blob).Data)
	}
}

func TestPartitionPageBreaks(t *testing.T) {
	p := partitionProcessor{params: workflow.Partition{IncludePageBreaks: true}}
	blob := textBlob("doc.txt", "page one\fpage two")

	out, err := p.Process(context.Background(), blob)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(out))
	}
	if page, _ := data.MetaInt(out[0], "page_number"); page != 1 {
		t.Errorf("first element on page %d", page)
	}
	if page, _ := data.MetaInt(out[1], "page_number"); page != 2 {
		t.Errorf("second element on page %d", page)
	}
}

func TestPartitionDiscardsBinary(t *testing.T) {
	binary := data.NewBlob("img.bin", []byte{0xff, 0xfe, 0x00, 0x80})

	p := partitionProcessor{params: workflow.Partition{DiscardUnsupported: true}}
	out, err := p.Process(context.Background(), binary)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("binary blob not discarded: %d elements", len(out))
	}

	keep := partitionProcessor{params: workflow.Partition{}}
	out, err = keep.Process(context.Background(), binary)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 1 || out[0] != data.Value(binary) {
		t.Errorf("binary blob should pass through unchanged")
	}
}

func TestPartitionPassesRecordsThrough(t *testing.T) {
	rec := data.NewRecord(map[string]any{"a": 1})
	p := partitionProcessor{params: workflow.Partition{}}

	out, err := p.Process(context.Background(), rec)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 1 || out[0] != data.Value(rec) {
		t.Error("record did not pass through")
	}
}

func TestChunkPacksBySize(t *testing.T) {
	p := chunkProcessor{params: workflow.Chunk{MaxSize: 10}}
	blob := textBlob("doc.txt", strings.Repeat("x", 25))

	out, err := p.Process(context.Background(), blob)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(out))
	}
	for i, v := range out {
		chunk := v.(*data.Blob)
		if len(chunk.Data) > 10 {
			t.Errorf("chunk %d exceeds max size: %d bytes", i, len(chunk.Data))
		}
	}
}

func TestChunkSentences(t *testing.T) {
	p := chunkProcessor{params: workflow.Chunk{Strategy: workflow.ChunkBySentence, MaxSize: 20}}
	blob := textBlob("doc.txt", "One two. Three four. Five six. Seven!")

	out, err := p.Process(context.Background(), blob)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(out))
	}
	var joined strings.Builder
	for i, v := range out {
		chunk := v.(*data.Blob)
		if idx, ok := data.MetaInt(chunk, "chunk_index"); !ok || idx != int64(i) {
			t.Errorf("chunk %d has index %d", i, idx)
		}
		joined.Write(chunk.Data)
	}
	if !strings.Contains(joined.String(), "Seven!") {
		t.Error("chunks lost trailing sentence")
	}
}

func TestChunkOverlap(t *testing.T) {
	p := chunkProcessor{params: workflow.Chunk{Strategy: workflow.ChunkBySentence, MaxSize: 12, Overlap: 4}}
	blob := textBlob("doc.txt", "aaaa bbbb. cccc dddd. eeee ffff.")

	out, err := p.Process(context.Background(), blob)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(out))
	}
	first := string(out[0].(*data.Blob).Data)
	second := string(out[1].(*data.Blob).Data)
	if !strings.HasPrefix(second, first[len(first)-4:]) {
		t.Errorf("chunk 2 %q does not carry the tail of chunk 1 %q", second, first)
	}
}

func TestEmbeddingProcessor(t *testing.T) {
	dialer := &provider.StaticDialer{EmbedDim: 4}
	client, err := dialer.Embedding(context.Background(), connectionlessCreds())
	if err != nil {
		t.Fatalf("Embedding: %v", err)
	}
	p := embeddingProcessor{client: client, normalize: true}

	blob := textBlob("doc.txt", "some content")
	out, err := p.Process(context.Background(), blob)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 value, got %d", len(out))
	}
	embedded := out[0].(*data.Blob)
	vec, ok := embedded.Metadata["embedding"].([]float64)
	if !ok {
		t.Fatalf("no embedding metadata: %T", embedded.Metadata["embedding"])
	}
	if len(vec) != 4 {
		t.Fatalf("vector dim = %d", len(vec))
	}
	var norm float64
	for _, x := range vec {
		norm += x * x
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-9 {
		t.Errorf("vector not normalized: |v| = %v", math.Sqrt(norm))
	}
	if _, ok := blob.Metadata["embedding"]; ok {
		t.Error("input blob was mutated")
	}
}

func TestAgentEnrich(t *testing.T) {
	p := testAgent(t, agentEnrich, "a short caption")

	blob := textBlob("img.txt", "pixels")
	out, err := p.Process(context.Background(), blob)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	enriched := out[0].(*data.Blob)
	if got, _ := data.MetaString(enriched, "enrichment"); got != "a short caption" {
		t.Errorf("enrichment = %q", got)
	}
	if _, ok := blob.Metadata["enrichment"]; ok {
		t.Error("input blob was mutated")
	}
}

func TestAgentExtractJSONAnswer(t *testing.T) {
	p := testAgent(t, agentExtract, `{"invoice_number": "INV-1", "total": 42}`)

	out, err := p.Process(context.Background(), textBlob("inv.txt", "Invoice INV-1, total 42"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	rec, ok := out[0].(*data.Record)
	if !ok {
		t.Fatalf("extract produced %T, want record", out[0])
	}
	if rec.Columns["invoice_number"] != "INV-1" {
		t.Errorf("invoice_number = %v", rec.Columns["invoice_number"])
	}
	if rec.Columns["source_path"] != "inv.txt" {
		t.Errorf("source_path = %v", rec.Columns["source_path"])
	}
}

func TestAgentExtractPlainAnswer(t *testing.T) {
	p := testAgent(t, agentExtract, "not json at all")

	out, err := p.Process(context.Background(), textBlob("doc.txt", "text"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	rec := out[0].(*data.Record)
	if rec.Columns["extracted"] != "not json at all" {
		t.Errorf("extracted = %v", rec.Columns["extracted"])
	}
}

func TestAgentDerive(t *testing.T) {
	p := testAgent(t, agentDerive, "a summary")

	out, err := p.Process(context.Background(), textBlob("report.txt", "long report"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	derived, ok := out[0].(*data.Blob)
	if !ok {
		t.Fatalf("derive produced %T, want blob", out[0])
	}
	if string(derived.Data) != "a summary" {
		t.Errorf("derived data = %q", derived.Data)
	}
	if derived.Path != "report.txt.derived.txt" {
		t.Errorf("derived path = %q", derived.Path)
	}
	if from, _ := data.MetaString(derived, "derived_from"); from != "report.txt" {
		t.Errorf("derived_from = %q", from)
	}
}

func testAgent(t *testing.T, kind agentKind, answer string) agentProcessor {
	t.Helper()
	dialer := &provider.StaticDialer{
		CompleteFunc: func(ctx context.Context, req provider.CompletionRequest) (string, error) {
			return answer, nil
		},
	}
	client, err := dialer.Completion(context.Background(), connectionlessCreds())
	if err != nil {
		t.Fatalf("Completion: %v", err)
	}
	return agentProcessor{agents: provider.NewAgents(client), kind: kind}
}
