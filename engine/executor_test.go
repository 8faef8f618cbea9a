package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/millstone-labs/millflow/connection"
	"github.com/millstone-labs/millflow/data"
	"github.com/millstone-labs/millflow/provider"
	"github.com/millstone-labs/millflow/workflow"
)

func TestRunSwitchRouting(t *testing.T) {
	ctx := context.Background()
	compiler, connector := newTestCompiler()

	report := typedBlob("reports/report.PDF", "application/pdf")
	image := typedBlob("photos/cat.jpg", "image/jpeg")
	notes := typedBlob("notes.txt", "text/plain")
	connector.AddSource("in", report, image, notes)

	dalID := uuid.New()
	def := workflow.NewDefinition()
	in := def.AddNode(s3Input(dalID, "in"))
	sw := def.AddNode(workflow.Switch{
		Condition: workflow.FileExtension{Extensions: []string{"pdf", "docx"}},
		MatchPort: "documents",
		ElsePort:  "rest",
	})
	docs := def.AddNode(s3Output(dalID, "documents", 0))
	rest := def.AddNode(s3Output(dalID, "rest", 0))
	def.Connect(in, sw)
	def.AddEdge(workflow.NewEdge(sw, docs).WithPorts("documents", ""))
	def.AddEdge(workflow.NewEdge(sw, rest).WithPorts("rest", ""))

	g, err := compiler.Compile(ctx, def, testRegistry(dalID))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer g.Close()

	stats, err := NewExecutor(nil).Run(ctx, g)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Read != 3 || stats.Written != 3 {
		t.Errorf("stats read=%d written=%d, want 3/3", stats.Read, stats.Written)
	}

	gotDocs := connector.Sink("documents").Values()
	if len(gotDocs) != 1 || gotDocs[0].(*data.Blob).Path != "reports/report.PDF" {
		t.Errorf("documents sink: %v", gotDocs)
	}
	gotRest := connector.Sink("rest").Values()
	if len(gotRest) != 2 {
		t.Errorf("rest sink has %d values, want 2", len(gotRest))
	}
}

func TestRunPipeline(t *testing.T) {
	ctx := context.Background()
	compiler, connector := newTestCompiler()

	doc := textBlob("doc.txt", "First paragraph of prose.\n\nSecond paragraph, somewhat longer.")
	connector.AddSource("in", doc)

	dalID, aiID := uuid.New(), uuid.New()
	reg := testRegistry(dalID)
	reg.Register(aiID, aiConnection(connection.ServiceEmbedding))

	def := workflow.NewDefinition()
	in := def.AddNode(s3Input(dalID, "in"))
	part := def.AddNode(workflow.Transform{Transformer: workflow.Partition{}})
	chunk := def.AddNode(workflow.Transform{Transformer: workflow.Chunk{MaxSize: 200}})
	embed := def.AddNode(workflow.Transform{Transformer: workflow.Embedding{
		Provider: workflow.AIProviderParams{Credentials: aiID},
	}})
	out := def.AddNode(s3Output(dalID, "out", 0))
	def.Connect(in, part)
	def.Connect(part, chunk)
	def.Connect(chunk, embed)
	def.Connect(embed, out)

	g, err := compiler.Compile(ctx, def, reg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer g.Close()

	stats, err := NewExecutor(nil).Run(ctx, g)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Read != 1 {
		t.Errorf("read %d values, want 1", stats.Read)
	}

	values := connector.Sink("out").Values()
	if len(values) != 2 {
		t.Fatalf("expected 2 embedded chunks, got %d", len(values))
	}
	for i, v := range values {
		blob := v.(*data.Blob)
		if _, ok := blob.Metadata["embedding"]; !ok {
			t.Errorf("chunk %d has no embedding", i)
		}
	}
}

func TestRunFanOutSharesValues(t *testing.T) {
	ctx := context.Background()
	compiler, connector := newTestCompiler()
	connector.AddSource("in", textBlob("a.txt", "x"), textBlob("b.txt", "y"))

	dalID := uuid.New()
	def := workflow.NewDefinition()
	in := def.AddNode(s3Input(dalID, "in"))
	out1 := def.AddNode(s3Output(dalID, "out1", 0))
	out2 := def.AddNode(s3Output(dalID, "out2", 0))
	def.Connect(in, out1)
	def.Connect(in, out2)

	g, err := compiler.Compile(ctx, def, testRegistry(dalID))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer g.Close()

	stats, err := NewExecutor(nil).Run(ctx, g)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Written != 4 {
		t.Errorf("written %d, want 4", stats.Written)
	}
	if n := len(connector.Sink("out1").Values()); n != 2 {
		t.Errorf("out1 has %d values", n)
	}
	if n := len(connector.Sink("out2").Values()); n != 2 {
		t.Errorf("out2 has %d values", n)
	}
}

func TestRunBatchSize(t *testing.T) {
	ctx := context.Background()
	compiler, connector := newTestCompiler()
	for i := range 5 {
		connector.AddSource("in", textBlob("f", string(rune('a'+i))))
	}

	dalID := uuid.New()
	def := workflow.NewDefinition()
	in := def.AddNode(s3Input(dalID, "in"))
	out := def.AddNode(s3Output(dalID, "out", 2))
	def.Connect(in, out)

	g, err := compiler.Compile(ctx, def, testRegistry(dalID))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer g.Close()

	if _, err := NewExecutor(nil).Run(ctx, g); err != nil {
		t.Fatalf("Run: %v", err)
	}

	batches := connector.Sink("out").Batches()
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	for i, sizes := range []int{2, 2, 1} {
		if len(batches[i]) != sizes {
			t.Errorf("batch %d has %d values, want %d", i, len(batches[i]), sizes)
		}
	}
}

func TestRunCancelled(t *testing.T) {
	compiler, connector := newTestCompiler()
	connector.AddSource("in", textBlob("a.txt", "x"))

	dalID := uuid.New()
	def := workflow.NewDefinition()
	in := def.AddNode(s3Input(dalID, "in"))
	out := def.AddNode(s3Output(dalID, "out", 0))
	def.Connect(in, out)

	g, err := compiler.Compile(context.Background(), def, testRegistry(dalID))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer g.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewExecutor(nil).Run(ctx, g); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestRunAgentPipeline(t *testing.T) {
	ctx := context.Background()
	connector := provider.NewMemConnector()
	connector.AddSource("in", textBlob("invoice.txt", "Invoice INV-7, total 99"))
	dialer := &provider.StaticDialer{
		CompleteFunc: func(ctx context.Context, req provider.CompletionRequest) (string, error) {
			return `{"invoice_number": "INV-7"}`, nil
		},
	}
	compiler := NewCompiler(connector, dialer, nil)

	dalID, aiID := uuid.New(), uuid.New()
	reg := testRegistry(dalID)
	reg.Register(aiID, aiConnection(connection.ServiceCompletion))

	def := workflow.NewDefinition()
	in := def.AddNode(s3Input(dalID, "in"))
	extract := def.AddNode(workflow.Transform{Transformer: workflow.Extract{
		Provider: workflow.AIProviderParams{Credentials: aiID},
		Task:     "fields",
	}})
	out := def.AddNode(s3Output(dalID, "out", 0))
	def.Connect(in, extract)
	def.Connect(extract, out)

	g, err := compiler.Compile(ctx, def, reg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer g.Close()

	if _, err := NewExecutor(nil).Run(ctx, g); err != nil {
		t.Fatalf("Run: %v", err)
	}
	values := connector.Sink("out").Values()
	if len(values) != 1 {
		t.Fatalf("expected 1 record, got %d", len(values))
	}
	rec, ok := values[0].(*data.Record)
	if !ok {
		t.Fatalf("got %T, want record", values[0])
	}
	if rec.Columns["invoice_number"] != "INV-7" {
		t.Errorf("invoice_number = %v", rec.Columns["invoice_number"])
	}
}
