package otel_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/millstone-labs/millflow/connection"
	"github.com/millstone-labs/millflow/engine"
	millotel "github.com/millstone-labs/millflow/otel"
	"github.com/millstone-labs/millflow/provider"
	"github.com/millstone-labs/millflow/workflow"
)

func TestSetupRecordsEngineSpans(t *testing.T) {
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()
	shutdown, err := millotel.Setup(ctx, "millflow-test", "0.0.0",
		sdktrace.WithSyncer(exporter))
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer shutdown(ctx)

	credID := uuid.New()
	reg := connection.NewRegistry()
	reg.Register(credID, &connection.DALConnection{
		Backend:     connection.BackendS3,
		Credentials: connection.S3Credentials{Region: "r", AccessKeyID: "a", SecretAccessKey: "s"},
		Context:     connection.ObjectContext{},
	})

	def := workflow.NewDefinition()
	in := def.AddNode(workflow.ProviderInput{
		Provider: workflow.S3Params{Credentials: credID, Bucket: "in"},
	})
	out := def.AddNode(workflow.ProviderOutput{
		Provider: workflow.S3Params{Credentials: credID, Bucket: "out"},
	})
	def.Connect(in, out)

	compiler := engine.NewCompiler(provider.NewMemConnector(), &provider.StaticDialer{}, nil)
	g, err := compiler.Compile(ctx, def, reg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer g.Close()
	if _, err := engine.NewExecutor(nil).Run(ctx, g); err != nil {
		t.Fatalf("Run: %v", err)
	}

	spans := exporter.GetSpans()
	names := make(map[string]bool, len(spans))
	for _, s := range spans {
		names[s.Name] = true
	}
	for _, want := range []string{"workflow.compile", "workflow.compile_nodes", "workflow.run"} {
		if !names[want] {
			t.Errorf("missing span %q in %v", want, names)
		}
	}
}
