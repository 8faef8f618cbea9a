package graph

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/millstone-labs/millflow/workflow"
)

type credSet map[uuid.UUID]struct{}

func (s credSet) Contains(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

func inputKind(creds uuid.UUID) workflow.Kind {
	return workflow.ProviderInput{Provider: workflow.S3Params{Credentials: creds, Bucket: "b"}}
}

func outputKind(creds uuid.UUID) workflow.Kind {
	return workflow.ProviderOutput{Provider: workflow.PostgresParams{Credentials: creds, Table: "t"}}
}

func partitionKind() workflow.Kind {
	return workflow.Transform{Transformer: workflow.Partition{}}
}

func embeddingKind(creds uuid.UUID) workflow.Kind {
	return workflow.Transform{Transformer: workflow.Embedding{
		Provider: workflow.AIProviderParams{Credentials: creds},
	}}
}

// linearWorkflow builds input -> partition -> output with the same
// credential on both provider nodes.
func linearWorkflow(t *testing.T, creds uuid.UUID) (*Workflow, [3]workflow.NodeID) {
	t.Helper()
	w := NewWorkflow()
	in := w.AddNode(workflow.NewNode(inputKind(creds)))
	mid := w.AddNode(workflow.NewNode(partitionKind()))
	out := w.AddNode(workflow.NewNode(outputKind(creds)))
	for _, e := range [][2]workflow.NodeID{{in, mid}, {mid, out}} {
		if err := w.Connect(e[0], e[1]); err != nil {
			t.Fatal(err)
		}
	}
	return w, [3]workflow.NodeID{in, mid, out}
}

func TestFromDefinition(t *testing.T) {
	creds := uuid.New()
	def := workflow.NewDefinition()
	in := def.AddNode(inputKind(creds))
	out := def.AddNode(outputKind(creds))
	def.AddEdge(workflow.NewEdge(in, out).WithPorts("matched", ""))

	w, err := FromDefinition(def)
	if err != nil {
		t.Fatalf("FromDefinition: %v", err)
	}
	if w.Len() != 2 {
		t.Errorf("Len = %d, want 2", w.Len())
	}
	edges := w.Edges()
	if len(edges) != 1 || edges[0].Data.FromPort != "matched" {
		t.Errorf("edges = %+v", edges)
	}
}

func TestFromDefinitionDanglingEdge(t *testing.T) {
	creds := uuid.New()
	def := workflow.NewDefinition()
	in := def.AddNode(inputKind(creds))
	def.Connect(in, workflow.NewNodeID())

	_, err := FromDefinition(def)
	if !errors.Is(err, workflow.ErrInvalidDefinition) {
		t.Errorf("got %v, want ErrInvalidDefinition", err)
	}
}

func TestInputOutputDualRule(t *testing.T) {
	// Tagged nodes count regardless of topology; untagged nodes fall back
	// to degree.
	w := NewWorkflow()
	creds := uuid.New()
	in := w.AddNode(workflow.NewNode(inputKind(creds)))
	sw := w.AddNode(workflow.NewNode(workflow.Switch{
		Condition: workflow.ContentType{Category: workflow.CategoryText},
		MatchPort: "text", ElsePort: "rest",
	}))
	if err := w.Connect(in, sw); err != nil {
		t.Fatal(err)
	}

	inputs := w.InputNodes()
	if len(inputs) != 1 || inputs[0] != in {
		t.Errorf("InputNodes = %v, want [%v]", inputs, in)
	}

	// The switch has no outgoing edges, so the degree fallback makes it an
	// output even though it is not tagged as one.
	outputs := w.OutputNodes()
	if len(outputs) != 1 || outputs[0] != sw {
		t.Errorf("OutputNodes = %v, want [%v]", outputs, sw)
	}
}

func TestValidateOK(t *testing.T) {
	creds := uuid.New()
	w, _ := linearWorkflow(t, creds)
	if err := w.Validate(credSet{creds: {}}); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateEmptyGraph(t *testing.T) {
	err := NewWorkflow().Validate(credSet{})
	if !errors.Is(err, workflow.ErrInvalidDefinition) {
		t.Errorf("got %v, want ErrInvalidDefinition", err)
	}
}

func TestValidateMissingRoles(t *testing.T) {
	creds := uuid.New()

	onlyOutput := NewWorkflow()
	onlyOutput.AddNode(workflow.NewNode(outputKind(creds)))
	if err := onlyOutput.Validate(credSet{creds: {}}); err == nil ||
		!strings.Contains(err.Error(), "no input") {
		t.Errorf("output-only graph: %v", err)
	}

	onlyInput := NewWorkflow()
	onlyInput.AddNode(workflow.NewNode(inputKind(creds)))
	if err := onlyInput.Validate(credSet{creds: {}}); err == nil ||
		!strings.Contains(err.Error(), "no output") {
		t.Errorf("input-only graph: %v", err)
	}
}

func TestValidateArity(t *testing.T) {
	creds := uuid.New()

	// Input node with an incoming edge (no cycle involved).
	w, ids := linearWorkflow(t, creds)
	in2 := w.AddNode(workflow.NewNode(inputKind(creds)))
	if err := w.Connect(ids[0], in2); err != nil {
		t.Fatal(err)
	}
	err := w.Validate(credSet{creds: {}})
	if err == nil || !strings.Contains(err.Error(), "incoming") {
		t.Errorf("input with incoming edge: %v", err)
	}

	// Transformer with no consumer.
	w2 := NewWorkflow()
	in := w2.AddNode(workflow.NewNode(inputKind(creds)))
	mid := w2.AddNode(workflow.NewNode(partitionKind()))
	out := w2.AddNode(workflow.NewNode(outputKind(creds)))
	if err := w2.Connect(in, mid); err != nil {
		t.Fatal(err)
	}
	if err := w2.Connect(in, out); err != nil {
		t.Fatal(err)
	}
	err = w2.Validate(credSet{creds: {}})
	if err == nil || !strings.Contains(err.Error(), mid.String()) {
		t.Errorf("dangling transformer not named: %v", err)
	}
}

func TestValidateCycle(t *testing.T) {
	creds := uuid.New()
	w, ids := linearWorkflow(t, creds)
	if err := w.Connect(ids[2], ids[1]); err != nil {
		t.Fatal(err)
	}
	err := w.Validate(credSet{creds: {}})
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("got %v, want cycle error", err)
	}
}

func TestValidateUnknownCredential(t *testing.T) {
	known := uuid.New()
	unknown := uuid.New()

	w := NewWorkflow()
	in := w.AddNode(workflow.NewNode(inputKind(known)))
	mid := w.AddNode(workflow.NewNode(embeddingKind(unknown)))
	out := w.AddNode(workflow.NewNode(outputKind(known)))
	for _, e := range [][2]workflow.NodeID{{in, mid}, {mid, out}} {
		if err := w.Connect(e[0], e[1]); err != nil {
			t.Fatal(err)
		}
	}

	err := w.Validate(credSet{known: {}})
	if !errors.Is(err, workflow.ErrInvalidDefinition) {
		t.Fatalf("got %v, want ErrInvalidDefinition", err)
	}
	if !strings.Contains(err.Error(), unknown.String()) {
		t.Errorf("error does not name missing credential: %v", err)
	}
	if !strings.Contains(err.Error(), mid.String()) {
		t.Errorf("error does not name offending node: %v", err)
	}
}

func TestCredentialIDs(t *testing.T) {
	inputCreds := uuid.New()
	aiCreds := uuid.New()

	w := NewWorkflow()
	in := w.AddNode(workflow.NewNode(inputKind(inputCreds)))
	mid := w.AddNode(workflow.NewNode(embeddingKind(aiCreds)))
	// Same credential reused; must be reported once.
	out := w.AddNode(workflow.NewNode(outputKind(inputCreds)))
	cacheOut := w.AddNode(workflow.NewNode(workflow.CacheOutput{Slot: "s"}))
	for _, e := range [][2]workflow.NodeID{{in, mid}, {mid, out}, {mid, cacheOut}} {
		if err := w.Connect(e[0], e[1]); err != nil {
			t.Fatal(err)
		}
	}

	got := w.CredentialIDs()
	if len(got) != 2 {
		t.Fatalf("CredentialIDs = %v, want 2 ids", got)
	}
	seen := map[uuid.UUID]bool{}
	for _, id := range got {
		seen[id] = true
	}
	if !seen[inputCreds] || !seen[aiCreds] {
		t.Errorf("CredentialIDs = %v, want %v and %v", got, inputCreds, aiCreds)
	}
}
