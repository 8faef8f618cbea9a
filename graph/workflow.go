package graph

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/millstone-labs/millflow/workflow"
)

// CredentialChecker reports whether a credential id is known. Satisfied by
// connection.Registry.
type CredentialChecker interface {
	Contains(id uuid.UUID) bool
}

// Workflow is the author-facing mutable workflow graph: definition nodes in
// an indexed digraph, plus workflow metadata.
type Workflow struct {
	*Directed[workflow.Node]

	Metadata workflow.Metadata
}

// NewWorkflow returns an empty workflow graph.
func NewWorkflow() *Workflow {
	return &Workflow{Directed: NewDirected[workflow.Node]()}
}

// FromDefinition builds a workflow graph from a serialized definition. Edge
// endpoints must reference nodes present in the definition.
func FromDefinition(def *workflow.Definition) (*Workflow, error) {
	w := NewWorkflow()
	w.Metadata = def.Metadata
	for id, node := range def.Nodes {
		w.AddNodeWithID(id, node)
	}
	for _, e := range def.Edges {
		if err := w.AddEdge(e.From, e.To, workflow.EdgeData{FromPort: e.FromPort, ToPort: e.ToPort}); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// InputNodes returns the ids of nodes that act as graph inputs: nodes tagged
// as inputs, or untagged nodes with no incoming edges. The fallback exists
// because definitions may rely on topology alone.
func (w *Workflow) InputNodes() []workflow.NodeID {
	var ids []workflow.NodeID
	for _, id := range w.NodeIDs() {
		node, _ := w.Node(id)
		if node.Kind == nil {
			continue
		}
		if workflow.IsInput(node.Kind) {
			ids = append(ids, id)
			continue
		}
		if !workflow.IsOutput(node.Kind) && len(w.IncomingEdges(id)) == 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// OutputNodes returns the ids of nodes that act as graph outputs: nodes
// tagged as outputs, or untagged nodes with no outgoing edges.
func (w *Workflow) OutputNodes() []workflow.NodeID {
	var ids []workflow.NodeID
	for _, id := range w.NodeIDs() {
		node, _ := w.Node(id)
		if node.Kind == nil {
			continue
		}
		if workflow.IsOutput(node.Kind) {
			ids = append(ids, id)
			continue
		}
		if !workflow.IsInput(node.Kind) && len(w.OutgoingEdges(id)) == 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// CredentialIDs collects every credential referenced anywhere in the graph,
// deduplicated, in node insertion order.
func (w *Workflow) CredentialIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID

	add := func(id uuid.UUID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	for _, nodeID := range w.NodeIDs() {
		node, _ := w.Node(nodeID)
		for _, id := range nodeCredentials(node.Kind) {
			add(id)
		}
	}
	return ids
}

// Validate enforces the structural rules, in order: non-empty graph, at
// least one input, at least one output, acyclicity, per-node edge arity, and
// credential existence against the supplied registry. Every violation names
// the offending node and wraps workflow.ErrInvalidDefinition.
func (w *Workflow) Validate(creds CredentialChecker) error {
	if w.Len() == 0 {
		return fmt.Errorf("%w: graph is empty", workflow.ErrInvalidDefinition)
	}
	if len(w.InputNodes()) == 0 {
		return fmt.Errorf("%w: graph has no input node", workflow.ErrInvalidDefinition)
	}
	if len(w.OutputNodes()) == 0 {
		return fmt.Errorf("%w: graph has no output node", workflow.ErrInvalidDefinition)
	}
	if _, err := w.TopologicalOrder(); err != nil {
		return err
	}
	if err := w.validateArity(); err != nil {
		return err
	}
	return w.validateCredentials(creds)
}

func (w *Workflow) validateArity() error {
	for _, id := range w.NodeIDs() {
		node, _ := w.Node(id)
		if node.Kind == nil {
			return fmt.Errorf("%w: node %s has no kind", workflow.ErrInvalidDefinition, id)
		}

		incoming := len(w.IncomingEdges(id))
		outgoing := len(w.OutgoingEdges(id))

		switch {
		case workflow.IsInput(node.Kind):
			if incoming > 0 {
				return fmt.Errorf("%w: input node %s has incoming edges", workflow.ErrInvalidDefinition, id)
			}
		case workflow.IsOutput(node.Kind):
			if outgoing > 0 {
				return fmt.Errorf("%w: output node %s has outgoing edges", workflow.ErrInvalidDefinition, id)
			}
		case workflow.IsTransform(node.Kind):
			if incoming == 0 {
				return fmt.Errorf("%w: transform node %s has no producer", workflow.ErrInvalidDefinition, id)
			}
			if outgoing == 0 {
				return fmt.Errorf("%w: transform node %s has no consumer", workflow.ErrInvalidDefinition, id)
			}
		}
	}
	return nil
}

func (w *Workflow) validateCredentials(creds CredentialChecker) error {
	if creds == nil {
		return nil
	}
	for _, nodeID := range w.NodeIDs() {
		node, _ := w.Node(nodeID)
		for _, credID := range nodeCredentials(node.Kind) {
			if !creds.Contains(credID) {
				return fmt.Errorf("%w: node %s references unknown credential %s",
					workflow.ErrInvalidDefinition, nodeID, credID)
			}
		}
	}
	return nil
}

// nodeCredentials returns the credentials a single node references. The
// switch must cover every current and future kind that can carry a
// credential; a kind missed here silently escapes registry validation.
func nodeCredentials(k workflow.Kind) []uuid.UUID {
	switch kind := k.(type) {
	case workflow.ProviderInput:
		if kind.Provider != nil {
			return []uuid.UUID{kind.Provider.CredentialsID()}
		}
	case workflow.ProviderOutput:
		if kind.Provider != nil {
			return []uuid.UUID{kind.Provider.CredentialsID()}
		}
	case workflow.Transform:
		if kind.Transformer != nil {
			if id, ok := kind.Transformer.CredentialsID(); ok {
				return []uuid.UUID{id}
			}
		}
	case workflow.CacheInput, workflow.CacheOutput, workflow.Switch:
		// No credential reference.
	}
	return nil
}
