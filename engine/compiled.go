package engine

import (
	"errors"

	"github.com/millstone-labs/millflow/graph"
	"github.com/millstone-labs/millflow/provider"
	"github.com/millstone-labs/millflow/workflow"
)

// CompiledNode is one executable node of a compiled graph. The set of
// implementations is closed: InputNode, OutputNode, TransformNode,
// SwitchNode. Cache nodes never survive compilation.
type CompiledNode interface {
	isCompiledNode()

	// NodeName returns the display name from the definition, if any.
	NodeName() string
}

// InputNode streams values from an external provider.
type InputNode struct {
	Name   string
	Reader provider.InputReader
}

// OutputNode writes values to an external provider in batches.
type OutputNode struct {
	Name   string
	Writer *BatchWriter
}

// TransformNode applies a processor to each value.
type TransformNode struct {
	Name      string
	Processor Processor
}

// SwitchNode routes each value to one of two ports.
type SwitchNode struct {
	Name   string
	Switch *CompiledSwitch
}

func (*InputNode) isCompiledNode()     {}
func (*OutputNode) isCompiledNode()    {}
func (*TransformNode) isCompiledNode() {}
func (*SwitchNode) isCompiledNode()    {}

func (n *InputNode) NodeName() string     { return n.Name }
func (n *OutputNode) NodeName() string    { return n.Name }
func (n *TransformNode) NodeName() string { return n.Name }
func (n *SwitchNode) NodeName() string    { return n.Name }

// CompiledGraph is a validated, executable workflow: live readers and
// writers bound to nodes, arranged in an acyclic graph with a fixed
// topological order.
type CompiledGraph struct {
	nodes *graph.Directed[CompiledNode]
	order []workflow.NodeID
	meta  workflow.Metadata
}

// Metadata returns the definition's descriptive metadata.
func (g *CompiledGraph) Metadata() workflow.Metadata {
	return g.meta
}

// Len returns the number of nodes.
func (g *CompiledGraph) Len() int {
	return g.nodes.Len()
}

// Order returns node ids in a fixed topological order.
func (g *CompiledGraph) Order() []workflow.NodeID {
	return g.order
}

// Node returns the compiled node with the given id.
func (g *CompiledGraph) Node(id workflow.NodeID) (CompiledNode, bool) {
	return g.nodes.Node(id)
}

// OutgoingEdges returns the edges leaving a node.
func (g *CompiledGraph) OutgoingEdges(id workflow.NodeID) []graph.Edge {
	return g.nodes.OutgoingEdges(id)
}

// Edges returns all edges.
func (g *CompiledGraph) Edges() []graph.Edge {
	return g.nodes.Edges()
}

// Close releases every reader and writer the graph holds. All nodes are
// closed even when some fail; the errors are joined.
func (g *CompiledGraph) Close() error {
	var errs []error
	for _, id := range g.order {
		node, ok := g.nodes.Node(id)
		if !ok {
			continue
		}
		switch n := node.(type) {
		case *InputNode:
			if err := n.Reader.Close(); err != nil {
				errs = append(errs, err)
			}
		case *OutputNode:
			if err := n.Writer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
