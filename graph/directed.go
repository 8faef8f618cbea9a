// Package graph provides the indexed directed-graph container used both for
// author-facing workflow graphs and for compiled execution graphs.
package graph

import (
	"fmt"

	"github.com/millstone-labs/millflow/workflow"
)

// Edge is a directed connection between two nodes with port metadata.
type Edge struct {
	From workflow.NodeID
	To   workflow.NodeID
	Data workflow.EdgeData
}

type slot[N any] struct {
	id      workflow.NodeID
	payload N
	present bool
}

// Directed is a directed graph over payloads of type N, stored in an
// index-stable arena with a dense NodeID index. Removing a node leaves a
// tombstone so outstanding indices stay valid.
//
// The zero value is not usable; call NewDirected.
type Directed[N any] struct {
	slots []slot[N]
	index map[workflow.NodeID]int
	edges []Edge
}

// NewDirected returns an empty graph.
func NewDirected[N any]() *Directed[N] {
	return &Directed[N]{index: make(map[workflow.NodeID]int)}
}

// Len returns the number of live nodes.
func (g *Directed[N]) Len() int {
	return len(g.index)
}

// AddNode inserts a payload under a fresh id and returns the id.
func (g *Directed[N]) AddNode(payload N) workflow.NodeID {
	id := workflow.NewNodeID()
	g.insert(id, payload)
	return id
}

// AddNodeWithID inserts a payload under the given id. Inserting an existing
// id replaces that node's payload in place.
func (g *Directed[N]) AddNodeWithID(id workflow.NodeID, payload N) {
	g.insert(id, payload)
}

func (g *Directed[N]) insert(id workflow.NodeID, payload N) {
	if i, ok := g.index[id]; ok {
		g.slots[i].payload = payload
		return
	}
	g.slots = append(g.slots, slot[N]{id: id, payload: payload, present: true})
	g.index[id] = len(g.slots) - 1
}

// RemoveNode removes a node and every incident edge. It reports whether the
// node existed.
func (g *Directed[N]) RemoveNode(id workflow.NodeID) bool {
	i, ok := g.index[id]
	if !ok {
		return false
	}
	var zero N
	g.slots[i].present = false
	g.slots[i].payload = zero
	delete(g.index, id)

	kept := g.edges[:0]
	for _, e := range g.edges {
		if e.From != id && e.To != id {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	return true
}

// Node returns the payload stored under id.
func (g *Directed[N]) Node(id workflow.NodeID) (N, bool) {
	if i, ok := g.index[id]; ok {
		return g.slots[i].payload, true
	}
	var zero N
	return zero, false
}

// SetNode replaces the payload stored under id. It reports whether the node
// existed.
func (g *Directed[N]) SetNode(id workflow.NodeID, payload N) bool {
	i, ok := g.index[id]
	if !ok {
		return false
	}
	g.slots[i].payload = payload
	return true
}

// NodeIDs returns all live node ids in insertion order.
func (g *Directed[N]) NodeIDs() []workflow.NodeID {
	ids := make([]workflow.NodeID, 0, len(g.index))
	for _, s := range g.slots {
		if s.present {
			ids = append(ids, s.id)
		}
	}
	return ids
}

// AddEdge inserts an edge. Both endpoints must exist.
func (g *Directed[N]) AddEdge(from, to workflow.NodeID, data workflow.EdgeData) error {
	if _, ok := g.index[from]; !ok {
		return fmt.Errorf("%w: edge references unknown node %s", workflow.ErrInvalidDefinition, from)
	}
	if _, ok := g.index[to]; !ok {
		return fmt.Errorf("%w: edge references unknown node %s", workflow.ErrInvalidDefinition, to)
	}
	g.edges = append(g.edges, Edge{From: from, To: to, Data: data})
	return nil
}

// Connect inserts a portless edge.
func (g *Directed[N]) Connect(from, to workflow.NodeID) error {
	return g.AddEdge(from, to, workflow.EdgeData{})
}

// Edges returns all edges in insertion order.
func (g *Directed[N]) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// OutgoingEdges returns the edges originating at id.
func (g *Directed[N]) OutgoingEdges(id workflow.NodeID) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}

// IncomingEdges returns the edges terminating at id.
func (g *Directed[N]) IncomingEdges(id workflow.NodeID) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.To == id {
			out = append(out, e)
		}
	}
	return out
}

// TopologicalOrder returns all node ids in a valid execution order using
// Kahn's algorithm. It fails if the graph contains a directed cycle.
func (g *Directed[N]) TopologicalOrder() ([]workflow.NodeID, error) {
	inDegree := make(map[workflow.NodeID]int, len(g.index))
	successors := make(map[workflow.NodeID][]workflow.NodeID, len(g.index))
	for id := range g.index {
		inDegree[id] = 0
	}
	for _, e := range g.edges {
		inDegree[e.To]++
		successors[e.From] = append(successors[e.From], e.To)
	}

	// Seed with zero in-degree nodes in insertion order so the result is
	// deterministic for a given construction sequence.
	var queue []workflow.NodeID
	for _, id := range g.NodeIDs() {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]workflow.NodeID, 0, len(g.index))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, succ := range successors[current] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	if len(order) != len(g.index) {
		return nil, fmt.Errorf("%w: graph contains a cycle", workflow.ErrInvalidDefinition)
	}
	return order, nil
}
