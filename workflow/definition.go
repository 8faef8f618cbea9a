package workflow

// Edge is untyped data flow between two nodes. Port names are optional; an
// empty string means no port annotation.
type Edge struct {
	From     NodeID `json:"from"`
	To       NodeID `json:"to"`
	FromPort string `json:"from_port,omitempty"`
	ToPort   string `json:"to_port,omitempty"`
}

// NewEdge returns a portless edge.
func NewEdge(from, to NodeID) Edge {
	return Edge{From: from, To: to}
}

// WithPorts returns a copy of the edge annotated with port names.
func (e Edge) WithPorts(fromPort, toPort string) Edge {
	e.FromPort = fromPort
	e.ToPort = toPort
	return e
}

// EdgeData is the port metadata carried on a compiled graph edge.
type EdgeData struct {
	FromPort string `json:"from_port,omitempty"`
	ToPort   string `json:"to_port,omitempty"`
}

// Metadata describes a workflow for humans and tooling.
type Metadata struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
}

// Definition is the serializable representation of a workflow graph. It is
// plain data: the compiler enforces its invariants (at least one input and
// output, no dangling edges, acyclic after cache-slot resolution).
type Definition struct {
	Nodes    map[NodeID]Node `json:"nodes"`
	Edges    []Edge          `json:"edges"`
	Metadata Metadata        `json:"metadata,omitzero"`
}

// NewDefinition returns an empty definition.
func NewDefinition() *Definition {
	return &Definition{Nodes: make(map[NodeID]Node)}
}

// AddNode inserts a node under a fresh id and returns the id.
func (d *Definition) AddNode(k Kind) NodeID {
	id := NewNodeID()
	d.AddNodeWithID(id, k)
	return id
}

// AddNodeWithID inserts a node under the given id, replacing any existing
// node with that id.
func (d *Definition) AddNodeWithID(id NodeID, k Kind) *Definition {
	if d.Nodes == nil {
		d.Nodes = make(map[NodeID]Node)
	}
	d.Nodes[id] = NewNode(k)
	return d
}

// AddEdge appends an edge.
func (d *Definition) AddEdge(e Edge) *Definition {
	d.Edges = append(d.Edges, e)
	return d
}

// Connect appends a portless edge between two nodes.
func (d *Definition) Connect(from, to NodeID) *Definition {
	return d.AddEdge(NewEdge(from, to))
}

// InputNodes returns the ids of all input nodes.
func (d *Definition) InputNodes() []NodeID {
	return d.nodesWhere(IsInput)
}

// OutputNodes returns the ids of all output nodes.
func (d *Definition) OutputNodes() []NodeID {
	return d.nodesWhere(IsOutput)
}

// TransformNodes returns the ids of all transformer nodes.
func (d *Definition) TransformNodes() []NodeID {
	return d.nodesWhere(IsTransform)
}

// SwitchNodes returns the ids of all switch nodes.
func (d *Definition) SwitchNodes() []NodeID {
	return d.nodesWhere(IsSwitch)
}

func (d *Definition) nodesWhere(pred func(Kind) bool) []NodeID {
	var ids []NodeID
	for id, node := range d.Nodes {
		if node.Kind != nil && pred(node.Kind) {
			ids = append(ids, id)
		}
	}
	return ids
}
