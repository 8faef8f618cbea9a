// Package engine compiles workflow definitions into executable graphs and
// runs them. Compilation proceeds in four phases: structural validation,
// cache-slot resolution, per-node compilation against live credentials, and
// graph assembly with a cycle check.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/millstone-labs/millflow/connection"
	"github.com/millstone-labs/millflow/graph"
	"github.com/millstone-labs/millflow/provider"
	"github.com/millstone-labs/millflow/workflow"
)

const tracerName = "millflow/engine"

// Compiler turns definitions into compiled graphs. It opens provider readers
// and writers and dials AI clients as it compiles, so a successful Compile
// returns a graph that is ready to execute.
type Compiler struct {
	connector provider.Connector
	dialer    provider.Dialer
	log       *slog.Logger
	tracer    trace.Tracer
}

// NewCompiler builds a compiler over the given provider connector and AI
// dialer. A nil logger falls back to slog.Default.
func NewCompiler(connector provider.Connector, dialer provider.Dialer, log *slog.Logger) *Compiler {
	if log == nil {
		log = slog.Default()
	}
	return &Compiler{
		connector: connector,
		dialer:    dialer,
		log:       log.With("component", "compiler"),
		tracer:    otel.Tracer(tracerName),
	}
}

// Compile validates def, resolves its cache slots, binds every node to its
// credentials and collaborators, and returns the executable graph. On any
// failure every reader and writer opened so far is closed before returning.
func (c *Compiler) Compile(ctx context.Context, def *workflow.Definition, creds *connection.Registry) (*CompiledGraph, error) {
	ctx, span := c.tracer.Start(ctx, "workflow.compile", trace.WithAttributes(
		attribute.Int("workflow.nodes", len(def.Nodes)),
		attribute.Int("workflow.edges", len(def.Edges)),
	))
	defer span.End()

	if err := validateStructure(def); err != nil {
		span.RecordError(err)
		return nil, err
	}

	edges := resolveCacheEdges(def)
	span.AddEvent("cache slots resolved", trace.WithAttributes(
		attribute.Int("workflow.resolved_edges", len(edges)),
	))

	nodes, err := c.compileNodes(ctx, def, creds)
	if err != nil {
		span.RecordError(err)
		closeNodes(nodes)
		return nil, err
	}

	compiled, err := buildGraph(def, nodes, edges)
	if err != nil {
		span.RecordError(err)
		closeNodes(nodes)
		return nil, err
	}

	c.log.Info("compiled workflow",
		"name", def.Metadata.Name,
		"nodes", compiled.Len(),
		"edges", len(edges))
	return compiled, nil
}

// validateStructure checks the definition's shape before anything is opened:
// every edge endpoint resolves, and the graph has at least one input and one
// output node.
func validateStructure(def *workflow.Definition) error {
	for id, node := range def.Nodes {
		if node.Kind == nil {
			return fmt.Errorf("%w: node %s has no kind", workflow.ErrInvalidDefinition, id)
		}
	}
	for _, e := range def.Edges {
		if _, ok := def.Nodes[e.From]; !ok {
			return fmt.Errorf("%w: edge references unknown source node %s", workflow.ErrInvalidDefinition, e.From)
		}
		if _, ok := def.Nodes[e.To]; !ok {
			return fmt.Errorf("%w: edge references unknown target node %s", workflow.ErrInvalidDefinition, e.To)
		}
	}
	if len(def.InputNodes()) == 0 {
		return fmt.Errorf("%w: no input nodes", workflow.ErrInvalidDefinition)
	}
	if len(def.OutputNodes()) == 0 {
		return fmt.Errorf("%w: no output nodes", workflow.ErrInvalidDefinition)
	}
	return nil
}

// cacheSlot collects the cache nodes sharing one slot name. Writers are
// cache-output nodes, readers cache-input nodes.
type cacheSlot struct {
	writers []workflow.NodeID
	readers []workflow.NodeID
}

// resolveCacheEdges rewrites the edge list with cache nodes inlined. Direct
// edges between non-cache nodes are kept. For every slot with at least one
// writer and one reader, each true producer (a node feeding a writer) is
// connected to each true consumer (a node fed by a reader) with a portless
// edge. Slots with only writers or only readers yield no edges. Cache nodes
// themselves never appear in the result.
func resolveCacheEdges(def *workflow.Definition) []workflow.Edge {
	var edges []workflow.Edge
	for _, e := range def.Edges {
		if isCacheNode(def, e.From) || isCacheNode(def, e.To) {
			continue
		}
		edges = append(edges, e)
	}

	slots := make(map[string]*cacheSlot)
	slot := func(name string) *cacheSlot {
		s, ok := slots[name]
		if !ok {
			s = &cacheSlot{}
			slots[name] = s
		}
		return s
	}
	for id, node := range def.Nodes {
		switch k := node.Kind.(type) {
		case workflow.CacheOutput:
			slot(k.Slot).writers = append(slot(k.Slot).writers, id)
		case workflow.CacheInput:
			slot(k.Slot).readers = append(slot(k.Slot).readers, id)
		}
	}

	names := make([]string, 0, len(slots))
	for name := range slots {
		names = append(names, name)
	}
	slices.Sort(names)

	seen := make(map[workflow.Edge]bool, len(edges))
	for _, e := range edges {
		seen[e] = true
	}
	for _, name := range names {
		s := slots[name]
		if len(s.writers) == 0 || len(s.readers) == 0 {
			continue
		}
		sortCacheNodes(def, s.writers)
		sortCacheNodes(def, s.readers)

		for _, p := range slotProducers(def, s.writers) {
			for _, c := range slotConsumers(def, s.readers) {
				e := workflow.NewEdge(p, c)
				if !seen[e] {
					seen[e] = true
					edges = append(edges, e)
				}
			}
		}
	}
	return edges
}

// slotProducers returns the non-cache nodes whose edges terminate at the
// slot's writers, in writer order.
func slotProducers(def *workflow.Definition, writers []workflow.NodeID) []workflow.NodeID {
	var producers []workflow.NodeID
	for _, w := range writers {
		for _, e := range def.Edges {
			if e.To == w && !isCacheNode(def, e.From) {
				producers = append(producers, e.From)
			}
		}
	}
	return producers
}

// slotConsumers returns the non-cache nodes fed by the slot's readers, in
// reader order.
func slotConsumers(def *workflow.Definition, readers []workflow.NodeID) []workflow.NodeID {
	var consumers []workflow.NodeID
	for _, r := range readers {
		for _, e := range def.Edges {
			if e.From == r && !isCacheNode(def, e.To) {
				consumers = append(consumers, e.To)
			}
		}
	}
	return consumers
}

// sortCacheNodes orders cache nodes by priority (lowest first, unset last),
// then id, so synthesized edges come out in a stable order.
func sortCacheNodes(def *workflow.Definition, ids []workflow.NodeID) {
	slices.SortFunc(ids, func(a, b workflow.NodeID) int {
		pa, pb := cachePriority(def, a), cachePriority(def, b)
		if pa != pb {
			return pa - pb
		}
		return strings.Compare(a.String(), b.String())
	})
}

func cachePriority(def *workflow.Definition, id workflow.NodeID) int {
	var p *int
	switch k := def.Nodes[id].Kind.(type) {
	case workflow.CacheOutput:
		p = k.Priority
	case workflow.CacheInput:
		p = k.Priority
	}
	if p == nil {
		return int(^uint(0) >> 1)
	}
	return *p
}

func isCacheNode(def *workflow.Definition, id workflow.NodeID) bool {
	node, ok := def.Nodes[id]
	return ok && node.Kind != nil && workflow.IsCache(node.Kind)
}

// compileNodes compiles every non-cache node. On error the partial map is
// returned so the caller can close what was opened.
func (c *Compiler) compileNodes(ctx context.Context, def *workflow.Definition, creds *connection.Registry) (map[workflow.NodeID]CompiledNode, error) {
	ctx, span := c.tracer.Start(ctx, "workflow.compile_nodes")
	defer span.End()

	ids := make([]workflow.NodeID, 0, len(def.Nodes))
	for id := range def.Nodes {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b workflow.NodeID) int {
		return strings.Compare(a.String(), b.String())
	})

	nodes := make(map[workflow.NodeID]CompiledNode, len(ids))
	for _, id := range ids {
		node := def.Nodes[id]
		if workflow.IsCache(node.Kind) {
			continue
		}
		compiled, err := c.compileNode(ctx, creds, id, node)
		if err != nil {
			return nodes, err
		}
		nodes[id] = compiled
	}
	return nodes, nil
}

func (c *Compiler) compileNode(ctx context.Context, creds *connection.Registry, id workflow.NodeID, node workflow.Node) (CompiledNode, error) {
	switch k := node.Kind.(type) {
	case workflow.ProviderInput:
		conn, err := c.dataConnection(creds, id, k.Provider)
		if err != nil {
			return nil, err
		}
		reader, err := c.connector.OpenInput(ctx, k.Provider, conn)
		if err != nil {
			return nil, fmt.Errorf("%w: node %s: open input: %v", workflow.ErrInternal, id, err)
		}
		return &InputNode{Name: node.Name, Reader: reader}, nil

	case workflow.ProviderOutput:
		conn, err := c.dataConnection(creds, id, k.Provider)
		if err != nil {
			return nil, err
		}
		writer, err := c.connector.OpenOutput(ctx, k.Provider, conn)
		if err != nil {
			return nil, fmt.Errorf("%w: node %s: open output: %v", workflow.ErrInternal, id, err)
		}
		return &OutputNode{Name: node.Name, Writer: NewBatchWriter(writer, k.BatchSize)}, nil

	case workflow.Transform:
		proc, err := c.compileTransformer(ctx, creds, id, k.Transformer)
		if err != nil {
			return nil, err
		}
		return &TransformNode{Name: node.Name, Processor: proc}, nil

	case workflow.Switch:
		return &SwitchNode{Name: node.Name, Switch: NewCompiledSwitch(k)}, nil

	case workflow.CacheInput, workflow.CacheOutput:
		return nil, fmt.Errorf("%w: cache node %s survived slot resolution", workflow.ErrInternal, id)
	}
	return nil, fmt.Errorf("%w: node %s has unknown kind", workflow.ErrInternal, id)
}

func (c *Compiler) compileTransformer(ctx context.Context, creds *connection.Registry, id workflow.NodeID, t workflow.Transformer) (Processor, error) {
	switch t := t.(type) {
	case workflow.Partition:
		return partitionProcessor{params: t}, nil

	case workflow.Chunk:
		return chunkProcessor{params: t}, nil

	case workflow.Embedding:
		aiCreds, err := c.aiCredentials(creds, id, t.Provider, connection.EmbeddingCredentials)
		if err != nil {
			return nil, err
		}
		client, err := c.dialer.Embedding(ctx, aiCreds)
		if err != nil {
			return nil, fmt.Errorf("%w: node %s: dial embedding provider: %v", workflow.ErrInternal, id, err)
		}
		return embeddingProcessor{client: client, normalize: t.Normalize}, nil

	case workflow.Enrich:
		return c.agentProcessor(ctx, creds, id, t.Provider, t.Task, t.OverridePrompt, agentEnrich)
	case workflow.Extract:
		return c.agentProcessor(ctx, creds, id, t.Provider, t.Task, t.OverridePrompt, agentExtract)
	case workflow.Derive:
		return c.agentProcessor(ctx, creds, id, t.Provider, t.Task, t.OverridePrompt, agentDerive)
	}
	return nil, fmt.Errorf("%w: node %s has unknown transformer", workflow.ErrInternal, id)
}

func (c *Compiler) agentProcessor(ctx context.Context, creds *connection.Registry, id workflow.NodeID, params workflow.AIProviderParams, task, override string, kind agentKind) (Processor, error) {
	aiCreds, err := c.aiCredentials(creds, id, params, connection.CompletionCredentials)
	if err != nil {
		return nil, err
	}
	client, err := c.dialer.Completion(ctx, aiCreds)
	if err != nil {
		return nil, fmt.Errorf("%w: node %s: dial completion provider: %v", workflow.ErrInternal, id, err)
	}
	return agentProcessor{
		agents:   provider.NewAgents(client),
		task:     task,
		override: override,
		kind:     kind,
	}, nil
}

// dataConnection resolves a node's provider credential to a data connection.
func (c *Compiler) dataConnection(creds *connection.Registry, id workflow.NodeID, params workflow.ProviderParams) (*connection.DALConnection, error) {
	conn, err := creds.Get(params.CredentialsID())
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", id, err)
	}
	dal, ok := conn.(*connection.DALConnection)
	if !ok {
		return nil, fmt.Errorf("%w: node %s: connection %s is not a data connection",
			workflow.ErrInvalidDefinition, id, params.CredentialsID())
	}
	return dal, nil
}

// aiCredentials resolves a transformer's credential through the given
// accessor. The definition's model overrides the stored one when set.
func (c *Compiler) aiCredentials(creds *connection.Registry, id workflow.NodeID, params workflow.AIProviderParams, accessor func(connection.ProviderConnection) (connection.AICredentials, error)) (connection.AICredentials, error) {
	conn, err := creds.Get(params.Credentials)
	if err != nil {
		return connection.AICredentials{}, fmt.Errorf("node %s: %w", id, err)
	}
	aiCreds, err := accessor(conn)
	if err != nil {
		return connection.AICredentials{}, fmt.Errorf("%w: node %s: %v", workflow.ErrInvalidDefinition, id, err)
	}
	if params.Model != "" {
		aiCreds.Model = params.Model
	}
	return aiCreds, nil
}

// buildGraph assembles the compiled nodes and resolved edges into an indexed
// graph and fixes a topological order, rejecting cycles.
func buildGraph(def *workflow.Definition, nodes map[workflow.NodeID]CompiledNode, edges []workflow.Edge) (*CompiledGraph, error) {
	g := graph.NewDirected[CompiledNode]()
	ids := make([]workflow.NodeID, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b workflow.NodeID) int {
		return strings.Compare(a.String(), b.String())
	})
	for _, id := range ids {
		g.AddNodeWithID(id, nodes[id])
	}
	for _, e := range edges {
		if err := g.AddEdge(e.From, e.To, workflow.EdgeData{FromPort: e.FromPort, ToPort: e.ToPort}); err != nil {
			return nil, err
		}
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	return &CompiledGraph{nodes: g, order: order, meta: def.Metadata}, nil
}

func closeNodes(nodes map[workflow.NodeID]CompiledNode) {
	for _, node := range nodes {
		switch n := node.(type) {
		case *InputNode:
			n.Reader.Close()
		case *OutputNode:
			n.Writer.Close()
		}
	}
}
