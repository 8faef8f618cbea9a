package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/millstone-labs/millflow/data"
	"github.com/millstone-labs/millflow/workflow"
)

// RunStats summarizes one execution.
type RunStats struct {
	// Read counts values produced by input nodes.
	Read int
	// Written counts values flushed by output nodes.
	Written int
	// PerNode counts the values each node emitted.
	PerNode map[workflow.NodeID]int
}

// Executor runs a compiled graph to completion: it drains every input,
// pushes values through transforms and switches in topological order, and
// flushes every output. The caller closes the graph afterwards.
type Executor struct {
	log    *slog.Logger
	tracer trace.Tracer
}

// NewExecutor builds an executor. A nil logger falls back to slog.Default.
func NewExecutor(log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		log:    log.With("component", "executor"),
		tracer: otel.Tracer(tracerName),
	}
}

// Run executes g. Because the graph is acyclic and nodes run in topological
// order, each node sees its complete input before it runs.
func (e *Executor) Run(ctx context.Context, g *CompiledGraph) (*RunStats, error) {
	ctx, span := e.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.Int("workflow.nodes", g.Len()),
	))
	defer span.End()

	stats := &RunStats{PerNode: make(map[workflow.NodeID]int, g.Len())}
	queues := make(map[workflow.NodeID][]data.Value)

	for _, id := range g.Order() {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return stats, err
		}
		node, ok := g.Node(id)
		if !ok {
			err := fmt.Errorf("%w: node %s missing from compiled graph", workflow.ErrInternal, id)
			span.RecordError(err)
			return stats, err
		}

		nodeCtx, nodeSpan := e.tracer.Start(ctx, "workflow.run_node", trace.WithAttributes(
			attribute.String("workflow.node_id", id.String()),
			attribute.String("workflow.node_name", node.NodeName()),
		))
		emitted, err := e.runNode(nodeCtx, g, id, node, queues, stats)
		delete(queues, id)
		if err != nil {
			nodeSpan.RecordError(err)
			nodeSpan.End()
			span.RecordError(err)
			return stats, fmt.Errorf("node %s: %w", id, err)
		}
		nodeSpan.SetAttributes(attribute.Int("workflow.values_emitted", emitted))
		nodeSpan.End()
		stats.PerNode[id] = emitted
	}

	span.SetAttributes(
		attribute.Int("workflow.values_read", stats.Read),
		attribute.Int("workflow.values_written", stats.Written),
	)
	e.log.Info("workflow run complete", "read", stats.Read, "written", stats.Written)
	return stats, nil
}

func (e *Executor) runNode(ctx context.Context, g *CompiledGraph, id workflow.NodeID, node CompiledNode, queues map[workflow.NodeID][]data.Value, stats *RunStats) (int, error) {
	switch n := node.(type) {
	case *InputNode:
		emitted := 0
		for {
			v, err := n.Reader.Read(ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return emitted, fmt.Errorf("read: %w", err)
			}
			stats.Read++
			emitted++
			route(g, id, "", v, queues)
		}
		e.log.Debug("input drained", "node", id, "values", emitted)
		return emitted, nil

	case *TransformNode:
		emitted := 0
		for _, v := range queues[id] {
			outs, err := n.Processor.Process(ctx, v)
			if err != nil {
				return emitted, err
			}
			for _, out := range outs {
				emitted++
				route(g, id, "", out, queues)
			}
		}
		return emitted, nil

	case *SwitchNode:
		emitted := 0
		for _, v := range queues[id] {
			port := n.Switch.Evaluate(v)
			emitted++
			route(g, id, port, v, queues)
		}
		return emitted, nil

	case *OutputNode:
		for _, v := range queues[id] {
			if err := n.Writer.Write(ctx, v); err != nil {
				return 0, fmt.Errorf("write: %w", err)
			}
		}
		if err := n.Writer.Flush(ctx); err != nil {
			return 0, fmt.Errorf("flush: %w", err)
		}
		written := n.Writer.Written()
		stats.Written += written
		e.log.Debug("output flushed", "node", id, "values", written)
		return written, nil
	}
	return 0, fmt.Errorf("%w: unknown compiled node %T", workflow.ErrInternal, node)
}

// route appends v to the queue of every downstream node reachable from the
// given port. An empty port follows every outgoing edge; a named port only
// follows edges annotated with it.
func route(g *CompiledGraph, from workflow.NodeID, port string, v data.Value, queues map[workflow.NodeID][]data.Value) {
	for _, edge := range g.OutgoingEdges(from) {
		if port != "" && edge.Data.FromPort != port {
			continue
		}
		queues[edge.To] = append(queues[edge.To], v)
	}
}
