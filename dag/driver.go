package dag

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ControlItem is one schedulable unit the Driver yields from Next. Run
// performs the unit's actual work (invoking its executor, or driving a
// loop/gate's nested sub-graph) and returns its raw result. PeerIDs lists
// every node in the same generation, including id itself, so the caller
// can decide to execute peers concurrently.
type ControlItem struct {
	ID      string
	PeerIDs []string
	Run     func(ctx context.Context) (any, error)
}

// Driver walks a compiled program one generation at a time, evaluating
// guards and exposing ready nodes through a pull-based Next method. It
// does not itself run nodes concurrently; concurrency within a generation
// is the caller's prerogative.
type Driver struct {
	graph *Graph
	rt    *runtime

	genIdx  int
	nodeIdx int
	skipped map[string]bool

	genSpan trace.Span
}

// New compiles doc's plan against executors and returns a Driver ready to
// walk it generation by generation.
func New(doc Document, executors Executors, opts ...Option) (*Driver, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	bindings, err := NewBindings(doc.Variables)
	if err != nil {
		return nil, fmt.Errorf("dag: seeding bindings: %w", err)
	}

	rt := &runtime{
		bindings: bindings,
		execs:    executors,
		host:     cfg.host,
		emitter:  cfg.emitter,
		metrics:  cfg.metrics,
		tracer:   cfg.tracer,
		runID:    cfg.runID,
	}

	var counter uint64
	bd := newBuilder(rt, &counter)
	g, err := bd.Build(doc.Plan)
	if err != nil {
		return nil, err
	}

	if len(g.generations) == 0 {
		rt.emit("", "empty_program", nil)
	}
	return &Driver{graph: g, rt: rt, skipped: map[string]bool{}}, nil
}

// Bindings exposes the live binding environment backing this run. A
// caller may read or write it directly, e.g. to satisfy a `wait` guard
// from outside the driven program.
func (d *Driver) Bindings() *Bindings { return d.rt.bindings }

// RunID returns the identifier this Driver's events and metrics are
// labeled with.
func (d *Driver) RunID() string { return d.rt.runID }

// Next yields the next schedulable ControlItem, silently skipping over
// any node whose guards fail along the way — the caller never sees a
// skipped node, only the ones it must run. The second return value is
// false once every generation has been walked.
func (d *Driver) Next(ctx context.Context) (ControlItem, bool, error) {
	for {
		if d.genIdx >= len(d.graph.generations) {
			return ControlItem{}, false, nil
		}
		gen := d.graph.generations[d.genIdx]

		if d.nodeIdx == 0 {
			_, span := d.rt.tracer.Start(ctx, fmt.Sprintf("generation_%d", d.genIdx))
			d.genSpan = span
			d.rt.emit("", "generation_start", map[string]any{"generation": d.genIdx, "size": len(gen)})
		}

		if d.nodeIdx >= len(gen) {
			if d.genSpan != nil {
				d.genSpan.End()
				d.genSpan = nil
			}
			d.rt.emit("", "generation_done", map[string]any{"generation": d.genIdx})
			d.genIdx++
			d.nodeIdx = 0
			continue
		}

		id := gen[d.nodeIdx]
		node := d.graph.Nodes[id]
		d.nodeIdx++

		ec := &execContext{Context: ctx, rt: d.rt}
		skip, err := evalNodeGuards(ctx, ec, d.graph, node, d.skipped)
		if err != nil {
			return ControlItem{}, false, err
		}
		if skip {
			d.skipped[id] = true
			node.state = stateSkipped
			d.rt.emit(id, "node_skipped", nil)
			d.rt.metrics.recordSkip(d.rt.runID, "guard")
			continue
		}

		peers := append([]string(nil), gen...)
		item := ControlItem{
			ID:      id,
			PeerIDs: peers,
			Run:     d.runner(node),
		}
		return item, true, nil
	}
}

// runner builds the callable a ControlItem exposes: it invokes the
// node's own run closure, records result write-back, and reports
// metrics/tracing/events around the call.
func (d *Driver) runner(node *Node) func(ctx context.Context) (any, error) {
	genSpan := d.genSpan
	return func(ctx context.Context) (any, error) {
		ec := &execContext{Context: ctx, rt: d.rt}
		if genSpan != nil {
			ctx = trace.ContextWithSpan(ctx, genSpan)
		}
		ctx, span := d.rt.tracer.Start(ctx, node.ID)
		ec.Context = ctx
		defer span.End()

		node.state = stateRunning
		start := time.Now()
		result, err := node.run(ec)
		if err != nil {
			d.rt.metrics.recordNode(d.rt.runID, string(node.Kind), "error", time.Since(start))
			span.RecordError(err)
			d.rt.emit(node.ID, "node_error", map[string]any{"error": err.Error()})
			return nil, err
		}
		node.state = stateDone
		d.rt.metrics.recordNode(d.rt.runID, string(node.Kind), "done", time.Since(start))
		d.rt.emit(node.ID, "node_done", map[string]any{"duration_ms": time.Since(start).Milliseconds()})

		if !IsUndefined(result) && node.Store != "" {
			if err := d.rt.bindings.Set(node.Store, result); err != nil {
				return nil, fmt.Errorf("dag: writing result to %q: %w", node.Store, err)
			}
			d.rt.metrics.recordBindingWrite(d.rt.runID)
		}
		return result, nil
	}
}

// Run drives the program to completion, invoking every yielded
// ControlItem sequentially. It is a convenience wrapper around Next for
// callers that don't need to parallelize peers themselves.
func (d *Driver) Run(ctx context.Context) error {
	for {
		item, ok, err := d.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if _, err := item.Run(ctx); err != nil {
			return err
		}
	}
}
