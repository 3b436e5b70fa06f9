package dag

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/chronodag/dag/emit"
	"go.opentelemetry.io/otel/trace"
)

// runtime bundles everything a node's run closure needs to execute,
// independent of whether it is being walked by the top-level Driver or
// driven internally by a loop/gate node's own Run. It is shared by
// pointer across a driver's root builder and every sub-builder spawned
// for a loop body or guarded sub-graph.
type runtime struct {
	bindings *Bindings
	execs    Executors
	host     Host
	emitter  emit.Emitter
	metrics  *Metrics
	tracer   trace.Tracer
	runID    string
}

// execContext carries the real context.Context plus the shared runtime
// into a node's run closure.
type execContext struct {
	context.Context
	rt *runtime
}

func (rt *runtime) emit(nodeID, msg string, meta map[string]any) {
	if rt.emitter == nil {
		return
	}
	rt.emitter.Emit(emit.Event{RunID: rt.runID, NodeID: nodeID, Msg: msg, Meta: meta})
}

// makeExecuteRun builds the run closure for an Execute node: resolve args,
// invoke the named activity/step/code unit, and return its raw result.
// Result write-back (writing node.Store) is the driver's job, not the
// node's.
func (bd *builder) makeExecuteRun(node *Node, kind ExecuteKind) func(ec *execContext) (any, error) {
	return func(ec *execContext) (any, error) {
		_, named := ec.rt.bindings.resolveArgs(node.Args)

		if kind == ExecuteCode {
			if ec.rt.execs.Code == nil {
				return nil, &UnknownExecutorError{Kind: "code", Name: node.Name, Node: node.ID}
			}
			out, err := ec.rt.execs.Code.Eval(ec.Context, node.Name, named, ec.rt.bindings)
			if err != nil {
				return nil, &ExecutorError{Node: node.ID, Err: err}
			}
			return out, nil
		}

		fn, ok := ec.rt.execs.lookup(kind, node.Name)
		if !ok {
			return nil, &UnknownExecutorError{Kind: string(kind), Name: node.Name, Node: node.ID}
		}
		out, err := fn(ec.Context, named)
		if err != nil {
			return nil, &ExecutorError{Node: node.ID, Err: err}
		}
		if out == nil {
			return Undefined, nil
		}
		return out, nil
	}
}

// makeSubGraphRun builds the run closure for a guarded Sequence/Parallel
// gate: build the body as a fresh sub-graph sharing this builder's
// counter, then drive it to completion synchronously.
func (bd *builder) makeSubGraphRun(gate *Node, body Program) func(ec *execContext) (any, error) {
	return func(ec *execContext) (any, error) {
		sub := newBuilder(ec.rt, bd.counter)
		g, err := sub.Build(body)
		bd.reserveStride()
		if err != nil {
			return nil, &SubGraphError{Node: gate.ID, Err: err}
		}
		if err := driveGraph(ec, g); err != nil {
			return nil, &SubGraphError{Node: gate.ID, Err: err}
		}
		return Undefined, nil
	}
}

// makeForEachRun builds the run closure for a ForEach loop node: for each
// element of the `in` sequence, bind `as`, rebuild the body sub-graph
// against the now-current bindings, and drive it to completion before
// moving to the next element. Once every element has run, the `as`
// binding is deleted so it doesn't leak into bindings read after the loop.
func (bd *builder) makeForEachRun(node *Node, f *ForEach) func(ec *execContext) (any, error) {
	return func(ec *execContext) (any, error) {
		seqVal := ec.rt.bindings.Get(f.In)
		items, _ := toSlice(seqVal)
		for _, item := range items {
			if err := ec.rt.bindings.Set(f.As, item); err != nil {
				return nil, &SubGraphError{Node: node.ID, Err: err}
			}
			sub := newBuilder(ec.rt, bd.counter)
			g, err := sub.Build(f.Body)
			bd.reserveStride()
			if err != nil {
				return nil, &SubGraphError{Node: node.ID, Err: err}
			}
			if err := driveGraph(ec, g); err != nil {
				return nil, &SubGraphError{Node: node.ID, Err: err}
			}
		}
		if len(items) > 0 {
			if err := ec.rt.bindings.Delete(f.As); err != nil {
				return nil, &SubGraphError{Node: node.ID, Err: err}
			}
		}
		return Undefined, nil
	}
}

// makeWhileRun builds the run closure shared by While and DoWhile: doFirst
// controls whether the body runs once unconditionally before the first
// condition check: While checks first, DoWhile runs the body once
// unconditionally so it always executes at least one iteration.
func (bd *builder) makeWhileRun(node *Node, w *While, doFirst bool) func(ec *execContext) (any, error) {
	return func(ec *execContext) (any, error) {
		runOnce := func() error {
			sub := newBuilder(ec.rt, bd.counter)
			g, err := sub.Build(w.Body)
			bd.reserveStride()
			if err != nil {
				return &SubGraphError{Node: node.ID, Err: err}
			}
			if err := driveGraph(ec, g); err != nil {
				return &SubGraphError{Node: node.ID, Err: err}
			}
			return nil
		}

		if doFirst {
			if err := runOnce(); err != nil {
				return nil, err
			}
		}
		for {
			ok, err := w.Condition.Eval(ec.rt.bindings)
			if err != nil {
				return nil, &GuardEvaluationError{Node: node.ID, Kind: "while-condition", Err: err}
			}
			if !ok {
				break
			}
			if err := runOnce(); err != nil {
				return nil, err
			}
		}
		return Undefined, nil
	}
}

// toSlice normalizes a ForEach `in` binding into a Go slice. A missing or
// non-sequence value is treated as empty.
func toSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case nil:
		return nil, true
	default:
		if IsUndefined(v) {
			return nil, true
		}
		return nil, false
	}
}

// evalNodeGuards decides whether node should be skipped before it runs:
// required-predecessor-skip propagation takes precedence over evaluating
// this node's own when/wait guards.
func evalNodeGuards(ctx context.Context, ec *execContext, g *Graph, node *Node, skipped map[string]bool) (bool, error) {
	for _, e := range g.edges {
		if e.Consumer != node.ID {
			continue
		}
		if skipped[e.Producer] {
			producer := g.Nodes[e.Producer]
			if producer != nil && producer.Guards.isRequired() {
				return true, nil
			}
		}
	}

	if skip, err := evalWhen(node.ID, node.Guards, ec.rt.bindings); err != nil {
		ec.rt.emit(node.ID, "guard_evaluation_failed", map[string]any{"kind": "when", "error": err.Error()})
		return true, nil
	} else if skip {
		return true, nil
	}

	if node.Guards.Wait != nil {
		skip, err := awaitWait(ctx, node.ID, node.Guards, ec.rt.bindings, ec.rt.host)
		if err != nil {
			ec.rt.emit(node.ID, "guard_evaluation_failed", map[string]any{"kind": "wait", "error": err.Error()})
			return true, nil
		}
		if skip {
			return true, nil
		}
	}

	return false, nil
}

// driveGraph walks g's generations to completion synchronously, applying
// the same guard/skip/write-back rules the top-level Driver applies, but
// without yielding control to a caller between nodes. It is used for the
// internal sub-graph drives loops and guarded gates perform; the
// pull-based Driver in driver.go implements the caller-facing equivalent
// one generation, one node, at a time.
func driveGraph(ec *execContext, g *Graph) error {
	skipped := map[string]bool{}
	for _, gen := range g.generations {
		genStart := time.Now()
		for _, id := range gen {
			node := g.Nodes[id]
			skip, err := evalNodeGuards(ec.Context, ec, g, node, skipped)
			if err != nil {
				return err
			}
			if skip {
				skipped[id] = true
				node.state = stateSkipped
				ec.rt.emit(id, "node_skipped", nil)
				ec.rt.metrics.recordSkip(ec.rt.runID, "guard")
				continue
			}
			node.state = stateRunning
			start := time.Now()
			result, err := node.run(ec)
			if err != nil {
				ec.rt.metrics.recordNode(ec.rt.runID, string(node.Kind), "error", time.Since(start))
				return err
			}
			node.state = stateDone
			ec.rt.metrics.recordNode(ec.rt.runID, string(node.Kind), "done", time.Since(start))
			if !IsUndefined(result) && node.Store != "" {
				if err := ec.rt.bindings.Set(node.Store, result); err != nil {
					return fmt.Errorf("dag: writing result to %q: %w", node.Store, err)
				}
				ec.rt.metrics.recordBindingWrite(ec.rt.runID)
			}
		}
		ec.rt.metrics.recordGeneration(ec.rt.runID, time.Since(genStart))
	}
	return nil
}
