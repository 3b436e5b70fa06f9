package dag

import "fmt"

// idStride is the minimum gap a sub-graph build reserves in the shared
// counter before control returns to whatever invoked it, so that a later,
// unrelated build sharing the same counter never mints an id a still-live
// sub-graph might also produce.
const idStride = 1000

// Graph is the compiled output of the builder: a set of nodes plus the
// directed edges between them.
type Graph struct {
	Nodes       map[string]*Node
	order       []string // insertion order; generations preserve this order
	edges       []Edge
	producers   map[string][]string // variable name -> node ids that store it, in insertion order
	generations [][]string
}

func newGraph() *Graph {
	return &Graph{
		Nodes:     map[string]*Node{},
		producers: map[string][]string{},
	}
}

func (g *Graph) addNode(n *Node) {
	g.Nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	if n.Store != "" {
		g.producers[n.Store] = append(g.producers[n.Store], n.ID)
	}
}

func (g *Graph) addEdge(producer, consumer string, data bool) {
	if producer == "" {
		return
	}
	for _, e := range g.edges {
		if e.Producer == producer && e.Consumer == consumer {
			return // already recorded (e.g. both a control and a data edge collapse to one)
		}
	}
	g.edges = append(g.edges, Edge{Producer: producer, Consumer: consumer, DataEdge: data})
}

// builder lowers a Program into a Graph rooted in a shared Bindings
// environment.
type builder struct {
	rt      *runtime
	counter *uint64
}

// newBuilder constructs a builder sharing rt's executors/bindings/host and
// counter with any builder that spawned it (sub-graph composition).
func newBuilder(rt *runtime, counter *uint64) *builder {
	return &builder{rt: rt, counter: counter}
}

func (bd *builder) nextID(kind, name string) string {
	*bd.counter++
	return fmt.Sprintf("%s_%s_%d", kind, sanitizeName(name), *bd.counter)
}

func sanitizeName(name string) string {
	if name == "" {
		return "anon"
	}
	return name
}

// reserveStride bumps the shared counter up to the next idStride boundary,
// guaranteeing the next id minted by anyone still holding this counter
// does not collide with ids a just-finished sub-graph build used.
func (bd *builder) reserveStride() {
	next := ((*bd.counter / idStride) + 1) * idStride
	if next > *bd.counter {
		*bd.counter = next
	}
}

// Build compiles program into a fresh Graph and runs cycle detection
// once the program is fully lowered. A cycle is a fatal construction error (ErrCyclicProgram).
func (bd *builder) Build(program Program) (*Graph, error) {
	g := newGraph()
	if _, err := bd.add(g, program, nil); err != nil {
		return nil, err
	}
	generations, err := computeGenerations(g)
	if err != nil {
		return nil, err
	}
	g.generations = generations
	return g, nil
}

// add recursively lowers p into g, threading preds (the control
// predecessors from the lexical context) and returns the tails that a
// lexical successor should depend on.
func (bd *builder) add(g *Graph, p Program, preds []string) ([]string, error) {
	variant, err := p.variant()
	if err != nil {
		return nil, err
	}
	switch variant {
	case "sequence":
		return bd.addSequence(g, p.Sequence, preds)
	case "parallel":
		return bd.addParallel(g, p.Parallel, preds)
	case "execute":
		return bd.addExecute(g, p.Execute, preds)
	case "foreach":
		return bd.addForEach(g, p.ForEach, preds)
	case "while":
		return bd.addWhile(g, p.While, preds)
	case "doWhile":
		return bd.addDoWhile(g, p.DoWhile, preds)
	}
	return preds, nil
}

func hasGate(g Guards) bool {
	return g.When != nil || g.Wait != nil
}

func (bd *builder) addSequence(g *Graph, s *Sequence, preds []string) ([]string, error) {
	if s == nil {
		return preds, nil
	}
	if hasGate(s.Guards) {
		return bd.addGatedSubGraph(g, KindSequence, s.Guards, preds, func() Program {
			return Program{Sequence: &Sequence{Elements: s.Elements}}
		})
	}
	cur := preds
	for i := range s.Elements {
		tails, err := bd.add(g, s.Elements[i], cur)
		if err != nil {
			return nil, err
		}
		cur = tails
	}
	return cur, nil
}

func (bd *builder) addParallel(g *Graph, p *Parallel, preds []string) ([]string, error) {
	if p == nil {
		return preds, nil
	}
	if hasGate(p.Guards) {
		return bd.addGatedSubGraph(g, KindParallel, p.Guards, preds, func() Program {
			return Program{Parallel: &Parallel{Branches: p.Branches}}
		})
	}
	var allTails []string
	for i := range p.Branches {
		tails, err := bd.add(g, p.Branches[i], preds)
		if err != nil {
			return nil, err
		}
		allTails = append(allTails, tails...)
	}
	return allTails, nil
}

func (bd *builder) addExecute(g *Graph, e *Execute, preds []string) ([]string, error) {
	kind, name, err := e.Kind()
	if err != nil {
		return nil, err
	}
	node := &Node{
		ID:     bd.nextID(string(kind), name),
		Kind:   NodeKind(kind),
		Name:   name,
		Args:   e.With,
		Store:  e.Store,
		Guards: e.Guards,
	}
	g.addNode(node)
	for _, arg := range e.With {
		for _, producer := range g.producers[arg] {
			g.addEdge(producer, node.ID, true)
		}
	}
	for _, pred := range preds {
		g.addEdge(pred, node.ID, false)
	}
	node.run = bd.makeExecuteRun(node, kind)
	return []string{node.ID}, nil
}

// addGatedSubGraph materializes the synthetic condition gate for a guarded
// Sequence or Parallel: the gate is the only node the outer graph sees; its
// body is built and driven lazily, inside its own Run, against a disjoint
// id range.
func (bd *builder) addGatedSubGraph(g *Graph, kind NodeKind, guards Guards, preds []string, body func() Program) ([]string, error) {
	label := "condition"
	gate := &Node{
		ID:     bd.nextID(string(kind), label),
		Kind:   kind,
		Name:   label,
		Guards: guards,
	}
	g.addNode(gate)
	for _, pred := range preds {
		g.addEdge(pred, gate.ID, false)
	}
	gate.run = bd.makeSubGraphRun(gate, body())
	return []string{gate.ID}, nil
}

func (bd *builder) addForEach(g *Graph, f *ForEach, preds []string) ([]string, error) {
	node := &Node{
		ID:     bd.nextID(string(KindForEach), f.As),
		Kind:   KindForEach,
		Name:   f.As,
		Args:   []string{f.In},
		Guards: Guards{},
	}
	g.addNode(node)
	for _, producer := range g.producers[f.In] {
		g.addEdge(producer, node.ID, true)
	}
	for _, pred := range preds {
		g.addEdge(pred, node.ID, false)
	}
	node.run = bd.makeForEachRun(node, f)
	return []string{node.ID}, nil
}

func (bd *builder) addWhile(g *Graph, w *While, preds []string) ([]string, error) {
	node := &Node{ID: bd.nextID(string(KindWhile), "loop"), Kind: KindWhile}
	g.addNode(node)
	for _, pred := range preds {
		g.addEdge(pred, node.ID, false)
	}
	node.run = bd.makeWhileRun(node, w, false)
	return []string{node.ID}, nil
}

func (bd *builder) addDoWhile(g *Graph, w *DoWhile, preds []string) ([]string, error) {
	node := &Node{ID: bd.nextID(string(KindDoWhile), "loop"), Kind: KindDoWhile}
	g.addNode(node)
	for _, pred := range preds {
		g.addEdge(pred, node.ID, false)
	}
	node.run = bd.makeWhileRun(node, &While{Condition: w.Condition, Body: w.Body}, true)
	return []string{node.ID}, nil
}
