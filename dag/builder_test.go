package dag

import (
	"context"
	"errors"
	"testing"
)

func constExecutor(v any) ActivityFunc {
	return func(context.Context, map[string]any) (any, error) {
		return v, nil
	}
}

func TestBuilderSequenceChainsDataAndControlEdges(t *testing.T) {
	doc := Document{
		Plan: Program{
			Sequence: &Sequence{
				Elements: []Program{
					{Execute: &Execute{Activity: "a", Store: "x"}},
					{Execute: &Execute{Activity: "b", With: []string{"x"}, Store: "y"}},
				},
			},
		},
	}
	execs := Executors{Activities: map[string]ActivityFunc{
		"a": constExecutor(1.0),
		"b": constExecutor(2.0),
	}}
	d, err := New(doc, execs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(d.graph.generations) != 2 {
		t.Fatalf("expected 2 generations, got %d: %v", len(d.graph.generations), d.graph.generations)
	}
	if len(d.graph.generations[0]) != 1 || len(d.graph.generations[1]) != 1 {
		t.Fatalf("expected 1 node per generation, got %v", d.graph.generations)
	}
}

func TestBuilderParallelBranchesShareGeneration(t *testing.T) {
	doc := Document{
		Plan: Program{
			Parallel: &Parallel{
				Branches: []Program{
					{Execute: &Execute{Activity: "a"}},
					{Execute: &Execute{Activity: "b"}},
				},
			},
		},
	}
	execs := Executors{Activities: map[string]ActivityFunc{
		"a": constExecutor(1.0),
		"b": constExecutor(2.0),
	}}
	d, err := New(doc, execs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(d.graph.generations) != 1 {
		t.Fatalf("expected 1 generation, got %d: %v", len(d.graph.generations), d.graph.generations)
	}
	if len(d.graph.generations[0]) != 2 {
		t.Fatalf("expected both branches in the same generation, got %v", d.graph.generations[0])
	}
}

func TestBuilderGuardedSequenceMaterializesSingleGate(t *testing.T) {
	doc := Document{
		Plan: Program{
			Sequence: &Sequence{
				Elements: []Program{{Execute: &Execute{Activity: "a"}}},
				Guards:   Guards{When: &Predicate{Expr: "true"}},
			},
		},
	}
	execs := Executors{Activities: map[string]ActivityFunc{"a": constExecutor(1.0)}}
	d, err := New(doc, execs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(d.graph.Nodes) != 1 {
		t.Fatalf("expected a single gate node for the whole guarded sequence, got %d nodes", len(d.graph.Nodes))
	}
}

func TestBuilderRejectsExecuteThatReadsItsOwnStore(t *testing.T) {
	// A node whose `with` names the same variable its own `store` writes
	// depends on itself; this must surface as ErrCyclicProgram rather than
	// build cleanly.
	doc := Document{
		Plan: Program{
			Execute: &Execute{Activity: "a", With: []string{"x"}, Store: "x"},
		},
	}
	execs := Executors{Activities: map[string]ActivityFunc{"a": constExecutor(1.0)}}
	if _, err := New(doc, execs); !errors.Is(err, ErrCyclicProgram) {
		t.Fatalf("expected ErrCyclicProgram, got %v", err)
	}
}

func TestBuilderRejectsMalformedExecute(t *testing.T) {
	doc := Document{Plan: Program{Execute: &Execute{}}}
	if _, err := New(doc, Executors{}); !errors.Is(err, ErrInvalidProgram) {
		t.Fatalf("expected ErrInvalidProgram, got %v", err)
	}
}

func TestBuilderForEachDependsOnInProducer(t *testing.T) {
	doc := Document{
		Plan: Program{
			Sequence: &Sequence{
				Elements: []Program{
					{Execute: &Execute{Activity: "list", Store: "items"}},
					{ForEach: &ForEach{
						In: "items",
						As: "item",
						Body: Program{
							Execute: &Execute{Activity: "process", With: []string{"item"}},
						},
					}},
				},
			},
		},
	}
	execs := Executors{Activities: map[string]ActivityFunc{
		"list":    constExecutor([]any{1.0, 2.0}),
		"process": constExecutor(nil),
	}}
	d, err := New(doc, execs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(d.graph.generations) != 2 {
		t.Fatalf("expected foreach to depend on the list producer, got generations %v", d.graph.generations)
	}
}

func TestSanitizeNameEmpty(t *testing.T) {
	if got := sanitizeName(""); got != "anon" {
		t.Fatalf("expected anon, got %q", got)
	}
}

func TestReserveStrideAdvancesToNextBoundary(t *testing.T) {
	var counter uint64 = 5
	bd := &builder{counter: &counter}
	bd.reserveStride()
	if counter != idStride {
		t.Fatalf("expected counter to advance to %d, got %d", idStride, counter)
	}
	bd.reserveStride()
	if counter != 2*idStride {
		t.Fatalf("expected counter to advance to the next boundary again, got %d", counter)
	}
}
