package dag

import (
	"context"
	"errors"
	"testing"
)

func TestDriverRunSequenceWritesBindings(t *testing.T) {
	doc := Document{
		Plan: Program{
			Sequence: &Sequence{
				Elements: []Program{
					{Execute: &Execute{Activity: "double", With: []string{"x"}, Store: "y"}},
				},
			},
		},
		Variables: map[string]any{"x": 21.0},
	}
	execs := Executors{Activities: map[string]ActivityFunc{
		"double": func(_ context.Context, args map[string]any) (any, error) {
			return args["x"].(float64) * 2, nil
		},
	}}
	d, err := New(doc, execs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := d.Bindings().Get("y"); got != 42.0 {
		t.Fatalf("expected y=42.0, got %#v", got)
	}
}

func TestDriverPropagatesExecutorError(t *testing.T) {
	boom := errors.New("boom")
	doc := Document{
		Plan: Program{Execute: &Execute{Activity: "fail"}},
	}
	execs := Executors{Activities: map[string]ActivityFunc{
		"fail": func(context.Context, map[string]any) (any, error) { return nil, boom },
	}}
	d, err := New(doc, execs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = d.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	var execErr *ExecutorError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecutorError, got %T (%v)", err, err)
	}
}

func TestDriverSkipsGuardedNodeWhenFalse(t *testing.T) {
	ran := false
	doc := Document{
		Plan: Program{
			Execute: &Execute{
				Activity: "maybe",
				Guards:   Guards{When: &Predicate{Expr: "false"}},
			},
		},
	}
	execs := Executors{Activities: map[string]ActivityFunc{
		"maybe": func(context.Context, map[string]any) (any, error) {
			ran = true
			return nil, nil
		},
	}}
	d, err := New(doc, execs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ran {
		t.Fatal("expected guarded node to be skipped")
	}
}

func TestDriverPropagatesRequiredSkipToDependent(t *testing.T) {
	dependentRan := false
	doc := Document{
		Plan: Program{
			Sequence: &Sequence{
				Elements: []Program{
					{Execute: &Execute{
						Activity: "gate",
						Store:    "g",
						Guards:   Guards{When: &Predicate{Expr: "false"}},
					}},
					{Execute: &Execute{Activity: "dependent", With: []string{"g"}}},
				},
			},
		},
	}
	execs := Executors{Activities: map[string]ActivityFunc{
		"gate": func(context.Context, map[string]any) (any, error) { return "ran", nil },
		"dependent": func(context.Context, map[string]any) (any, error) {
			dependentRan = true
			return nil, nil
		},
	}}
	d, err := New(doc, execs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if dependentRan {
		t.Fatal("expected dependent node to be skipped via required-predecessor propagation")
	}
}

func TestDriverNonRequiredSkipDoesNotPropagate(t *testing.T) {
	dependentRan := false
	notRequired := false
	doc := Document{
		Plan: Program{
			Sequence: &Sequence{
				Elements: []Program{
					{Execute: &Execute{
						Activity: "gate",
						Store:    "g",
						Guards:   Guards{When: &Predicate{Expr: "false"}, Required: &notRequired},
					}},
					{Execute: &Execute{Activity: "dependent", With: []string{"g"}}},
				},
			},
		},
	}
	execs := Executors{Activities: map[string]ActivityFunc{
		"gate": func(context.Context, map[string]any) (any, error) { return "ran", nil },
		"dependent": func(context.Context, map[string]any) (any, error) {
			dependentRan = true
			return nil, nil
		},
	}}
	d, err := New(doc, execs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !dependentRan {
		t.Fatal("expected dependent node to run when the skipped predecessor is marked required:false")
	}
}

func TestDriverForEachDrivesBodyPerElement(t *testing.T) {
	var seen []float64
	doc := Document{
		Plan: Program{
			ForEach: &ForEach{
				In: "items",
				As: "item",
				Body: Program{
					Execute: &Execute{Activity: "collect", With: []string{"item"}},
				},
			},
		},
		Variables: map[string]any{"items": []any{1.0, 2.0, 3.0}},
	}
	execs := Executors{Activities: map[string]ActivityFunc{
		"collect": func(_ context.Context, args map[string]any) (any, error) {
			seen = append(seen, args["item"].(float64))
			return nil, nil
		},
	}}
	d, err := New(doc, execs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(seen) != 3 || seen[0] != 1.0 || seen[1] != 2.0 || seen[2] != 3.0 {
		t.Fatalf("expected to visit all 3 items in order, got %v", seen)
	}
}

func TestDriverWhileLoopRunsUntilConditionFalse(t *testing.T) {
	// The body does not read `count` through `with`: a node that reads the
	// variable it stores depends on itself and fails to build.
	n := 0.0
	doc := Document{
		Plan: Program{
			While: &While{
				Condition: Predicate{Expr: "count < 3"},
				Body:      Program{Execute: &Execute{Activity: "increment", Store: "count"}},
			},
		},
		Variables: map[string]any{"count": 0.0},
	}
	execs := Executors{Activities: map[string]ActivityFunc{
		"increment": func(context.Context, map[string]any) (any, error) {
			n++
			return n, nil
		},
	}}
	d, err := New(doc, execs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := d.Bindings().Get("count"); got != 3.0 {
		t.Fatalf("expected count=3.0, got %#v", got)
	}
}

func TestDriverDoWhileRunsBodyAtLeastOnce(t *testing.T) {
	calls := 0
	doc := Document{
		Plan: Program{
			DoWhile: &DoWhile{
				Body:      Program{Execute: &Execute{Activity: "tick"}},
				Condition: Predicate{Expr: "false"},
			},
		},
	}
	execs := Executors{Activities: map[string]ActivityFunc{
		"tick": func(context.Context, map[string]any) (any, error) {
			calls++
			return nil, nil
		},
	}}
	d, err := New(doc, execs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected doWhile body to run exactly once, got %d calls", calls)
	}
}

func TestDriverUnknownActivityErrors(t *testing.T) {
	doc := Document{Plan: Program{Execute: &Execute{Activity: "missing"}}}
	d, err := New(doc, Executors{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = d.Run(context.Background())
	var uerr *UnknownExecutorError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected *UnknownExecutorError, got %T (%v)", err, err)
	}
}

func TestDriverCodeExecute(t *testing.T) {
	doc := Document{
		Plan: Program{Execute: &Execute{Code: "x + 1", With: []string{"x"}, Store: "y"}},
		Variables: map[string]any{"x": 1.0},
	}
	execs := Executors{Code: NewExprCodeEvaluator()}
	d, err := New(doc, execs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := d.Bindings().Get("y"); got != 2.0 {
		t.Fatalf("expected y=2.0, got %#v", got)
	}
}

func TestDriverNextExposesPeerIDsWithinGeneration(t *testing.T) {
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
		"a": constExecutor(nil),
		"b": constExecutor(nil),
	}}
	d, err := New(doc, execs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	item, ok, err := d.Next(ctx)
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if len(item.PeerIDs) != 2 {
		t.Fatalf("expected 2 peer ids, got %v", item.PeerIDs)
	}
	if _, err := item.Run(ctx); err != nil {
		t.Fatalf("item.Run: %v", err)
	}
}

func TestDriverNextReturnsFalseWhenExhausted(t *testing.T) {
	doc := Document{Plan: Program{}}
	d, err := New(doc, Executors{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, ok, err := d.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ok {
		t.Fatal("expected an empty program to yield no control items")
	}
}

func TestWithRunIDOverridesGenerated(t *testing.T) {
	doc := Document{Plan: Program{}}
	d, err := New(doc, Executors{}, WithRunID("fixed-run"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.RunID() != "fixed-run" {
		t.Fatalf("expected RunID=fixed-run, got %q", d.RunID())
	}
}

func TestWithRunIDRejectsEmpty(t *testing.T) {
	if _, err := New(Document{}, Executors{}, WithRunID("")); err == nil {
		t.Fatal("expected an error for empty run id")
	}
}
