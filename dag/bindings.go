package dag

import (
	"encoding/json"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Bindings is the live, shared variable environment. It is a
// mapping from dotted-path string keys to arbitrary values, backed by a
// single JSON document so that dotted-path reads and writes (`"a.b.c"`)
// are structural lookups rather than a hand-rolled path walker — the
// document is read/written through tidwall/gjson and tidwall/sjson.
//
// Bindings is shared by reference: the caller may hold the same pointer
// and mutate it concurrently with the driver (e.g. to satisfy a `wait`
// guard between generations), and every driver write is immediately
// visible through Get.
type Bindings struct {
	mu  sync.RWMutex
	doc []byte
}

// NewBindings constructs a Bindings environment seeded with the given
// initial variables (the program document's top-level `variables` object).
func NewBindings(initial map[string]any) (*Bindings, error) {
	b := &Bindings{doc: []byte("{}")}
	for k, v := range initial {
		if err := b.Set(k, v); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Get returns the current value at key, or Undefined if the key (or any
// segment of a dotted path) is absent. Structured lookup of nested keys
// (`"a.b.c"`) is supported.
func (b *Bindings) Get(key string) any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	res := gjson.GetBytes(b.doc, key)
	if !res.Exists() {
		return Undefined
	}
	return res.Value()
}

// Set writes value at key, visible immediately to subsequent Get calls and
// to any other holder of this Bindings pointer.
func (b *Bindings) Set(key string, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	out, err := sjson.SetBytes(b.doc, key, value)
	if err != nil {
		return err
	}
	b.doc = out
	return nil
}

// Delete removes key. ForEach calls this on its `as` variable once the
// loop body has run for every element, so the binding doesn't leak past
// the loop that scoped it.
func (b *Bindings) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	out, err := sjson.DeleteBytes(b.doc, key)
	if err != nil {
		return err
	}
	b.doc = out
	return nil
}

// Snapshot returns a deep copy of the environment as a plain map, suitable
// for persistence (see store package) or for passing to an executor that
// wants the whole scope rather than named args.
func (b *Bindings) Snapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out map[string]any
	_ = json.Unmarshal(b.doc, &out)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

// exprEnv builds the environment map passed to expr-lang for guard and
// code-literal evaluation. Dotted keys are exposed both as a nested map
// (`a.b.c` reachable via `a.b.c` in expr syntax) and, for top-level
// variables, directly by name.
func (b *Bindings) exprEnv() map[string]any {
	return b.Snapshot()
}

// resolveArgs looks up each name in names and returns the resolved values
// in order, plus a map keyed by name for executors that want named access.
func (b *Bindings) resolveArgs(names []string) ([]any, map[string]any) {
	values := make([]any, len(names))
	named := make(map[string]any, len(names))
	for i, n := range names {
		v := b.Get(n)
		values[i] = v
		named[n] = v
	}
	return values, named
}
