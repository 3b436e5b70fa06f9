package dag

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// pollInterval is the cadence at which a wait guard re-evaluates its
// predicate when the driver is not running inside a Host.
const pollInterval = 100 * time.Millisecond

// Predicate is a boolean test over the binding environment. Exactly one of
// Expr or Func should be set; Func (a host-supplied callable) takes
// precedence when both are present, since a caller that wires a Func wants
// it to win over whatever Expr happens to also be set.
//
// An Expr is compiled once, on first evaluation, with expr-lang/expr
// against the bindings' exported map view, and the compiled program is
// cached on the Predicate for reuse across re-evaluations (e.g. in a
// `wait` poll loop or a loop condition checked every iteration).
type Predicate struct {
	Expr string
	Func func(b *Bindings) (bool, error)

	compiled *vm.Program
}

// UnmarshalJSON accepts a bare expression string as the wire form of a
// code-literal predicate.
func (p *Predicate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	p.Expr = s
	return nil
}

// MarshalJSON renders a code-literal predicate as its bare expression
// string; host-supplied callables are not serializable and marshal to an
// empty string.
func (p Predicate) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Expr)
}

// IsZero reports whether the predicate has neither an expression nor a
// callable, i.e. no guard was declared.
func (p Predicate) IsZero() bool {
	return p.Expr == "" && p.Func == nil
}

// Eval evaluates the predicate against the current bindings. Expr
// predicates are compiled on first use; the bindings' exported map is
// rebuilt on every call since bindings may have changed since the last
// evaluation (this is what makes `wait` polling observe live writes).
func (p *Predicate) Eval(b *Bindings) (result bool, err error) {
	if p.Func != nil {
		return p.Func(b)
	}
	if p.Expr == "" {
		return true, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dag: predicate %q panicked: %v", p.Expr, r)
		}
	}()
	if p.compiled == nil {
		program, cerr := expr.Compile(p.Expr, expr.Env(b.exprEnv()), expr.AsBool())
		if cerr != nil {
			return false, cerr
		}
		p.compiled = program
	}
	out, rerr := expr.Run(p.compiled, b.exprEnv())
	if rerr != nil {
		return false, rerr
	}
	boolOut, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("dag: predicate %q did not evaluate to a bool", p.Expr)
	}
	return boolOut, nil
}

// WaitGuard blocks a node until Predicate holds or Timeout elapses.
type WaitGuard struct {
	Predicate Predicate
	Timeout   time.Duration
}

// UnmarshalJSON accepts either a bare predicate string (no timeout) or the
// two-element wire array `[predicate, timeoutDurationString]`.
func (w *WaitGuard) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err == nil {
		if err := json.Unmarshal(pair[0], &w.Predicate); err != nil {
			return err
		}
		var durStr string
		if err := json.Unmarshal(pair[1], &durStr); err != nil {
			return err
		}
		d, derr := time.ParseDuration(durStr)
		if derr != nil {
			return derr
		}
		w.Timeout = d
		return nil
	}
	return json.Unmarshal(data, &w.Predicate)
}

// Guards attach to every program node.
type Guards struct {
	When     *Predicate   `json:"when,omitempty"`
	Wait     *WaitGuard   `json:"wait,omitempty"`
	Required *bool        `json:"required,omitempty"`
	Timeout  string       `json:"timeout,omitempty"`
	Retries  *RetryPolicy `json:"retries,omitempty"`
}

// isRequired defaults to true: an unmarked guard that skips still
// propagates skip to its dependents unless the program author has opted
// the node out with `required: false`.
func (g Guards) isRequired() bool {
	if g.Required == nil {
		return true
	}
	return *g.Required
}

// evalWhen evaluates the `when` guard, if any, against b. Evaluation
// errors are reported as *GuardEvaluationError and treated as a skip by
// the driver.
func evalWhen(nodeID string, g Guards, b *Bindings) (skip bool, evalErr error) {
	if g.When == nil || g.When.IsZero() {
		return false, nil
	}
	ok, err := g.When.Eval(b)
	if err != nil {
		return true, &GuardEvaluationError{Node: nodeID, Kind: "when", Err: err}
	}
	return !ok, nil
}

// awaitWait blocks until the `wait` guard's predicate holds, the context
// is cancelled, or the timeout elapses, delegating to host.Wait when a
// Host is configured.
func awaitWait(ctx context.Context, nodeID string, g Guards, b *Bindings, host Host) (skip bool, evalErr error) {
	if g.Wait == nil {
		return false, nil
	}
	pred := &g.Wait.Predicate
	timeout := g.Wait.Timeout
	if host != nil {
		ok, err := host.Wait(ctx, func() (bool, error) { return pred.Eval(b) }, timeout)
		if err != nil {
			return true, &GuardEvaluationError{Node: nodeID, Kind: "wait", Err: err}
		}
		if !ok {
			return true, &WaitTimeoutError{Node: nodeID, Timeout: timeout.String()}
		}
		return false, nil
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		ok, err := pred.Eval(b)
		if err != nil {
			return true, &GuardEvaluationError{Node: nodeID, Kind: "wait", Err: err}
		}
		if ok {
			return false, nil
		}
		if timeout > 0 && time.Now().After(deadline) {
			return true, &WaitTimeoutError{Node: nodeID, Timeout: timeout.String()}
		}
		select {
		case <-ctx.Done():
			return true, &GuardEvaluationError{Node: nodeID, Kind: "wait", Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}
