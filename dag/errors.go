// Package dag compiles a declarative workflow program into a dependency
// graph and drives it to completion in topological generations.
package dag

import (
	"errors"
	"fmt"
)

// ErrCyclicProgram indicates that the compiled graph (or, for the
// step-list adapter, the before/after constraints) contains a cycle.
// This is always a construction-time failure: the driver never starts.
var ErrCyclicProgram = errors.New("dag: program graph contains a cycle")

// ErrInvalidProgram indicates a program document violates the shape rules
// in the Program Model: more than one of sequence/parallel/execute/foreach/
// while/doWhile set on a single node, or an Execute node naming more than
// one (or none) of activity/step/code.
var ErrInvalidProgram = errors.New("dag: program node is malformed")

// ErrInvalidRetryPolicy is returned by RetryPolicy.Validate.
var ErrInvalidRetryPolicy = errors.New("dag: invalid retry policy")

// UnknownExecutorError is raised when an Execute node names an activity or
// step absent from its lookup table. It is fatal to the node: it surfaces
// from the node's Run() and aborts the driver, the same as ExecutorError.
type UnknownExecutorError struct {
	Kind string // "activity", "step", or "code"
	Name string
	Node string
}

func (e *UnknownExecutorError) Error() string {
	return fmt.Sprintf("dag: unknown %s %q referenced by node %s", e.Kind, e.Name, e.Node)
}

// GuardEvaluationError wraps a panic or error raised while evaluating a
// `when` or `wait` predicate, or a While/DoWhile condition. For `when` and
// `wait` the driver logs it and skips the node, and it is never returned
// from Run() or Next(); a failing loop condition is returned from the loop
// node's Run().
type GuardEvaluationError struct {
	Node string
	Kind string // "when", "wait", or "while-condition"
	Err  error
}

func (e *GuardEvaluationError) Error() string {
	return fmt.Sprintf("dag: %s guard on node %s failed: %v", e.Kind, e.Node, e.Err)
}

func (e *GuardEvaluationError) Unwrap() error { return e.Err }

// WaitTimeoutError records that a `wait` guard never became true within
// its configured duration. The driver logs it and skips the node.
type WaitTimeoutError struct {
	Node    string
	Timeout string
}

func (e *WaitTimeoutError) Error() string {
	return fmt.Sprintf("dag: wait on node %s timed out after %s", e.Node, e.Timeout)
}

// ExecutorError wraps a failure returned by an activity, step, or code
// executor. It propagates out of Run(), which aborts the remaining
// generations of the driver. Retrying is the caller's responsibility.
type ExecutorError struct {
	Node string
	Err  error
}

func (e *ExecutorError) Error() string {
	return fmt.Sprintf("dag: node %s executor failed: %v", e.Node, e.Err)
}

func (e *ExecutorError) Unwrap() error { return e.Err }

// SubGraphError wraps a failure inside a loop body or a guarded
// sequence/parallel sub-graph. It surfaces from the enclosing loop or gate
// node's Run() exactly like ExecutorError.
type SubGraphError struct {
	Node string
	Err  error
}

func (e *SubGraphError) Error() string {
	return fmt.Sprintf("dag: sub-graph of node %s failed: %v", e.Node, e.Err)
}

func (e *SubGraphError) Unwrap() error { return e.Err }
