package dag

import (
	"context"

	"github.com/expr-lang/expr"
)

// ExprCodeEvaluator is the default CodeEvaluator: it compiles and runs the
// unit's source as an expr-lang expression against an environment built
// from the live bindings plus the node's named args layered on top, so a
// `code` unit can reference both outer bindings and its own `with` values
// by name.
//
// expr-lang/expr was chosen over a CEL-based evaluator because it operates
// directly against a plain map[string]any environment with no schema or
// proto-descriptor step, matching the Binding Environment's fully dynamic
// shape (see DESIGN.md).
type ExprCodeEvaluator struct{}

// NewExprCodeEvaluator constructs the default code evaluator.
func NewExprCodeEvaluator() *ExprCodeEvaluator { return &ExprCodeEvaluator{} }

// Eval implements CodeEvaluator.
func (ExprCodeEvaluator) Eval(_ context.Context, source string, args map[string]any, b *Bindings) (any, error) {
	env := b.exprEnv()
	for k, v := range args {
		env[k] = v
	}
	program, err := expr.Compile(source, expr.Env(env))
	if err != nil {
		return nil, err
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return Undefined, nil
	}
	return out, nil
}
