package tool

import (
	"context"
	"fmt"

	"github.com/dshills/chronodag/dag"
)

// Activities builds a Driver activity table from a set of Tools, keyed by
// each tool's own Name(). Two tools sharing a name is a construction
// error rather than a silent override.
func Activities(tools ...Tool) (map[string]dag.ActivityFunc, error) {
	out := make(map[string]dag.ActivityFunc, len(tools))
	for _, t := range tools {
		name := t.Name()
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("tool: duplicate tool name %q", name)
		}
		out[name] = toActivity(t)
	}
	return out, nil
}

func toActivity(t Tool) dag.ActivityFunc {
	return func(ctx context.Context, args map[string]any) (any, error) {
		result, err := t.Call(ctx, args)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(result))
		for k, v := range result {
			out[k] = v
		}
		return out, nil
	}
}
