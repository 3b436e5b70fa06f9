package dag

import (
	"encoding/json"
	"fmt"
)

// Document is the top-level wire format accepted by the builder: the
// program's declared initial variables plus the root Program.
type Document struct {
	Variables map[string]any `json:"variables"`
	Plan      Program        `json:"plan"`
}

// ExecuteKind names which lookup table an Execute node draws its callable
// from.
type ExecuteKind string

const (
	ExecuteActivity ExecuteKind = "activity"
	ExecuteStep     ExecuteKind = "step"
	ExecuteCode     ExecuteKind = "code"
)

// Execute is a single unit of work. Exactly one of Activity, Step, or Code
// must be set; Name is derived from whichever is set.
type Execute struct {
	Activity string `json:"activity,omitempty"`
	Step     string `json:"step,omitempty"`
	Code     string `json:"code,omitempty"`

	With  []string `json:"with,omitempty"`
	Store string   `json:"store,omitempty"`

	Guards
}

// Kind reports which executor table this node draws from.
func (e Execute) Kind() (ExecuteKind, string, error) {
	set := 0
	var kind ExecuteKind
	var name string
	if e.Activity != "" {
		set++
		kind, name = ExecuteActivity, e.Activity
	}
	if e.Step != "" {
		set++
		kind, name = ExecuteStep, e.Step
	}
	if e.Code != "" {
		set++
		kind, name = ExecuteCode, e.Code
	}
	if set != 1 {
		return "", "", fmt.Errorf("%w: execute must name exactly one of activity|step|code", ErrInvalidProgram)
	}
	return kind, name, nil
}

// Sequence runs its Elements in declared order. Data edges may still let
// the scheduler pack non-dependent elements into a single generation; a
// guarded Sequence materializes a synthetic gate at build time (see
// builder.go) so `when`/`wait`/`required` apply to the whole body at once.
type Sequence struct {
	Elements []Program `json:"elements"`
	Guards
}

// Parallel runs its Branches with a shared predecessor; inter-branch
// ordering is by data dependency only. A guarded Parallel materializes a
// synthetic gate exactly like a guarded Sequence, so skip semantics are
// symmetric between the two node kinds.
type Parallel struct {
	Branches []Program `json:"branches"`
	Guards
}

// ForEach iterates the sequence bound to In, setting As on each iteration
// and re-driving Body as a fresh sub-graph.
type ForEach struct {
	In   string  `json:"in"`
	As   string  `json:"as"`
	Body Program `json:"body"`
}

// While re-evaluates Condition before each iteration of Body.
type While struct {
	Condition Predicate `json:"condition"`
	Body      Program   `json:"body"`
}

// DoWhile is a While whose Condition is evaluated after each iteration, so
// Body always executes at least once.
type DoWhile struct {
	Body      Program   `json:"body"`
	Condition Predicate `json:"condition"`
}

// Program is a recursive sum type: a value is exactly one of Sequence,
// Parallel, Execute, ForEach, While, or DoWhile. At most one of the
// pointer fields may be non-nil; exactly one is required except where a
// zero-value empty program is explicitly permitted (an empty Sequence).
type Program struct {
	Sequence *Sequence `json:"sequence,omitempty"`
	Parallel *Parallel `json:"parallel,omitempty"`
	Execute  *Execute  `json:"execute,omitempty"`
	ForEach  *ForEach  `json:"foreach,omitempty"`
	While    *While    `json:"while,omitempty"`
	DoWhile  *DoWhile  `json:"doWhile,omitempty"`
}

// variant reports the single populated case, or an error if the node is
// malformed (more than one case set).
func (p Program) variant() (string, error) {
	n := 0
	v := ""
	if p.Sequence != nil {
		n++
		v = "sequence"
	}
	if p.Parallel != nil {
		n++
		v = "parallel"
	}
	if p.Execute != nil {
		n++
		v = "execute"
	}
	if p.ForEach != nil {
		n++
		v = "foreach"
	}
	if p.While != nil {
		n++
		v = "while"
	}
	if p.DoWhile != nil {
		n++
		v = "doWhile"
	}
	if n > 1 {
		return "", fmt.Errorf("%w: more than one of sequence|parallel|execute|foreach|while|doWhile set", ErrInvalidProgram)
	}
	if n == 0 {
		// An empty Sequence is the canonical zero-value program.
		return "sequence", nil
	}
	return v, nil
}

// Validate walks the program tree checking its shape rules: at most one
// case per node, exactly one executor name per Execute. Unknown variable
// names in `with` are not a construction error (resolved at execution
// time to Undefined).
func (p Program) Validate() error {
	variant, err := p.variant()
	if err != nil {
		return err
	}
	switch variant {
	case "sequence":
		if p.Sequence == nil {
			return nil // zero-value empty program
		}
		for i := range p.Sequence.Elements {
			if err := p.Sequence.Elements[i].Validate(); err != nil {
				return err
			}
		}
	case "parallel":
		for i := range p.Parallel.Branches {
			if err := p.Parallel.Branches[i].Validate(); err != nil {
				return err
			}
		}
	case "execute":
		if _, _, err := p.Execute.Kind(); err != nil {
			return err
		}
	case "foreach":
		if p.ForEach.In == "" || p.ForEach.As == "" {
			return fmt.Errorf("%w: foreach requires in and as", ErrInvalidProgram)
		}
		if err := p.ForEach.Body.Validate(); err != nil {
			return err
		}
	case "while":
		if err := p.While.Body.Validate(); err != nil {
			return err
		}
	case "doWhile":
		if err := p.DoWhile.Body.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON renders the program using its documented wire field names.
func (p Program) MarshalJSON() ([]byte, error) {
	type alias Program
	return json.Marshal(alias(p))
}
