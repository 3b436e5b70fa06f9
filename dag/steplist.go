package dag

import "fmt"

// StepDescriptor is one entry of a flat step-list wire format: a named
// unit of work with structural before/after ordering constraints instead
// of the data-edge inference Execute nodes get from `with`/`store`.
type StepDescriptor struct {
	Name     string
	Method   string
	Before   []string
	After    []string
	Required *bool
	When     *Predicate
	Timeout  string
	Retries  *RetryPolicy
}

func (s StepDescriptor) guards() Guards {
	return Guards{When: s.When, Required: s.Required, Timeout: s.Timeout, Retries: s.Retries}
}

// StepsToProgram converts a step list into a Sequence of generation-packed
// Parallel/Execute nodes: each topological generation of the before/after
// constraint graph becomes a single Execute if it holds one step, or a
// Parallel over the generation's steps otherwise. The adapter shares no
// state with the Driver; it is purely structural.
func StepsToProgram(steps []StepDescriptor) (Program, error) {
	byName := make(map[string]StepDescriptor, len(steps))
	order := make([]string, 0, len(steps))
	for _, s := range steps {
		if s.Name == "" {
			return Program{}, fmt.Errorf("dag: step descriptor missing name: %w", ErrInvalidProgram)
		}
		if _, dup := byName[s.Name]; dup {
			return Program{}, fmt.Errorf("dag: duplicate step name %q: %w", s.Name, ErrInvalidProgram)
		}
		byName[s.Name] = s
		order = append(order, s.Name)
	}

	g := newGraph()
	for _, name := range order {
		g.addNode(&Node{ID: name})
	}
	for _, name := range order {
		s := byName[name]
		for _, before := range s.Before {
			if _, ok := byName[before]; !ok {
				return Program{}, fmt.Errorf("dag: step %q declares before unknown step %q: %w", name, before, ErrInvalidProgram)
			}
			g.addEdge(name, before, false)
		}
		for _, after := range s.After {
			if _, ok := byName[after]; !ok {
				return Program{}, fmt.Errorf("dag: step %q declares after unknown step %q: %w", name, after, ErrInvalidProgram)
			}
			g.addEdge(after, name, false)
		}
	}

	generations, err := computeGenerations(g)
	if err != nil {
		return Program{}, err
	}

	elements := make([]Program, 0, len(generations))
	for _, gen := range generations {
		if len(gen) == 1 {
			elements = append(elements, executeProgram(byName[gen[0]]))
			continue
		}
		branches := make([]Program, 0, len(gen))
		for _, name := range gen {
			branches = append(branches, executeProgram(byName[name]))
		}
		elements = append(elements, Program{Parallel: &Parallel{Branches: branches}})
	}

	return Program{Sequence: &Sequence{Elements: elements}}, nil
}

func executeProgram(s StepDescriptor) Program {
	return Program{Execute: &Execute{Step: s.Method, Guards: s.guards()}}
}
