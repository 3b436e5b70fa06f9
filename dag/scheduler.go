package dag

// computeGenerations partitions g into the list-of-lists of node ids such
// that generation i contains exactly the nodes whose in-degree restricted
// to generations 0..i-1 is their full in-degree. It is a standard
// Kahn's-algorithm topological sort, batched by "wave" instead of flattened,
// processing each wave's nodes in the graph's insertion order so that
// repeated calls on the same graph return the same partition.
//
// An empty graph yields an empty generations list. A cycle is reported as
// ErrCyclicProgram: the leftover, never-scheduled nodes prove one exists.
func computeGenerations(g *Graph) ([][]string, error) {
	indegree := make(map[string]int, len(g.Nodes))
	adj := make(map[string][]string, len(g.Nodes))
	for id := range g.Nodes {
		indegree[id] = 0
	}
	for _, e := range g.edges {
		indegree[e.Consumer]++
		adj[e.Producer] = append(adj[e.Producer], e.Consumer)
	}

	remaining := len(g.Nodes)
	var generations [][]string
	frontier := make([]string, 0)
	for _, id := range g.order {
		if indegree[id] == 0 {
			frontier = append(frontier, id)
		}
	}

	for len(frontier) > 0 {
		generations = append(generations, frontier)
		remaining -= len(frontier)

		next := make([]string, 0)
		seen := map[string]bool{}
		for _, id := range frontier {
			for _, consumer := range adj[id] {
				indegree[consumer]--
				if indegree[consumer] == 0 && !seen[consumer] {
					seen[consumer] = true
					next = append(next, consumer)
				}
			}
		}
		// Preserve graph insertion order within the new generation rather
		// than producer-discovery order.
		if len(next) > 1 {
			ordered := make([]string, 0, len(next))
			inNext := make(map[string]bool, len(next))
			for _, id := range next {
				inNext[id] = true
			}
			for _, id := range g.order {
				if inNext[id] {
					ordered = append(ordered, id)
				}
			}
			next = ordered
		}
		frontier = next
	}

	if remaining != 0 {
		return nil, ErrCyclicProgram
	}
	return generations, nil
}
