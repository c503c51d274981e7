package dag

import "github.com/vk/burstmission/internal/mission"

// Roots returns the nodes without dependencies, in insertion order.
func (g *Graph) Roots() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var roots []string
	for _, id := range g.order {
		if len(g.nodes[id].deps) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// TopologicalOrder returns every node ID such that each node appears after
// all of its dependencies. It repeatedly extracts zero in-degree nodes;
// among nodes that become eligible together, insertion order wins (FIFO).
// A graph with a cycle yields a cycle error.
func (g *Graph) TopologicalOrder() ([]string, error) {
	g.mutex.RLock()
	inDegree := make(map[string]int, len(g.nodes))
	queue := make([]string, 0, len(g.nodes))
	for _, id := range g.order {
		inDegree[id] = len(g.nodes[id].deps)
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	ordered := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ordered = append(ordered, id)

		for _, dep := range sortedIDs(g.nodes[id].dependents) {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	complete := len(ordered) == len(g.nodes)
	g.mutex.RUnlock()

	if !complete {
		if err := g.DetectCycles(); err != nil {
			return nil, err
		}
		return nil, mission.Invalidf("graph could not be ordered")
	}
	return ordered, nil
}
