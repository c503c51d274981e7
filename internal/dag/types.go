package dag

import "sync"

// Graph is the dependency graph of one mission: a vertex per step and an
// edge from each step to every step it depends on. It is safe for
// concurrent use.
type Graph struct {
	mutex sync.RWMutex
	nodes map[string]*node
	// order lists step IDs as they were declared. Traversals walk it
	// instead of the map so results are reproducible.
	order []string
}

// node is one step vertex. Callers address nodes by step ID only.
type node struct {
	id    string
	index int // declaration position, breaks ties between ready steps

	deps       map[string]*node // steps this one waits for
	dependents map[string]*node // steps waiting for this one
}
