// Package dag holds the dependency graph of a mission. Build validates a
// mission and produces a Graph; the Graph answers dependency questions,
// detects cycles, and yields a deterministic topological order.
//
// Execution of the graph lives in the executor package.
package dag
