// Package executor runs a mission's step graph on a bounded worker pool.
//
// Ready steps are drained from a FIFO queue by a fixed number of workers.
// Each step carries an atomic count of unfinished dependencies; the worker
// that finishes a step decrements its dependents and enqueues the ones that
// reach zero. No lock is held while a tool runs.
//
// A failure that the step does not tolerate aborts the run: steps already
// running finish, nothing new starts, and the steps that never started are
// left out of the result.
package executor
