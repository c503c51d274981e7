// Package registry maps tool names to executable tools. Built-in step types
// and user-supplied tools satisfy the same Tool interface and are registered
// the same way, either one at a time or in bulk through a Module.
//
// Lookups take a shared lock and registration an exclusive one, so many
// concurrently running steps can resolve tools while a late registration is
// in progress.
package registry
