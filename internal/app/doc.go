// Package app wires a mission run together. NewApp builds the logger, the
// runtime config, the tool registry, the audit log and its optional SQL
// store, the session, and the executor. Run loads missions from a path,
// executes them in order, prints a per-step summary, verifies the audit
// chain, and optionally exports it. Nothing here depends on the CLI.
package app
