// Package audit implements the append-only, hash-chained audit log.
//
// Every entry stores the hash of its predecessor and its own hash, computed
// as sha256(previous_hash || canonical_json(entry)). The first entry chains
// from the constant Genesis. Recomputing the chain from entry zero must
// reproduce every stored hash, so changing any entry invalidates it and all
// entries after it.
//
// The in-memory Log is authoritative. Sinks receive each entry after it is
// chained, in chain order, and may persist it elsewhere (see SQLSink).
package audit
