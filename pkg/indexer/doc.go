// Package indexer discovers and ingests the coding agent's conversation
// transcripts into the context store.
//
// Invariants:
// - Project resolution reproduces the agent's directory-naming hash.
// - Per-file failures are isolated; an index pass always completes.
// - At most one filesystem watch is active per indexer, and stopping it
//   guarantees no reindex callback fires afterwards.
//
// The indexed-file set is process-local: restarts re-index everything
// and can duplicate conversation entries.
package indexer
