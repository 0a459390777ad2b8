// Package store persists typed, vector-indexed context entries.
//
// Invariants:
// - Entry ids are unique store-wide; vectors always match the index dimension.
// - Entries are append-only except a task's status (delete-then-reinsert).
// - The seed system record never appears in results surfaced to callers.
//
// Usage:
//
//	st, _ := store.New(store.Config{DBPath: "/data/context.db", Provider: provider})
//	_ = st.Initialize(ctx)
//	defer st.Close()
//	entry, _ := st.Add(ctx, store.Entry{Type: store.TypeDecision, Title: "Use WAL", Content: "..."})
//	results, _ := st.Search(ctx, "WAL", 5, "")
//	_, _ = entry, results
package store
