// Package tools exposes the memory engine as a set of named operations
// with JSON-schema validated arguments.
//
// Invariants:
//   - Execute never lets a failure escape: validation errors, handler
//     errors, panics and timeouts all return an error-flagged Result.
//   - Every operation runs under a bounded timeout.
//   - The Service holds its store and indexer explicitly; nothing in
//     this package reads or writes process-global state.
//
// Usage:
//
//	reg := tools.NewRegistry(logger)
//	svc, _ := tools.NewService(st, ix, logger)
//	_ = svc.RegisterAll(reg)
//	res := reg.Execute(ctx, "search_context", map[string]interface{}{"query": "auth flow"})
package tools
