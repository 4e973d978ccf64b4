// Package store provides persistent storage for toolgate using SQLite.
//
// # Invocation audit log
//
// Every dispatched tool call can be recorded as an Invocation: which tool,
// over which transport (stdio or sse), for which session, how long it took,
// and the error kind if it failed. An empty ErrorKind means success.
//
//	s, err := store.NewSQLiteStore("/var/lib/toolgate/toolgate.db")
//	err = s.RecordInvocation(ctx, &store.Invocation{ToolName: "calculate", Transport: store.TransportSSE})
//	stats, err := s.InvocationStats(ctx)
//
// ListInvocations accepts an InvocationFilter whose nil fields match
// everything. Results are newest first; the limit defaults to 100 and is
// capped at 1000.
//
// # SQLite Configuration
//
// File databases use WAL mode. ":memory:" opens a private in-memory database
// pinned to a single connection, which is what tests use when they do not
// need a file.
//
// All methods accept context.Context for cancellation support.
package store
