// Package store persists folio sessions.
//
// Two implementations satisfy session.Store:
//
//   - SQLiteStore: durable storage in a single SQLite file (modernc.org/sqlite,
//     WAL mode). Sessions survive restarts.
//   - MemoryStore: a mutex-guarded map, used in tests and when
//     database.path is ":memory:".
//
// # Schema
//
//	sessions(id, username, pending_error, pending_success,
//	         csrf_token, created_at, expires_at)
//
// Timestamps are stored as fixed-width UTC text so expiry can be compared
// in SQL. Get never returns an expired row; it reports ErrNotFound instead.
//
// # Expiry
//
// Sweep runs in the background and calls DeleteExpired on an interval until
// its context is cancelled.
package store
