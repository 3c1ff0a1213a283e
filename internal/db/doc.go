// Package db provides embedded persistence for conversation threads,
// messages, and language model call records using SQLite.
//
// # Architecture
//
// The package is built from four pieces:
//
//   - Registry: one lazily opened, cached Engine per execution mode
//     (blocking, loop), replaceable for tests via SetEngine/SetLoopEngine
//     and resettable between cases
//   - Engine: a connection pool over the configured database path, with
//     schema bootstrap methods (EnsureTablesExist, CreateTables)
//   - Session: a unit-of-work handle over a dedicated connection,
//     released unconditionally by Close or the WithSession scope
//   - Repository functions: explicit per-entity operations
//     (CreateThread, InsertMessage, RecordLLMCall, ...) taking a Session
//
// Entities are plain structs. There is no lazy relationship traversal:
// every join or parent lookup is an explicit query at the point of use.
//
// # Data Models
//
//   - Thread: node in a conversation forest, optional parent thread
//   - Message: one turn, holding an opaque validated chat document
//   - LLMCall: one model invocation with prompt and cost documents
//
// All three are create-once, append-only; no update or delete is
// exposed.
//
// # SQLite Configuration
//
// File-backed engines run with:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//	PRAGMA busy_timeout=5000;
//
// WAL allows concurrent readers, but SQLite still serializes writers.
// This package adds no write serialization of its own: writing
// concurrently from both engines of one registry requires caller-side
// single-writer discipline, and contention past the busy timeout
// surfaces as an error rather than a retry.
//
// In-memory databases (path ":memory:") run on a single-connection
// pool, since each SQLite connection to ":memory:" is its own
// database.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrForeignKey: write referenced a nonexistent thread or call
//   - ErrSessionClosed: operation on a released session
//
// Storage errors propagate wrapped with context but otherwise
// untranslated; nothing in this package retries.
//
// # Testing
//
// Use Open(":memory:", db.ModeBlocking) or a t.TempDir() path and
// CreateTables for integration tests; inject prepared engines into a
// Registry with SetEngine.
package db
