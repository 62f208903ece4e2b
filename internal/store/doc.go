// Package store provides durable credential persistence for wagate using SQLite.
//
// # Architecture
//
// The package defines a single interface:
//
//   - SessionStore: upsert/find/delete of one credential blob per session id
//
// SQLiteStore is the production implementation (modernc.org/sqlite, WAL mode).
// MockStore is an in-memory implementation for tests.
//
// # Data Model
//
// One row per session id:
//
//	CREATE TABLE sessions (
//	    session_id TEXT PRIMARY KEY,
//	    creds      TEXT NOT NULL,
//	    updated_at DATETIME NOT NULL
//	);
//
// The creds column holds the serialized credential blob (see the creds
// package). Saves are single-statement upserts, so concurrent writers for
// the same session id are last-writer-wins and a reader never observes a
// half-written blob. Absence of a row means the session is unregistered.
package store
