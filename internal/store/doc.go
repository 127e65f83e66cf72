// Package store provides persistent storage for the reading club using SQLite.
//
// # Architecture
//
// Two interfaces split the surface by concern:
//
//   - ChapterStore: chapter CRUD plus the sequential navigator queries
//     (PreviousChapter/NextChapter) behind the reader page
//   - ReaderStore: reader accounts, browser sessions, signup invites,
//     one-time login codes, and passkey credentials
//
// SQLiteStore implements both in a single struct.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as RFC 3339 strings in UTC. Chapter content is a
// nullable column; NULL round-trips as the empty string.
//
// # Error Handling
//
// Lookups return sentinel errors (ErrNotFound, ErrSessionNotFound, ...)
// rather than wrapping sql.ErrNoRows. Navigator queries return ErrNotFound
// at sequence boundaries; callers treat that as "no link", not a failure.
//
// # Testing
//
// Use NewSQLiteStore(":memory:") or a t.TempDir() path for tests; the
// schema is created on open.
package store
