// Package store provides persistent storage for the gateway using SQLite.
//
// # Architecture
//
// Store is composed of three narrower interfaces so that consumers depend only
// on what they use:
//
//   - UserStore: users and their Send-to-Kindle address
//   - TokenStore: opaque MCP tokens, each bound to one user
//   - AudiobookStore: audiobook generation tasks
//
// SQLiteStore implements all of them; MockStore is an in-memory twin for tests.
//
// # Data Models
//
//   - User: a principal (username, kindle_email, is_admin)
//   - MCPToken: token value, owning user, optional label
//   - AudiobookTask: task id, owner, book, library type, status and progress
//
// # Visibility
//
// GetLatestAudiobookTask treats Calibre books as shared, so any user's task
// for the book counts. Anx libraries are private and only the caller's own
// tasks are considered.
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Database file locations:
//
//   - Production: /var/lib/shelf/gateway.db
//   - Development: ~/.local/share/shelf/gateway.db
//   - Testing: :memory: (in-memory database)
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicate: unique constraint (username, token, task id) violated
//
// All methods accept context.Context for cancellation support.
package store
