// Package store provides persistent storage for the gateway using SQLite.
//
// # Architecture
//
//   - AccountStore: member accounts read by the access gate and login
//   - ChatLogStore: one summary row per finished chat exchange
//
// SQLiteStore implements both in a single struct. MockStore is an in-memory
// implementation for unit tests and can be told to fail chat log writes.
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// Columns added after the first release are applied by runMigrations on open.
package store
