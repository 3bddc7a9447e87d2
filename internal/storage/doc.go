// Package storage keeps an append-only history of toast lifecycle events.
//
// Nothing is restored from it on startup; it answers "what was shown and how
// did it end" for operators (toastd history, /history on the debug server).
//
// Drivers:
//   - file: JSON Lines, compacted to the newest MaxEntries records
//   - sqlite: a single-table SQLite database (modernc.org/sqlite, no cgo)
package storage
