// Package ledger stores bookings and key/value settings.
//
// Store is the SQL implementation, built with squirrel and usable with
// PostgreSQL (github.com/lib/pq) or SQLite (github.com/mattn/go-sqlite3).
// Memory is an in-process implementation for development and tests.
//
// Both satisfy booking.Repository and the settings contracts used by the
// calendar client and the auto-sync scheduler.
package ledger
