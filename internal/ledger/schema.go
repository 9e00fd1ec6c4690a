package ledger

// schema is valid for both PostgreSQL and SQLite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS bookings (
		id                TEXT PRIMARY KEY,
		service_id        TEXT NOT NULL,
		booking_date      TEXT NOT NULL,
		start_time        TEXT NOT NULL,
		end_time          TEXT NOT NULL,
		customer_name     TEXT NOT NULL,
		customer_phone    TEXT NOT NULL DEFAULT '',
		customer_email    TEXT NOT NULL DEFAULT '',
		notes             TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL,
		origin            TEXT NOT NULL,
		external_event_id TEXT,
		created_at        TIMESTAMP NOT NULL,
		updated_at        TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS bookings_external_event_id_idx ON bookings (external_event_id)`,
	`CREATE INDEX IF NOT EXISTS bookings_booking_date_idx ON bookings (booking_date)`,
	`CREATE TABLE IF NOT EXISTS settings (
		setting_key TEXT PRIMARY KEY,
		value       TEXT NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`,
}
