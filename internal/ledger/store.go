package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sautiksau/bookingsync/internal/booking"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

var bookingColumns = []string{
	"id",
	"service_id",
	"booking_date",
	"start_time",
	"end_time",
	"customer_name",
	"customer_phone",
	"customer_email",
	"notes",
	"status",
	"origin",
	"external_event_id",
	"created_at",
	"updated_at",
}

// Store is the SQL booking ledger.
type Store struct {
	db      *sql.DB
	driver  string
	builder sq.StatementBuilderType
}

// executor is implemented by *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type txKey struct{}

// conn returns the transaction carried by ctx, or the database handle.
func (s *Store) conn(ctx context.Context) executor {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// DoSerializable runs fn in a serializable transaction. Ledger calls made
// with the context passed to fn join the transaction, which commits when fn
// returns nil. A serialization conflict is reported as booking.ErrSlotTaken.
// Nested calls run fn in the enclosing transaction.
func (s *Store) DoSerializable(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	// SQLite runs on a single connection, so its transactions never interleave.
	var opts *sql.TxOptions
	if s.driver == DriverPostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrExecQuery, err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		if isSerializationFailure(err) {
			return fmt.Errorf("%w: %v", booking.ErrSlotTaken, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if isSerializationFailure(err) {
			return fmt.Errorf("%w: %v", booking.ErrSlotTaken, err)
		}
		return fmt.Errorf("%w: commit: %v", ErrExecQuery, err)
	}
	return nil
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "40001"
}

// Open connects to the database, verifies the connection and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// Avoid "database is locked" errors.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store, err := New(db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// New wraps an open database handle.
func New(db *sql.DB, driver string) (*Store, error) {
	builder := sq.StatementBuilder
	switch driver {
	case DriverPostgres:
		builder = builder.PlaceholderFormat(sq.Dollar)
	case DriverSQLite:
		builder = builder.PlaceholderFormat(sq.Question)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	return &Store{db: db, driver: driver, builder: builder}, nil
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: migrate: %v", ErrExecQuery, err)
		}
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new booking.
func (s *Store) Create(ctx context.Context, b *booking.Booking) error {
	query, args, err := s.builder.Insert("bookings").
		Columns(bookingColumns...).
		Values(
			b.ID,
			b.ServiceID,
			b.Date,
			b.StartTime,
			b.EndTime,
			b.CustomerName,
			b.CustomerPhone,
			b.CustomerEmail,
			b.Notes,
			string(b.Status),
			string(b.Origin),
			nullString(b.ExternalEventID),
			b.CreatedAt.UTC(),
			b.UpdatedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: Create: %v", ErrBuildQuery, err)
	}

	if _, err := s.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: Create: %w", ErrExecQuery, err)
	}
	return nil
}

// Get returns a booking by id, or booking.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*booking.Booking, error) {
	query, args, err := s.builder.Select(bookingColumns...).
		From("bookings").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: Get: %v", ErrBuildQuery, err)
	}

	b, err := scanBooking(s.conn(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, booking.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: Get: %v", ErrScanRow, err)
	}
	return b, nil
}

// Update overwrites the mutable fields of a booking.
func (s *Store) Update(ctx context.Context, b *booking.Booking) error {
	query, args, err := s.builder.Update("bookings").
		SetMap(map[string]interface{}{
			"service_id":        b.ServiceID,
			"booking_date":      b.Date,
			"start_time":        b.StartTime,
			"end_time":          b.EndTime,
			"customer_name":     b.CustomerName,
			"customer_phone":    b.CustomerPhone,
			"customer_email":    b.CustomerEmail,
			"notes":             b.Notes,
			"status":            string(b.Status),
			"origin":            string(b.Origin),
			"external_event_id": nullString(b.ExternalEventID),
			"updated_at":        b.UpdatedAt.UTC(),
		}).
		Where(sq.Eq{"id": b.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: Update: %v", ErrBuildQuery, err)
	}

	res, err := s.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: Update: %w", ErrExecQuery, err)
	}
	return requireAffected(res)
}

// Delete removes a booking.
func (s *Store) Delete(ctx context.Context, id string) error {
	query, args, err := s.builder.Delete("bookings").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: Delete: %v", ErrBuildQuery, err)
	}

	res, err := s.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: Delete: %w", ErrExecQuery, err)
	}
	return requireAffected(res)
}

// List returns bookings matching filter ordered by date and start time.
func (s *Store) List(ctx context.Context, filter booking.Filter) ([]*booking.Booking, error) {
	qb := s.builder.Select(bookingColumns...).
		From("bookings").
		OrderBy("booking_date ASC", "start_time ASC", "id ASC")

	if filter.FromDate != "" {
		qb = qb.Where(sq.GtOrEq{"booking_date": filter.FromDate})
	}
	if filter.ToDate != "" {
		qb = qb.Where(sq.Lt{"booking_date": filter.ToDate})
	}
	if filter.LinkedOnly {
		qb = qb.Where(sq.NotEq{"external_event_id": nil})
	}
	if filter.ActiveOnly {
		qb = qb.Where(sq.Eq{"status": []string{
			string(booking.StatusPending),
			string(booking.StatusConfirmed),
		}})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: List: %v", ErrBuildQuery, err)
	}

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: List: %w", ErrExecQuery, err)
	}
	defer rows.Close()

	var bookings []*booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: List: %w", ErrScanRow, err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: List: %w", ErrScanRow, err)
	}
	return bookings, nil
}

// GetSetting returns the value stored under key and whether it exists.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	query, args, err := s.builder.Select("value").
		From("settings").
		Where(sq.Eq{"setting_key": key}).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("%w: GetSetting: %v", ErrBuildQuery, err)
	}

	var value string
	err = s.conn(ctx).QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: GetSetting: %v", ErrScanRow, err)
	}
	return value, true, nil
}

// SetSetting upserts a setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	query, args, err := s.builder.Insert("settings").
		Columns("setting_key", "value", "updated_at").
		Values(key, value, time.Now().UTC()).
		Suffix("ON CONFLICT (setting_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: SetSetting: %v", ErrBuildQuery, err)
	}

	if _, err := s.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: SetSetting: %v", ErrExecQuery, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*booking.Booking, error) {
	var (
		b               booking.Booking
		status, origin  string
		externalEventID sql.NullString
	)
	err := row.Scan(
		&b.ID,
		&b.ServiceID,
		&b.Date,
		&b.StartTime,
		&b.EndTime,
		&b.CustomerName,
		&b.CustomerPhone,
		&b.CustomerEmail,
		&b.Notes,
		&status,
		&origin,
		&externalEventID,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = booking.Status(status)
	b.Origin = booking.Origin(origin)
	b.ExternalEventID = externalEventID.String
	return &b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", ErrExecQuery, err)
	}
	if n == 0 {
		return booking.ErrNotFound
	}
	return nil
}
