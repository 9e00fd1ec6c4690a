package ledger

import "errors"

var (
	// ErrBuildQuery is returned when a SQL statement cannot be built.
	ErrBuildQuery = errors.New("ledger: failed to build query")

	// ErrExecQuery is returned when a SQL statement fails.
	ErrExecQuery = errors.New("ledger: failed to execute query")

	// ErrScanRow is returned when a result row cannot be decoded.
	ErrScanRow = errors.New("ledger: failed to scan row")

	// ErrUnsupportedDriver is returned for database drivers other than postgres and sqlite3.
	ErrUnsupportedDriver = errors.New("ledger: unsupported driver")
)
