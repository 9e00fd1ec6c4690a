package ledger

import (
	"context"

	"github.com/sautiksau/bookingsync/internal/booking"
)

// DriverMemory selects the in-memory ledger.
const DriverMemory = "memory"

// Ledger is the full set of operations both implementations provide.
type Ledger interface {
	booking.Repository
	booking.TxManager
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Ledger = (*Store)(nil)
	_ Ledger = (*Memory)(nil)
)

// Connect opens the ledger for driver. The memory driver ignores dsn.
func Connect(ctx context.Context, driver, dsn string) (Ledger, error) {
	if driver == DriverMemory {
		return NewMemory(), nil
	}
	return Open(ctx, driver, dsn)
}
