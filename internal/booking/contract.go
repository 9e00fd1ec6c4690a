package booking

import "context"

// Repository is the booking ledger.
type Repository interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id string) (*Booking, error)
	Update(ctx context.Context, b *Booking) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter Filter) ([]*Booking, error)
}

// Propagator pushes a committed booking mutation to the external calendar.
// Implementations must not fail the caller; errors are handled internally.
type Propagator interface {
	Propagate(ctx context.Context, bookingID string, action SyncAction)
}

// TxManager runs fn as one atomic unit. Repository calls made with the
// context passed to fn take part in it.
type TxManager interface {
	DoSerializable(ctx context.Context, fn func(txCtx context.Context) error) error
}
