package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sautiksau/bookingsync/internal/booking"
)

// Memory is an in-process ledger. It is safe for concurrent use.
type Memory struct {
	// txMu serializes DoSerializable calls.
	txMu sync.Mutex

	mu       sync.RWMutex
	bookings map[string]booking.Booking
	settings map[string]string
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		bookings: make(map[string]booking.Booking),
		settings: make(map[string]string),
	}
}

type memoryTxKey struct{}

// DoSerializable runs fn while no other DoSerializable call on m runs.
// Writes are applied immediately and are not rolled back when fn fails.
func (m *Memory) DoSerializable(ctx context.Context, fn func(txCtx context.Context) error) error {
	if owner, _ := ctx.Value(memoryTxKey{}).(*Memory); owner == m {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(context.WithValue(ctx, memoryTxKey{}, m))
}

// Create inserts a new booking.
func (m *Memory) Create(_ context.Context, b *booking.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.bookings[b.ID]; exists {
		return fmt.Errorf("%w: Create: duplicate id %s", ErrExecQuery, b.ID)
	}
	if err := m.checkLinkLocked(b); err != nil {
		return err
	}
	m.bookings[b.ID] = *b
	return nil
}

// Get returns a copy of the booking with the given id.
func (m *Memory) Get(_ context.Context, id string) (*booking.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	return &b, nil
}

// Update overwrites an existing booking.
func (m *Memory) Update(_ context.Context, b *booking.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.bookings[b.ID]
	if !ok {
		return booking.ErrNotFound
	}
	if err := m.checkLinkLocked(b); err != nil {
		return err
	}
	updated := *b
	updated.CreatedAt = existing.CreatedAt
	m.bookings[b.ID] = updated
	return nil
}

// Delete removes a booking.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bookings[id]; !ok {
		return booking.ErrNotFound
	}
	delete(m.bookings, id)
	return nil
}

// List returns copies of bookings matching filter ordered by date and start time.
func (m *Memory) List(_ context.Context, filter booking.Filter) ([]*booking.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*booking.Booking
	for _, b := range m.bookings {
		if filter.FromDate != "" && b.Date < filter.FromDate {
			continue
		}
		if filter.ToDate != "" && b.Date >= filter.ToDate {
			continue
		}
		if filter.LinkedOnly && !b.IsLinked() {
			continue
		}
		if filter.ActiveOnly && !b.IsActive() {
			continue
		}
		b := b
		result = append(result, &b)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		if result[i].StartTime != result[j].StartTime {
			return result[i].StartTime < result[j].StartTime
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// GetSetting returns the value stored under key and whether it exists.
func (m *Memory) GetSetting(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.settings[key]
	return v, ok, nil
}

// SetSetting stores a setting.
func (m *Memory) SetSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings[key] = value
	return nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

// checkLinkLocked mirrors the unique index on external_event_id.
func (m *Memory) checkLinkLocked(b *booking.Booking) error {
	if !b.IsLinked() {
		return nil
	}
	for id, other := range m.bookings {
		if id != b.ID && other.ExternalEventID == b.ExternalEventID {
			return fmt.Errorf("%w: external event %s already linked to booking %s", ErrExecQuery, b.ExternalEventID, id)
		}
	}
	return nil
}
