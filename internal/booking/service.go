package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sautiksau/bookingsync/internal/logging"
)

// Service implements the booking flow on top of the ledger.
type Service struct {
	repo       Repository
	propagator Propagator
	logger     *slog.Logger
	loc        *time.Location
	now        func() time.Time

	// tx, when the repository provides one, makes the overlap check and
	// the write atomic across processes. slotMu does so within this one.
	tx     TxManager
	slotMu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithLocation sets the time zone booking dates and times are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a booking Service. propagator may be nil when calendar
// synchronization is disabled.
func NewService(repo Repository, propagator Propagator, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:       repo,
		propagator: propagator,
		logger:     logging.WithService(logger, "booking"),
		loc:        time.Local,
		now:        time.Now,
	}
	if tx, ok := repo.(TxManager); ok {
		s.tx = tx
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a booking by id.
func (s *Service) Get(ctx context.Context, id string) (*Booking, error) {
	return s.repo.Get(ctx, id)
}

// List returns bookings matching filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Booking, error) {
	return s.repo.List(ctx, filter)
}

// Create validates and stores a new pending booking, then propagates it.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Booking, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	now := s.now()
	b := &Booking{
		ID:            uuid.NewString(),
		ServiceID:     in.ServiceID,
		Date:          in.Date,
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,
		CustomerEmail: in.CustomerEmail,
		Notes:         in.Notes,
		Status:        StatusPending,
		Origin:        OriginInternal,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := s.reserve(ctx, func(ctx context.Context) error {
		if err := s.ensureFree(ctx, "", in.Date, in.StartTime, in.EndTime); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, b); err != nil {
			return fmt.Errorf("failed to store booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		logging.BookingID(b.ID),
		logging.CustomerHash(b.CustomerPhone))

	s.propagate(ctx, b.ID, SyncCreate)
	return b, nil
}

// Reschedule moves an active booking to a new date and time.
func (s *Service) Reschedule(ctx context.Context, id, date, start, end string) (*Booking, error) {
	if err := validateSlot(date, start, end); err != nil {
		return nil, err
	}
	return s.reschedule(ctx, id, date, start, end, nil)
}

// RescheduleForCustomer moves a booking on behalf of the customer who made
// it. phone must match the booking's phone and the new slot must start in
// the future. A mismatching phone is reported as ErrNotFound.
func (s *Service) RescheduleForCustomer(ctx context.Context, id, phone, date, start, end string) (*Booking, error) {
	if err := validateSlot(date, start, end); err != nil {
		return nil, err
	}
	if normalizePhone(phone) == "" {
		return nil, fmt.Errorf("%w: customer phone is required", ErrInvalidInput)
	}
	from, err := ParseDateTime(date, start, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !from.After(s.now()) {
		return nil, fmt.Errorf("%w: new time must be in the future", ErrInvalidInput)
	}

	return s.reschedule(ctx, id, date, start, end, func(b *Booking) error {
		if b.Origin != OriginInternal || normalizePhone(b.CustomerPhone) != normalizePhone(phone) {
			return ErrNotFound
		}
		return nil
	})
}

// reschedule moves booking id after authorize, when set, accepts it.
func (s *Service) reschedule(ctx context.Context, id, date, start, end string, authorize func(*Booking) error) (*Booking, error) {
	var b *Booking
	err := s.reserve(ctx, func(ctx context.Context) error {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(current); err != nil {
				return err
			}
		}
		if !current.IsActive() {
			return ErrAlreadyCancelled
		}
		if err := s.ensureFree(ctx, current.ID, date, start, end); err != nil {
			return err
		}

		current.Date, current.StartTime, current.EndTime = date, start, end
		current.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, current); err != nil {
			return fmt.Errorf("failed to update booking: %w", err)
		}
		b = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking rescheduled", logging.BookingID(b.ID), slog.Bool("by_customer", authorize != nil))

	s.propagate(ctx, b.ID, SyncUpdate)
	return b, nil
}

// Confirm marks a pending booking confirmed.
func (s *Service) Confirm(ctx context.Context, id string) (*Booking, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.IsActive() {
		return nil, ErrAlreadyCancelled
	}
	if b.Status == StatusConfirmed {
		return b, nil
	}

	b.Status = StatusConfirmed
	b.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}

	s.propagate(ctx, b.ID, SyncUpdate)
	return b, nil
}

// Cancel marks a booking cancelled and removes its external event.
func (s *Service) Cancel(ctx context.Context, id string) (*Booking, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	b.Status = StatusCancelled
	b.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}

	s.logger.Info("booking cancelled", logging.BookingID(b.ID))

	s.propagate(ctx, b.ID, SyncDelete)
	return b, nil
}

// reserve runs fn, which checks a slot and writes it, so that no other
// reservation interleaves with it.
func (s *Service) reserve(ctx context.Context, fn func(ctx context.Context) error) error {
	s.slotMu.Lock()
	defer s.slotMu.Unlock()
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.DoSerializable(ctx, fn)
}

// ensureFree returns ErrSlotTaken if [start, end) on date overlaps any
// active booking other than exceptID.
func (s *Service) ensureFree(ctx context.Context, exceptID, date, start, end string) error {
	from, to, err := (&Booking{Date: date, StartTime: start, EndTime: end}).Interval(s.loc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	next, err := time.Parse(DateFormat, date)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	existing, err := s.repo.List(ctx, Filter{
		FromDate:   date,
		ToDate:     next.AddDate(0, 0, 1).Format(DateFormat),
		ActiveOnly: true,
	})
	if err != nil {
		return fmt.Errorf("failed to load bookings: %w", err)
	}

	for _, other := range existing {
		if other.ID == exceptID {
			continue
		}
		oStart, oEnd, err := other.Interval(s.loc)
		if err != nil {
			s.logger.Warn("skipping booking with malformed times",
				logging.BookingID(other.ID), logging.Err(err))
			continue
		}
		if Overlaps(from, to, oStart, oEnd) {
			return ErrSlotTaken
		}
	}
	return nil
}

// propagate hands a committed mutation to the calendar propagator.
func (s *Service) propagate(ctx context.Context, id string, action SyncAction) {
	if s.propagator == nil {
		return
	}
	s.propagator.Propagate(context.WithoutCancel(ctx), id, action)
}

// IsClientError reports whether err is caused by caller input rather than
// infrastructure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrSlotTaken) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyCancelled)
}
