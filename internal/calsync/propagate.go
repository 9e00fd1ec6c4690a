package calsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sautiksau/bookingsync/internal/booking"
	"github.com/sautiksau/bookingsync/internal/calendar"
	"github.com/sautiksau/bookingsync/internal/instrumentation"
	"github.com/sautiksau/bookingsync/internal/logging"
)

var _ booking.Propagator = (*Reconciler)(nil)

// errSkipped marks a propagation that intentionally did nothing.
var errSkipped = errors.New("propagation skipped")

// Propagate pushes a committed mutation of one booking to the calendar.
// Failures are logged and counted, never returned. A booking whose create
// failed stays unlinked until its next update.
func (r *Reconciler) Propagate(ctx context.Context, bookingID string, action booking.SyncAction) {
	logger := logging.WithOperation(r.logger, "propagate").With(
		logging.BookingID(bookingID),
		logging.Action(string(action)))

	ctx, span := instrumentation.StartSpan(ctx, "calsync.propagate",
		instrumentation.NewSpanAttributeBuilder().
			WithBooking(bookingID).
			WithAction(string(action)).
			Build()...)
	defer span.End()

	err := r.propagate(ctx, bookingID, action)
	switch {
	case err == nil:
		instrumentation.SetSpanSuccess(span)
		r.metrics.RecordPropagation(ctx, string(action), instrumentation.StatusSuccess)
		logger.Debug("booking propagated", logging.Status(logging.StatusSuccess))
	case errors.Is(err, errSkipped), errors.Is(err, calendar.ErrNotConnected):
		r.metrics.RecordPropagation(ctx, string(action), instrumentation.StatusSkipped)
		logger.Debug("booking propagation skipped", logging.Status(logging.StatusSkipped), slog.String("reason", err.Error()))
	default:
		instrumentation.SetSpanError(span, err)
		r.metrics.RecordPropagation(ctx, string(action), instrumentation.StatusError)
		logger.Error("failed to propagate booking", logging.Status(logging.StatusError), logging.Err(err))
	}
}

func (r *Reconciler) propagate(ctx context.Context, bookingID string, action booking.SyncAction) error {
	b, err := r.bookings.Get(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("failed to load booking: %w", err)
	}

	calendarID, err := r.cal.ResolveCalendarID(ctx)
	if err != nil {
		return err
	}

	switch action {
	case booking.SyncCreate:
		if !b.IsActive() {
			return fmt.Errorf("%w: booking is cancelled", errSkipped)
		}
		if b.IsLinked() {
			return r.updateEvent(ctx, calendarID, b)
		}
		return r.createEvent(ctx, calendarID, b)
	case booking.SyncUpdate:
		if !b.IsActive() {
			return r.deleteEvent(ctx, calendarID, b)
		}
		if !b.IsLinked() {
			return r.createEvent(ctx, calendarID, b)
		}
		return r.updateEvent(ctx, calendarID, b)
	case booking.SyncDelete:
		return r.deleteEvent(ctx, calendarID, b)
	default:
		return fmt.Errorf("unknown sync action %q", action)
	}
}

func (r *Reconciler) createEvent(ctx context.Context, calendarID string, b *booking.Booking) error {
	in, err := r.eventInput(b)
	if err != nil {
		return err
	}
	eventID, err := r.cal.CreateEvent(ctx, calendarID, in)
	if err != nil {
		return err
	}
	return r.relink(ctx, b, eventID)
}

func (r *Reconciler) updateEvent(ctx context.Context, calendarID string, b *booking.Booking) error {
	if partOfLongerEvent(b) {
		return fmt.Errorf("%w: booking mirrors one day of a longer event", errSkipped)
	}
	in, err := r.eventInput(b)
	if err != nil {
		return err
	}
	err = r.cal.UpdateEvent(ctx, calendarID, b.ExternalEventID, in)
	if calendar.IsNotFound(err) {
		// The event was removed on the calendar side; recreate it.
		eventID, err := r.cal.CreateEvent(ctx, calendarID, in)
		if err != nil {
			return err
		}
		return r.relink(ctx, b, eventID)
	}
	return err
}

func (r *Reconciler) deleteEvent(ctx context.Context, calendarID string, b *booking.Booking) error {
	if !b.IsLinked() {
		return fmt.Errorf("%w: booking is not linked", errSkipped)
	}
	if err := r.cal.DeleteEvent(ctx, calendarID, calendarEventID(b.ExternalEventID)); err != nil && !calendar.IsNotFound(err) {
		return err
	}
	return r.relink(ctx, b, "")
}

// relink stores eventID as b's link. The booking is re-read so concurrent
// field changes are not overwritten.
func (r *Reconciler) relink(ctx context.Context, b *booking.Booking, eventID string) error {
	current, err := r.bookings.Get(ctx, b.ID)
	if err != nil {
		return fmt.Errorf("failed to reload booking: %w", err)
	}
	current.ExternalEventID = eventID
	current.UpdatedAt = r.now()
	if err := r.bookings.Update(ctx, current); err != nil {
		return fmt.Errorf("failed to link booking: %w", err)
	}
	return nil
}
