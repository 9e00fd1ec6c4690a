package calsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/sautiksau/bookingsync/internal/booking"
	"github.com/sautiksau/bookingsync/internal/calendar"
	"github.com/sautiksau/bookingsync/internal/instrumentation"
	"github.com/sautiksau/bookingsync/internal/logging"
)

// DefaultWindowDays is the default import window length.
const DefaultWindowDays = 90

// CalendarAPI is the subset of calendar.Client used for synchronization.
type CalendarAPI interface {
	Connected(ctx context.Context) (bool, error)
	ResolveCalendarID(ctx context.Context) (string, error)
	ListEvents(ctx context.Context, calendarID string, r calendar.TimeRange) ([]calendar.ExternalEvent, []calendar.MalformedEvent, error)
	CreateEvent(ctx context.Context, calendarID string, in calendar.EventInput) (string, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, in calendar.EventInput) error
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// LastSyncReader exposes a persisted last successful sync time.
type LastSyncReader interface {
	LastSync(ctx context.Context) (time.Time, bool, error)
}

// Config configures a Reconciler.
type Config struct {
	Calendar CalendarAPI
	Bookings booking.Repository
	State    *State

	// LastSync, when set, backs Status before the first run in this process.
	LastSync LastSyncReader

	Location   *time.Location
	WindowDays int

	// ServiceNames maps service ids to the names used in event titles.
	ServiceNames map[string]string

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
	Now     func() time.Time
}

// Reconciler runs imports and propagations.
type Reconciler struct {
	cal          CalendarAPI
	bookings     booking.Repository
	state        *State
	lastSync     LastSyncReader
	loc          *time.Location
	windowDays   int
	serviceNames map[string]string
	logger       *slog.Logger
	metrics      *instrumentation.Metrics
	now          func() time.Time

	group singleflight.Group
}

// New creates a Reconciler.
func New(cfg Config) *Reconciler {
	r := &Reconciler{
		cal:          cfg.Calendar,
		bookings:     cfg.Bookings,
		state:        cfg.State,
		lastSync:     cfg.LastSync,
		loc:          cfg.Location,
		windowDays:   cfg.WindowDays,
		serviceNames: cfg.ServiceNames,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		now:          cfg.Now,
	}
	if r.state == nil {
		r.state = NewState(AuthTypeServiceAccount)
	}
	if r.loc == nil {
		r.loc = time.Local
	}
	if r.windowDays <= 0 {
		r.windowDays = DefaultWindowDays
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = logging.WithService(r.logger, "calsync")
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

type triggerKey struct{}

// WithTrigger labels imports started with ctx for metrics and logs.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

func triggerFrom(ctx context.Context) string {
	if t, ok := ctx.Value(triggerKey{}).(string); ok && t != "" {
		return t
	}
	return instrumentation.TriggerManual
}

type importResult struct {
	stats ImportStats
	err   error
}

// Import reconciles the ledger with the calendar. Concurrent callers share a
// single run and its result. A disconnected calendar yields
// ImportStats{Connected: false} and a nil error. A failure mid-run returns the
// stats accumulated so far together with the error; applied changes are kept.
func (r *Reconciler) Import(ctx context.Context) (ImportStats, error) {
	v, _, _ := r.group.Do("import", func() (interface{}, error) {
		// The run outlives any single caller.
		stats, err := r.runImport(context.WithoutCancel(ctx))
		return importResult{stats: stats, err: err}, nil
	})
	res := v.(importResult)
	return res.stats, res.err
}

func (r *Reconciler) runImport(ctx context.Context) (stats ImportStats, err error) {
	trigger := triggerFrom(ctx)
	start := time.Now()
	logger := logging.WithOperation(r.logger, "import").With("trigger", trigger)

	ctx, span := instrumentation.StartSpan(ctx, "calsync.import",
		instrumentation.NewSpanAttributeBuilder().WithTrigger(trigger).Build()...)
	defer func() {
		status := instrumentation.StatusSuccess
		switch {
		case err != nil:
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, err)
		case !stats.Connected:
			status = instrumentation.StatusSkipped
		default:
			instrumentation.SetSpanSuccess(span)
		}
		r.metrics.RecordSyncRun(ctx, instrumentation.SyncRun{
			Trigger:  trigger,
			Status:   status,
			Created:  stats.Created,
			Updated:  stats.Updated,
			Deleted:  stats.Deleted,
			Skipped:  stats.Skipped,
			Invalid:  stats.Invalid,
			Duration: time.Since(start),
		})
		span.End()
	}()

	connected, err := r.cal.Connected(ctx)
	if err != nil {
		return stats, err
	}
	if !connected {
		r.state.setConnection(false, "")
		logger.Info("calendar not connected, import skipped", logging.Status(logging.StatusSkipped))
		return ImportStats{Connected: false}, nil
	}

	calendarID, err := r.cal.ResolveCalendarID(ctx)
	if err != nil {
		return stats, err
	}

	from, to := r.window()
	events, malformed, err := r.cal.ListEvents(ctx, calendarID, calendar.TimeRange{Start: from, End: to})
	if errors.Is(err, calendar.ErrNotConnected) {
		r.state.setConnection(false, calendarID)
		logger.Info("calendar not connected, import skipped", logging.Status(logging.StatusSkipped))
		return ImportStats{Connected: false}, nil
	}
	if err != nil {
		logger.Error("failed to fetch calendar events", logging.CalendarID(calendarID), logging.Err(err))
		return stats, err
	}
	stats.Connected = true
	r.state.setConnection(true, calendarID)

	stats.TotalExternalEvents = len(events) + len(malformed)
	stats.Invalid = len(malformed)

	// Matching uses every linked booking so an event moved into the window
	// is found; only bookings inside the window can be considered vanished.
	linked, err := r.bookings.List(ctx, booking.Filter{LinkedOnly: true})
	if err != nil {
		return stats, fmt.Errorf("failed to load linked bookings: %w", err)
	}
	byEvent := make(map[string]*booking.Booking, len(linked))
	for _, b := range linked {
		byEvent[b.ExternalEventID] = b
	}

	// seen holds the links of every slot produced by this run. kept holds
	// events whose links must survive even though no slot was produced.
	seen := make(map[string]bool, stats.TotalExternalEvents)
	kept := make(map[string]bool, len(malformed))
	for _, m := range malformed {
		if m.ID != "" {
			kept[m.ID] = true
		}
		if b, ok := byEvent[m.ID]; !ok || b.Origin != booking.OriginInternal {
			stats.ExternalOriginCount++
		}
		logger.Warn("skipping malformed calendar event", logging.EventID(m.ID), slog.String("reason", m.Reason))
	}

	fromDate, toDate := from.Format(booking.DateFormat), to.Format(booking.DateFormat)
	for _, ev := range events {
		if b, ok := byEvent[ev.ID]; !ok || b.Origin != booking.OriginInternal {
			stats.ExternalOriginCount++
		}

		slots, err := eventSlots(ev, r.loc)
		if err != nil {
			kept[ev.ID] = true
			stats.Invalid++
			logger.Warn("skipping calendar event", logging.EventID(ev.ID), logging.Err(err))
			continue
		}

	slotLoop:
		for _, s := range slots {
			b, linkedBooking := byEvent[s.key]
			if !linkedBooking && (s.date < fromDate || s.date >= toDate) {
				continue
			}
			seen[s.key] = true

			switch {
			case !linkedBooking:
				created, err := r.createImported(ctx, ev, s)
				if err != nil {
					return stats, err
				}
				byEvent[s.key] = created
				stats.Created++
			case !b.IsActive():
				// The booking was cancelled but its event survived.
				if err := r.withdrawEvent(ctx, calendarID, b); err != nil {
					return stats, err
				}
				logger.Info("removed calendar event of cancelled booking",
					logging.BookingID(b.ID), logging.EventID(ev.ID))
				stats.Deleted++
				break slotLoop
			case matches(b, s, ev.Summary):
				stats.Skipped++
			default:
				apply(b, s, ev.Summary)
				b.UpdatedAt = r.now()
				if err := r.bookings.Update(ctx, b); err != nil {
					return stats, fmt.Errorf("failed to update booking %s: %w", b.ID, err)
				}
				logger.Debug("booking updated from calendar", logging.BookingID(b.ID), logging.EventID(ev.ID))
				stats.Updated++
			}
		}
	}

	for _, b := range linked {
		if seen[b.ExternalEventID] || kept[calendarEventID(b.ExternalEventID)] {
			continue
		}
		if b.Date < fromDate || b.Date >= toDate || b.ExternalEventID == "" {
			continue
		}
		if err := r.removeVanished(ctx, b); err != nil {
			return stats, err
		}
		logger.Info("linked calendar event vanished",
			logging.BookingID(b.ID), logging.EventID(b.ExternalEventID),
			slog.String("origin", string(b.Origin)))
		stats.Deleted++
	}

	r.state.recordSync(calendarID, r.now())
	logger.Info("calendar import completed",
		logging.CalendarID(calendarID),
		slog.Int("created", stats.Created),
		slog.Int("updated", stats.Updated),
		slog.Int("deleted", stats.Deleted),
		slog.Int("skipped", stats.Skipped),
		slog.Int("invalid", stats.Invalid),
		logging.Status(logging.StatusSuccess))
	return stats, nil
}

// window returns [today 00:00, today+windowDays) in the reconciler's location.
func (r *Reconciler) window() (time.Time, time.Time) {
	now := r.now().In(r.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.loc)
	return today, today.AddDate(0, 0, r.windowDays)
}

func (r *Reconciler) createImported(ctx context.Context, ev calendar.ExternalEvent, s slot) (*booking.Booking, error) {
	now := r.now()
	b := &booking.Booking{
		ID:              uuid.NewString(),
		ServiceID:       booking.ExternalServiceID,
		Date:            s.date,
		StartTime:       s.start,
		EndTime:         s.end,
		CustomerName:    ev.Summary,
		Status:          booking.StatusConfirmed,
		Origin:          booking.OriginExternal,
		ExternalEventID: s.key,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.bookings.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to import event %s: %w", ev.ID, err)
	}
	return b, nil
}

// withdrawEvent deletes the calendar event of a cancelled booking and unlinks
// it. An event already gone counts as deleted.
func (r *Reconciler) withdrawEvent(ctx context.Context, calendarID string, b *booking.Booking) error {
	eventID := calendarEventID(b.ExternalEventID)
	if err := r.cal.DeleteEvent(ctx, calendarID, eventID); err != nil && !calendar.IsNotFound(err) {
		return fmt.Errorf("failed to delete event %s of cancelled booking %s: %w", eventID, b.ID, err)
	}
	b.ExternalEventID = ""
	b.UpdatedAt = r.now()
	if err := r.bookings.Update(ctx, b); err != nil {
		return fmt.Errorf("failed to unlink booking %s: %w", b.ID, err)
	}
	return nil
}

// removeVanished deletes an imported booking, or cancels and unlinks a booking
// created in this system.
func (r *Reconciler) removeVanished(ctx context.Context, b *booking.Booking) error {
	if b.Origin == booking.OriginExternal {
		if err := r.bookings.Delete(ctx, b.ID); err != nil && !errors.Is(err, booking.ErrNotFound) {
			return fmt.Errorf("failed to delete booking %s: %w", b.ID, err)
		}
		return nil
	}

	b.Status = booking.StatusCancelled
	b.ExternalEventID = ""
	b.UpdatedAt = r.now()
	if err := r.bookings.Update(ctx, b); err != nil {
		return fmt.Errorf("failed to cancel booking %s: %w", b.ID, err)
	}
	return nil
}

// Status reports connectivity, the target calendar and the last successful
// sync. It performs one token exchange. The calendar id is left empty when it
// cannot be read while the calendar is disconnected.
func (r *Reconciler) Status(ctx context.Context) (Status, error) {
	connected, err := r.cal.Connected(ctx)
	if err != nil {
		return Status{}, err
	}
	calendarID, err := r.cal.ResolveCalendarID(ctx)
	if err != nil {
		if connected {
			return Status{}, err
		}
		r.logger.Warn("failed to resolve calendar id", logging.Err(err))
	}
	r.state.setConnection(connected, calendarID)

	st := r.state.Snapshot()
	if calendarID != "" {
		st.CalendarID = calendarID
	}
	if st.LastSync == nil && r.lastSync != nil {
		if last, ok, err := r.lastSync.LastSync(ctx); err != nil {
			r.logger.Warn("failed to read last sync time", logging.Err(err))
		} else if ok {
			st.LastSync = &last
		}
	}
	return st, nil
}

// State returns the reconciler's sync state.
func (r *Reconciler) State() *State {
	return r.state
}
