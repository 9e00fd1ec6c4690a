package calsync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sautiksau/bookingsync/internal/booking"
	"github.com/sautiksau/bookingsync/internal/ledger"
)

type propagationFixture struct {
	repo *ledger.Memory
	cal  *fakeCalendar
	rec  *Reconciler
	svc  *booking.Service
}

func newPropagationFixture(t *testing.T) *propagationFixture {
	t.Helper()
	repo := ledger.NewMemory()
	cal := newFakeCalendar()
	rec := newTestReconciler(t, cal, repo)
	svc := booking.NewService(repo, rec, slog.New(slog.NewTextHandler(io.Discard, nil)),
		booking.WithLocation(time.UTC),
		booking.WithClock(func() time.Time { return testNow }),
	)
	return &propagationFixture{repo: repo, cal: cal, rec: rec, svc: svc}
}

func (f *propagationFixture) create(t *testing.T) *booking.Booking {
	t.Helper()
	b, err := f.svc.Create(context.Background(), booking.CreateInput{
		ServiceID:     "haircut",
		Date:          "2026-03-02",
		StartTime:     "10:00",
		EndTime:       "11:00",
		CustomerName:  "Jane Doe",
		CustomerPhone: "+37060000000",
		CustomerEmail: "jane@example.com",
		Notes:         "Window seat",
	})
	require.NoError(t, err)
	return b
}

func (f *propagationFixture) get(t *testing.T, id string) *booking.Booking {
	t.Helper()
	b, err := f.repo.Get(context.Background(), id)
	require.NoError(t, err)
	return b
}

func TestPropagateCreateLinksBooking(t *testing.T) {
	f := newPropagationFixture(t)
	b := f.create(t)

	require.Len(t, f.cal.created, 1)
	in := f.cal.created[0]
	assert.Equal(t, "Haircut - Jane Doe", in.Summary)
	assert.Contains(t, in.Description, "Phone: +37060000000")
	assert.Contains(t, in.Description, "Email: jane@example.com")
	assert.Contains(t, in.Description, "Notes: Window seat")
	assert.Contains(t, in.Description, "Booking ID: "+b.ID)
	assert.True(t, in.Start.Equal(at(2, 10, 0)))
	assert.True(t, in.End.Equal(at(2, 11, 0)))
	assert.Equal(t, "UTC", in.TimeZone)

	assert.Equal(t, "evt-1", f.get(t, b.ID).ExternalEventID)
}

func TestPropagateRescheduleUpdatesEvent(t *testing.T) {
	f := newPropagationFixture(t)
	b := f.create(t)

	_, err := f.svc.Reschedule(context.Background(), b.ID, "2026-03-03", "12:00", "13:00")
	require.NoError(t, err)

	in, ok := f.cal.updated["evt-1"]
	require.True(t, ok)
	assert.True(t, in.Start.Equal(at(3, 12, 0)))
	assert.Equal(t, "evt-1", f.get(t, b.ID).ExternalEventID)
}

func TestPropagateUpdateRecreatesMissingEvent(t *testing.T) {
	f := newPropagationFixture(t)
	b := f.create(t)
	f.cal.remove("evt-1")

	_, err := f.svc.Confirm(context.Background(), b.ID)
	require.NoError(t, err)

	assert.Len(t, f.cal.created, 2)
	got := f.get(t, b.ID)
	assert.Equal(t, "evt-2", got.ExternalEventID)
	assert.Equal(t, booking.StatusConfirmed, got.Status)
}

func TestPropagateCancelDeletesEvent(t *testing.T) {
	f := newPropagationFixture(t)
	b := f.create(t)

	_, err := f.svc.Cancel(context.Background(), b.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"evt-1"}, f.cal.deleted)
	got := f.get(t, b.ID)
	assert.False(t, got.IsLinked())
	assert.Equal(t, booking.StatusCancelled, got.Status)
}

func TestPropagateCancelOfVanishedEventUnlinks(t *testing.T) {
	f := newPropagationFixture(t)
	b := f.create(t)
	f.cal.remove("evt-1")

	_, err := f.svc.Cancel(context.Background(), b.ID)
	require.NoError(t, err)

	assert.Empty(t, f.cal.deleted)
	assert.False(t, f.get(t, b.ID).IsLinked())
}

func TestPropagateCreateSkipsCancelledBooking(t *testing.T) {
	f := newPropagationFixture(t)
	b := seed(t, f.repo, booking.Booking{
		ID: "b1", Status: booking.StatusCancelled,
		Date: "2026-03-02", StartTime: "10:00", EndTime: "11:00", CustomerName: "Jane",
	})

	f.rec.Propagate(context.Background(), b.ID, booking.SyncCreate)

	assert.Empty(t, f.cal.created)
	assert.False(t, f.get(t, b.ID).IsLinked())
}

func TestPropagateUpdateOfUnlinkedBookingCreatesEvent(t *testing.T) {
	f := newPropagationFixture(t)
	b := seed(t, f.repo, booking.Booking{
		ID: "b1", Date: "2026-03-02", StartTime: "10:00", EndTime: "11:00", CustomerName: "Jane",
	})

	f.rec.Propagate(context.Background(), b.ID, booking.SyncUpdate)

	require.Len(t, f.cal.created, 1)
	assert.Equal(t, "evt-1", f.get(t, b.ID).ExternalEventID)
}

func TestPropagateExternalBookingKeepsTitle(t *testing.T) {
	f := newPropagationFixture(t)
	b := seed(t, f.repo, booking.Booking{
		ID: "b1", Origin: booking.OriginExternal, ServiceID: booking.ExternalServiceID,
		Date: "2026-03-02", StartTime: "10:00", EndTime: "11:00", CustomerName: "Dentist",
	})

	f.rec.Propagate(context.Background(), b.ID, booking.SyncCreate)

	require.Len(t, f.cal.created, 1)
	assert.Equal(t, "Dentist", f.cal.created[0].Summary)
}

func TestPropagateNeverFailsCaller(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		f := newPropagationFixture(t)
		f.cal.connected = false
		b := f.create(t)
		assert.False(t, f.get(t, b.ID).IsLinked())
	})

	t.Run("api error", func(t *testing.T) {
		f := newPropagationFixture(t)
		f.cal.createErr = errors.New("quota exceeded")
		b := f.create(t)
		assert.False(t, f.get(t, b.ID).IsLinked())
	})

	t.Run("missing booking", func(t *testing.T) {
		f := newPropagationFixture(t)
		f.rec.Propagate(context.Background(), "does-not-exist", booking.SyncDelete)
		assert.Empty(t, f.cal.deleted)
	})
}

func TestPropagatedBookingIsSkippedOnImport(t *testing.T) {
	f := newPropagationFixture(t)
	f.create(t)

	stats, err := f.rec.Import(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.ExternalOriginCount)
	assert.False(t, stats.Changed())
}

func TestPropagateCancelOfSplitEventDeletesWholeEvent(t *testing.T) {
	f := newPropagationFixture(t)
	f.cal.add("night", "Night shift", at(2, 22, 0), at(3, 2, 0))
	_, err := f.rec.Import(context.Background())
	require.NoError(t, err)

	second := byEventID(t, f.repo, "night#2026-03-03")
	_, err = f.svc.Cancel(context.Background(), second.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"night"}, f.cal.deleted)
	assert.False(t, f.get(t, second.ID).IsLinked())

	// The remaining day goes away once the event is gone.
	stats, err := f.rec.Import(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Deleted)
}

func TestPropagateSkipsUpdateOfSplitEvent(t *testing.T) {
	f := newPropagationFixture(t)
	f.cal.add("night", "Night shift", at(2, 22, 0), at(3, 2, 0))
	_, err := f.rec.Import(context.Background())
	require.NoError(t, err)

	second := byEventID(t, f.repo, "night#2026-03-03")
	_, err = f.svc.Reschedule(context.Background(), second.ID, "2026-03-03", "03:00", "04:00")
	require.NoError(t, err)

	assert.Empty(t, f.cal.updated)
	assert.True(t, f.cal.has("night"))

	// The calendar stays authoritative for the event.
	stats, err := f.rec.Import(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, "02:00", f.get(t, second.ID).EndTime)
}

func TestCancelledBookingConvergesAfterFailedDelete(t *testing.T) {
	f := newPropagationFixture(t)
	b := f.create(t)
	require.True(t, f.get(t, b.ID).IsLinked())

	f.cal.deleteErr = errors.New("backend error")
	_, err := f.svc.Cancel(context.Background(), b.ID)
	require.NoError(t, err)
	assert.True(t, f.cal.has("evt-1"))

	f.cal.deleteErr = nil
	stats, err := f.rec.Import(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Deleted)
	assert.False(t, f.cal.has("evt-1"))
	assert.False(t, f.get(t, b.ID).IsLinked())
}
