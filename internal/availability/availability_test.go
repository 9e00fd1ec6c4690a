package availability

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

func newTestCalculator(t *testing.T, repo BookingLister, now time.Time, mutate func(*Config)) *Calculator {
	t.Helper()
	cfg := Config{
		Bookings: repo,
		Location: time.UTC,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:      func() time.Time { return now },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func addBooking(t *testing.T, repo *ledger.Memory, id, date, start, end string, status booking.Status, origin booking.Origin) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &booking.Booking{
		ID: id, ServiceID: "svc", Date: date, StartTime: start, EndTime: end,
		CustomerName: "x", Status: status, Origin: origin,
	}))
}

func startTimes(day DayAvailability) []string {
	out := make([]string, 0, len(day.Slots))
	for _, s := range day.Slots {
		out = append(out, s.StartTime)
	}
	return out
}

func compute(t *testing.T, c *Calculator, duration, days int) []DayAvailability {
	t.Helper()
	seq, err := c.Compute(context.Background(), duration, days)
	require.NoError(t, err)
	return Collect(seq)
}

func TestComputeExcludesOverlappingSlots(t *testing.T) {
	repo := ledger.NewMemory()
	addBooking(t, repo, "b1", "2026-03-02", "10:00", "11:00", booking.StatusConfirmed, booking.OriginInternal)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c := newTestCalculator(t, repo, now, nil)

	days := compute(t, c, 60, 3)
	require.Len(t, days, 3)
	assert.Equal(t, "2026-03-01", days[0].Date)
	assert.Equal(t, "2026-03-02", days[1].Date)
	assert.Equal(t, "2026-03-03", days[2].Date)

	assert.Equal(t, []string{
		"09:00", "11:00", "11:30", "12:00", "12:30", "13:00", "13:30",
		"14:00", "14:30", "15:00", "15:30", "16:00",
	}, startTimes(days[1]))

	first := days[1].Slots[0]
	assert.Equal(t, TimeSlot{ID: "2026-03-02-09:00", Date: "2026-03-02", StartTime: "09:00", EndTime: "10:00"}, first)
	assert.Len(t, days[2].Slots, 15)
}

func TestComputeTodayOnlyFutureSlots(t *testing.T) {
	tests := []struct {
		name  string
		now   time.Time
		first string
		count int
	}{
		{name: "before opening", now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), first: "09:00", count: 15},
		{name: "between steps", now: time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC), first: "12:30", count: 8},
		{name: "on a step", now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), first: "12:30", count: 8},
		{name: "after closing", now: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC), count: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCalculator(t, ledger.NewMemory(), tt.now, nil)
			days := compute(t, c, 60, 1)
			require.Len(t, days, 1)
			require.Len(t, days[0].Slots, tt.count)
			if tt.count > 0 {
				assert.Equal(t, tt.first, days[0].Slots[0].StartTime)
			}
		})
	}
}

func TestComputeBusyBlocks(t *testing.T) {
	repo := ledger.NewMemory()
	addBooking(t, repo, "ext", "2026-03-02", "13:00", "14:00", booking.StatusConfirmed, booking.OriginExternal)
	addBooking(t, repo, "pending", "2026-03-02", "09:00", "09:30", booking.StatusPending, booking.OriginInternal)
	addBooking(t, repo, "cancelled", "2026-03-02", "15:00", "16:00", booking.StatusCancelled, booking.OriginInternal)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c := newTestCalculator(t, repo, now, func(cfg *Config) {
		cfg.Open, cfg.Close = "09:00", "17:00"
	})

	days := compute(t, c, 30, 2)
	got := startTimes(days[1])
	assert.NotContains(t, got, "09:00")
	assert.NotContains(t, got, "13:00")
	assert.NotContains(t, got, "13:30")
	assert.Contains(t, got, "09:30")
	assert.Contains(t, got, "12:30")
	assert.Contains(t, got, "14:00")
	assert.Contains(t, got, "15:00", "cancelled bookings free their slot")
}

func TestComputeClosedDaysAreYielded(t *testing.T) {
	// 2026-03-01 is a Sunday.
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c := newTestCalculator(t, ledger.NewMemory(), now, func(cfg *Config) {
		cfg.Weekdays = []time.Weekday{time.Monday, time.Tuesday}
	})

	days := compute(t, c, 60, 3)
	require.Len(t, days, 3)
	assert.NotNil(t, days[0].Slots)
	assert.Empty(t, days[0].Slots)
	assert.NotEmpty(t, days[1].Slots)
	assert.NotEmpty(t, days[2].Slots)
}

func TestComputeDurationLongerThanDay(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c := newTestCalculator(t, ledger.NewMemory(), now, nil)

	days := compute(t, c, 9*60, 2)
	require.Len(t, days, 2)
	for _, d := range days {
		assert.Empty(t, d.Slots)
	}
}

func TestComputeStopsEarly(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c := newTestCalculator(t, ledger.NewMemory(), now, nil)

	seq, err := c.Compute(context.Background(), 60, 30)
	require.NoError(t, err)

	var seen int
	for range seq {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestComputeInvalidInput(t *testing.T) {
	c := newTestCalculator(t, ledger.NewMemory(), time.Now(), nil)

	_, err := c.Compute(context.Background(), 0, 30)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = c.Compute(context.Background(), 60, 0)
	assert.ErrorIs(t, err, ErrInvalidHorizon)

	_, err = c.Compute(context.Background(), 60, MaxHorizonDays+1)
	assert.ErrorIs(t, err, ErrInvalidHorizon)
}

type failingLister struct{}

func (failingLister) List(context.Context, booking.Filter) ([]*booking.Booking, error) {
	return nil, errors.New("database is down")
}

func TestComputeLedgerError(t *testing.T) {
	c := newTestCalculator(t, failingLister{}, time.Now(), nil)
	_, err := c.Compute(context.Background(), 60, 1)
	require.Error(t, err)
}

func TestNewValidatesHours(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "bad open", cfg: Config{Open: "9am"}},
		{name: "bad close", cfg: Config{Close: "25:00"}},
		{name: "close before open", cfg: Config{Open: "17:00", Close: "09:00"}},
		{name: "negative step", cfg: Config{StepMinutes: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestComputeMultiDayBookings(t *testing.T) {
	repo := ledger.NewMemory()
	// An evening event running into the next morning, stored one row per day.
	addBooking(t, repo, "night", "2026-03-02", "16:00", booking.EndOfDay, booking.StatusConfirmed, booking.OriginExternal)
	addBooking(t, repo, "morning", "2026-03-03", "00:00", "10:00", booking.StatusConfirmed, booking.OriginExternal)
	addBooking(t, repo, "vacation", "2026-03-04", "00:00", booking.EndOfDay, booking.StatusConfirmed, booking.OriginExternal)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c := newTestCalculator(t, repo, now, nil)

	days := compute(t, c, 60, 4)
	require.Len(t, days, 4)

	require.NotEmpty(t, days[1].Slots)
	last := days[1].Slots[len(days[1].Slots)-1]
	assert.Equal(t, "15:00", last.StartTime)
	assert.Equal(t, "16:00", last.EndTime)

	require.NotEmpty(t, days[2].Slots)
	assert.Equal(t, "10:00", days[2].Slots[0].StartTime)

	assert.Empty(t, days[3].Slots)
}
