package calsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sautiksau/bookingsync/internal/calendar"
	"github.com/sautiksau/bookingsync/internal/ledger"
)

func TestStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("before first sync", func(t *testing.T) {
		r := newTestReconciler(t, newFakeCalendar(), ledger.NewMemory())
		st, err := r.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, Status{
			Connected:  true,
			CalendarID: calendar.DefaultCalendarID,
			AuthType:   AuthTypeServiceAccount,
		}, st)
	})

	t.Run("persisted last sync", func(t *testing.T) {
		persisted := testNow.Add(-time.Hour)
		r := New(Config{
			Calendar: newFakeCalendar(),
			Bookings: ledger.NewMemory(),
			LastSync: staticLastSync{at: persisted, ok: true},
			Now:      func() time.Time { return testNow },
		})
		st, err := r.Status(ctx)
		require.NoError(t, err)
		require.NotNil(t, st.LastSync)
		assert.True(t, st.LastSync.Equal(persisted))
	})

	t.Run("after import", func(t *testing.T) {
		r := newTestReconciler(t, newFakeCalendar(), ledger.NewMemory())
		_, err := r.Import(ctx)
		require.NoError(t, err)

		st, err := r.Status(ctx)
		require.NoError(t, err)
		require.NotNil(t, st.LastSync)
		assert.True(t, st.LastSync.Equal(testNow))
	})

	t.Run("disconnected", func(t *testing.T) {
		cal := newFakeCalendar()
		cal.connected = false
		r := newTestReconciler(t, cal, ledger.NewMemory())
		st, err := r.Status(ctx)
		require.NoError(t, err)
		assert.False(t, st.Connected)
		assert.Equal(t, AuthTypeServiceAccount, st.AuthType)
	})

	t.Run("disconnected with unreadable settings", func(t *testing.T) {
		cal := newFakeCalendar()
		cal.connected = false
		cal.resolveErr = errors.New("ledger unavailable")
		r := newTestReconciler(t, cal, ledger.NewMemory())
		st, err := r.Status(ctx)
		require.NoError(t, err)
		assert.False(t, st.Connected)
		assert.Empty(t, st.CalendarID)
	})

	t.Run("connected with unreadable settings", func(t *testing.T) {
		cal := newFakeCalendar()
		cal.resolveErr = errors.New("ledger unavailable")
		r := newTestReconciler(t, cal, ledger.NewMemory())
		_, err := r.Status(ctx)
		assert.Error(t, err)
	})
}

func TestStateReset(t *testing.T) {
	s := NewState(AuthTypeServiceAccount)
	s.recordSync("primary", testNow)
	s.recordSync("primary", testNow.Add(-time.Minute))

	snap := s.Snapshot()
	require.NotNil(t, snap.LastSync)
	assert.True(t, snap.LastSync.Equal(testNow), "last sync never moves backwards")

	s.Reset()
	assert.Equal(t, Status{AuthType: AuthTypeServiceAccount}, s.Snapshot())
}
