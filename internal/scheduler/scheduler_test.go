package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sautiksau/bookingsync/internal/calsync"
	"github.com/sautiksau/bookingsync/internal/ledger"
)

type fakeImporter struct {
	calls atomic.Int32
	stats calsync.ImportStats
	err   error
	gate  chan struct{}
}

func (f *fakeImporter) Import(ctx context.Context) (calsync.ImportStats, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.stats, f.err
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestScheduler(imp Importer, store LastSyncStore, clk *clock) *Scheduler {
	return New(Config{
		Importer: imp,
		Store:    store,
		Interval: 30 * time.Minute,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:      clk.Now,
	})
}

func TestTriggerRespectsInterval(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	store := NewSettingsStore(ledger.NewMemory())
	imp := &fakeImporter{stats: calsync.ImportStats{Connected: true}}
	s := newTestScheduler(imp, store, clk)

	assert.True(t, s.ShouldSync(ctx, clk.Now()), "never synced")

	ran, err := s.Trigger(ctx)
	require.NoError(t, err)
	assert.True(t, ran)

	last, ok, err := store.LastSync(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, last.Equal(clk.Now()))

	clk.advance(10 * time.Minute)
	assert.False(t, s.ShouldSync(ctx, clk.Now()))
	ran, err = s.Trigger(ctx)
	require.NoError(t, err)
	assert.False(t, ran)

	clk.advance(21 * time.Minute)
	assert.True(t, s.ShouldSync(ctx, clk.Now()))
	ran, err = s.Trigger(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.EqualValues(t, 2, imp.calls.Load())
}

func TestTriggerFailureKeepsTimestamp(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	store := NewSettingsStore(ledger.NewMemory())
	previous := clk.Now().Add(-time.Hour)
	require.NoError(t, store.SetLastSync(ctx, previous))

	tests := []struct {
		name  string
		stats calsync.ImportStats
		err   error
	}{
		{name: "import error", stats: calsync.ImportStats{Connected: true, Created: 1}, err: errors.New("calendar unavailable")},
		{name: "not connected", stats: calsync.ImportStats{Connected: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imp := &fakeImporter{stats: tt.stats, err: tt.err}
			s := newTestScheduler(imp, store, clk)

			ran, err := s.Trigger(ctx)
			assert.True(t, ran)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}

			last, ok, err := store.LastSync(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.True(t, last.Equal(previous))
			assert.True(t, s.ShouldSync(ctx, clk.Now()), "still due after a failed run")
		})
	}
}

func TestTriggerSingleInFlight(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	imp := &fakeImporter{stats: calsync.ImportStats{Connected: true}, gate: make(chan struct{})}
	s := newTestScheduler(imp, NewSettingsStore(ledger.NewMemory()), clk)

	done := make(chan bool)
	go func() {
		ran, _ := s.Trigger(ctx)
		done <- ran
	}()

	require.Eventually(t, func() bool { return imp.calls.Load() == 1 }, time.Second, time.Millisecond)
	assert.False(t, s.ShouldSync(ctx, clk.Now()))

	ran, err := s.Trigger(ctx)
	require.NoError(t, err)
	assert.False(t, ran)

	close(imp.gate)
	assert.True(t, <-done)
	assert.EqualValues(t, 1, imp.calls.Load())
}

func TestRunTriggersEagerlyAndStops(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	imp := &fakeImporter{stats: calsync.ImportStats{Connected: true}}
	s := newTestScheduler(imp, NewSettingsStore(ledger.NewMemory()), clk)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(stopped)
	}()

	require.Eventually(t, func() bool { return imp.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSettingsStore(t *testing.T) {
	ctx := context.Background()
	mem := ledger.NewMemory()
	store := NewSettingsStore(mem)

	_, ok, err := store.LastSync(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.FixedZone("EET", 2*3600))
	require.NoError(t, store.SetLastSync(ctx, at))

	raw, _, err := mem.GetSetting(ctx, LastSyncSetting)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T06:00:00Z", raw)

	got, ok, err := store.LastSync(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, got.Equal(at))

	require.NoError(t, mem.SetSetting(ctx, LastSyncSetting, "yesterday"))
	_, _, err = store.LastSync(ctx)
	assert.Error(t, err)
}

func TestRedisStoreUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, "")

	_, _, err := store.LastSync(context.Background())
	assert.Error(t, err)
	assert.Error(t, store.SetLastSync(context.Background(), time.Now()))
	assert.Error(t, store.Ping(context.Background()))
}

func TestUnreadableStoreCountsAsDue(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	mem := ledger.NewMemory()
	require.NoError(t, mem.SetSetting(context.Background(), LastSyncSetting, "garbage"))
	s := newTestScheduler(&fakeImporter{}, NewSettingsStore(mem), clk)

	assert.True(t, s.ShouldSync(context.Background(), clk.Now()))
}
