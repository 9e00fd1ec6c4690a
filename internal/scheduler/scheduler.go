package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sautiksau/bookingsync/internal/calsync"
	"github.com/sautiksau/bookingsync/internal/instrumentation"
	"github.com/sautiksau/bookingsync/internal/logging"
)

// DefaultInterval is the default time between imports.
const DefaultInterval = 30 * time.Minute

// Importer runs one reconciliation.
type Importer interface {
	Import(ctx context.Context) (calsync.ImportStats, error)
}

// Config configures a Scheduler.
type Config struct {
	Importer Importer
	Store    LastSyncStore
	Interval time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

// Scheduler runs Import whenever the last successful sync is older than the
// interval.
type Scheduler struct {
	importer Importer
	store    LastSyncStore
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	inFlight atomic.Bool
}

// New creates a Scheduler.
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		importer: cfg.Importer,
		store:    cfg.Store,
		interval: cfg.Interval,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = logging.WithService(s.logger, "scheduler")
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Interval returns the sync interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// LastSync returns the persisted last successful sync time.
func (s *Scheduler) LastSync(ctx context.Context) (time.Time, bool, error) {
	return s.store.LastSync(ctx)
}

// ShouldSync reports whether a run is due at now: nothing is in flight and
// the last successful sync is at least one interval old. An unreadable store
// counts as never synced.
func (s *Scheduler) ShouldSync(ctx context.Context, now time.Time) bool {
	if s.inFlight.Load() {
		return false
	}
	return s.due(ctx, now)
}

func (s *Scheduler) due(ctx context.Context, now time.Time) bool {
	last, ok, err := s.store.LastSync(ctx)
	if err != nil {
		s.logger.Warn("failed to read last sync time", logging.Err(err))
		return true
	}
	return !ok || now.Sub(last) >= s.interval
}

// Trigger runs an import if one is due and none is in flight. ran reports
// whether Import was called. The stored time advances only after a connected
// run without error.
func (s *Scheduler) Trigger(ctx context.Context) (ran bool, err error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return false, nil
	}
	defer s.inFlight.Store(false)

	now := s.now()
	if !s.due(ctx, now) {
		return false, nil
	}

	logger := logging.WithOperation(s.logger, "trigger")
	stats, err := s.importer.Import(calsync.WithTrigger(ctx, instrumentation.TriggerScheduled))
	if err != nil {
		logger.Error("scheduled import failed", logging.Status(logging.StatusError), logging.Err(err))
		return true, err
	}
	if !stats.Connected {
		logger.Info("calendar not connected, scheduled import skipped", logging.Status(logging.StatusSkipped))
		return true, nil
	}

	if err := s.store.SetLastSync(ctx, now); err != nil {
		logger.Error("failed to persist last sync time", logging.Err(err))
		return true, err
	}
	logger.Debug("scheduled import completed", logging.Status(logging.StatusSuccess))
	return true, nil
}

// Run triggers immediately and then on every interval tick until ctx ends.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("auto-sync scheduler started", slog.Duration("interval", s.interval))

	_, _ = s.Trigger(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("auto-sync scheduler stopped")
			return
		case <-ticker.C:
			_, _ = s.Trigger(ctx)
		}
	}
}
