package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-redis/redis/v8"

	"github.com/sautiksau/bookingsync/internal/availability"
	"github.com/sautiksau/bookingsync/internal/booking"
	"github.com/sautiksau/bookingsync/internal/calendar"
	"github.com/sautiksau/bookingsync/internal/calsync"
	"github.com/sautiksau/bookingsync/internal/config"
	"github.com/sautiksau/bookingsync/internal/google"
	"github.com/sautiksau/bookingsync/internal/instrumentation"
	"github.com/sautiksau/bookingsync/internal/ledger"
	"github.com/sautiksau/bookingsync/internal/logging"
	"github.com/sautiksau/bookingsync/internal/scheduler"
)

// app holds the wired component graph shared by all commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider *instrumentation.Provider
	instrCfg instrumentation.Config

	ledger     ledger.Ledger
	redis      *redis.Client
	lastSync   scheduler.LastSyncStore
	tokens     *google.ServiceAccountTokenProvider
	calendar   *calendar.Client
	reconciler *calsync.Reconciler
	bookings   *booking.Service
	calculator *availability.Calculator
	scheduler  *scheduler.Scheduler
}

// newApp connects the ledger and builds every component from cfg. When
// instrumented is false metrics and traces are no-ops.
func newApp(ctx context.Context, cfg *config.Config, instrumented bool) (_ *app, err error) {
	logger, err := logging.New(os.Stderr, cfg.Logging.Format, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close(context.WithoutCancel(ctx))
		}
	}()

	a.instrCfg = instrumentation.DefaultConfig()
	a.instrCfg.ServiceVersion = version
	if !instrumented {
		a.instrCfg.Enabled = false
	}
	a.provider, err = instrumentation.NewProvider(ctx, a.instrCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	metrics := a.provider.Metrics()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	weekdays, err := cfg.Weekdays()
	if err != nil {
		return nil, err
	}

	a.ledger, err = ledger.Connect(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	switch cfg.Sync.LastSyncStore {
	case config.LastSyncStoreRedis:
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.lastSync = scheduler.NewRedisStore(a.redis, cfg.Redis.Key)
	default:
		a.lastSync = scheduler.NewSettingsStore(a.ledger)
	}

	key, err := cfg.ServiceAccountKey()
	if err != nil {
		return nil, err
	}
	a.tokens = google.NewServiceAccountTokenProvider(google.ServiceAccountConfig{
		Email:      cfg.Google.ServiceAccountEmail,
		PrivateKey: key,
		TokenURL:   cfg.Google.TokenURL,
		Logger:     logger,
		Metrics:    metrics,
	})
	if !a.tokens.Configured() {
		logger.Warn("google service account not configured; calendar sync is disabled")
	}

	a.calendar = calendar.NewClient(calendar.Config{
		Tokens:     a.tokens,
		Settings:   a.ledger,
		CalendarID: cfg.Google.CalendarID,
		Endpoint:   cfg.Google.Endpoint,
		Logger:     logger,
		Metrics:    metrics,
	})

	a.reconciler = calsync.New(calsync.Config{
		Calendar:     a.calendar,
		Bookings:     a.ledger,
		LastSync:     a.lastSync,
		Location:     loc,
		WindowDays:   cfg.Sync.WindowDays,
		ServiceNames: cfg.Services,
		Logger:       logger,
		Metrics:      metrics,
	})

	a.bookings = booking.NewService(a.ledger, a.reconciler, logger, booking.WithLocation(loc))

	a.calculator, err = availability.New(availability.Config{
		Bookings:    a.ledger,
		Open:        cfg.Business.Open,
		Close:       cfg.Business.Close,
		StepMinutes: cfg.Business.StepMinutes,
		Weekdays:    weekdays,
		Location:    loc,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid business hours: %w", err)
	}

	a.scheduler = scheduler.New(scheduler.Config{
		Importer: a.reconciler,
		Store:    a.lastSync,
		Interval: cfg.Sync.Interval.Duration,
		Logger:   logger,
	})
	return a, nil
}

// close releases the ledger, redis and instrumentation. It is safe on a
// partially built app.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close ledger: %w", err))
		}
	}
	if a.provider != nil {
		if err := a.provider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown instrumentation: %w", err))
		}
	}
	return errors.Join(errs...)
}
