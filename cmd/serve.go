package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sautiksau/bookingsync/internal/config"
	"github.com/sautiksau/bookingsync/internal/instrumentation"
	"github.com/sautiksau/bookingsync/internal/server"
)

// serveOptions holds serve flag values that override the config file.
type serveOptions struct {
	addr           string
	metricsAddr    string
	disableMetrics bool
	disableSync    bool
	weekdays       string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the booking HTTP API",
		Long: `Start the booking HTTP API.

The server exposes the public booking and availability routes, the
password-protected admin routes and health probes. Unless disabled it also
imports the configured Google Calendar whenever the last successful import is
older than the sync interval, and serves Prometheus metrics on a separate
address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, cfg); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	opts.addFlags(cmd)

	return cmd
}

func (o *serveOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.addr, "addr", "", "HTTP listen address (overrides config, e.g. :8080)")
	cmd.Flags().StringVar(&o.metricsAddr, "metrics-addr", "", "Metrics listen address (overrides config, e.g. :9090)")
	cmd.Flags().BoolVar(&o.disableMetrics, "disable-metrics", false, "Do not start the metrics server")
	cmd.Flags().BoolVar(&o.disableSync, "disable-sync", false, "Do not run the periodic calendar import")
	cmd.Flags().StringVar(&o.weekdays, "weekdays", "", "Comma-separated open weekdays, e.g. mon,tue,wed (overrides config)")
}

// apply copies explicitly set flags onto cfg and revalidates it.
func (o *serveOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Server.Addr = o.addr
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = o.metricsAddr
	}
	if o.disableMetrics {
		cfg.Metrics.Enabled = false
	}
	if o.disableSync {
		cfg.Sync.Enabled = false
	}
	if flags.Changed("weekdays") {
		cfg.Business.Weekdays = parseCommaSeparatedList(o.weekdays)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// Create a context that will be cancelled on shutdown signal
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	logger := a.logger
	defer func() {
		if err := a.close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("error during cleanup", "error", err)
		}
	}()

	health := server.NewHealthChecker()
	health.AddCheck("ledger", a.ledger.Ping)
	if a.redis != nil {
		health.AddCheck("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}

	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled {
		if a.provider.ServesPrometheus() {
			metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
				Addr:                    cfg.Metrics.Addr,
				Enabled:                 true,
				InstrumentationProvider: a.provider,
				Logger:                  logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create metrics server: %w", err)
			}
			go func() {
				if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server error", "error", err)
				}
			}()
		} else {
			logger.Info("metrics exporter is not prometheus; metrics server not started",
				"exporter", a.instrCfg.MetricsExporter)
		}
	}

	api := server.NewAPI(server.Config{
		Bookings:          a.bookings,
		Availability:      a.calculator,
		Sync:              a.reconciler,
		Settings:          a.ledger,
		AdminPasswordHash: cfg.Admin.PasswordHash,
		Health:            health,
		Logger:            logger,
		Metrics:           a.provider.Metrics(),
		Audit:             instrumentation.NewAuditLogger(logger, a.instrCfg.AuditLogging),
	})
	if strings.TrimSpace(cfg.Admin.PasswordHash) == "" {
		logger.Warn("admin password hash not configured; admin routes are disabled")
	}

	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Addr:         cfg.Server.Addr,
		Handler:      api.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		Logger:       logger,
	})

	schedulerDone := make(chan struct{})
	if cfg.Sync.Enabled {
		go func() {
			defer close(schedulerDone)
			a.scheduler.Run(ctx)
		}()
	} else {
		close(schedulerDone)
		logger.Info("periodic calendar import disabled")
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()
	health.SetReady(true)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("HTTP server error: %w", err)
		}
		cancel()
	}

	health.SetShuttingDown()

	timeout := cfg.Server.ShutdownTimeout.Duration
	if timeout <= 0 {
		timeout = server.DefaultShutdownTimeout
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error shutting down HTTP server", "error", err)
	}
	api.Wait()
	<-schedulerDone

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error shutting down metrics server", "error", err)
		}
	}

	logger.Info("server stopped")
	return runErr
}

// parseCommaSeparatedList parses a comma-separated string into a slice,
// trimming whitespace from each element and filtering out empty strings.
// Returns nil if the input is empty or contains only whitespace/commas.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
