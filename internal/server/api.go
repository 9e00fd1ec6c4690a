package server

import (
	"context"
	"iter"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/sautiksau/bookingsync/internal/availability"
	"github.com/sautiksau/bookingsync/internal/booking"
	"github.com/sautiksau/bookingsync/internal/calsync"
	"github.com/sautiksau/bookingsync/internal/instrumentation"
	"github.com/sautiksau/bookingsync/internal/logging"
)

// Bookings is the booking flow.
type Bookings interface {
	Create(ctx context.Context, in booking.CreateInput) (*booking.Booking, error)
	Get(ctx context.Context, id string) (*booking.Booking, error)
	List(ctx context.Context, filter booking.Filter) ([]*booking.Booking, error)
	Reschedule(ctx context.Context, id, date, start, end string) (*booking.Booking, error)
	RescheduleForCustomer(ctx context.Context, id, phone, date, start, end string) (*booking.Booking, error)
	Confirm(ctx context.Context, id string) (*booking.Booking, error)
	Cancel(ctx context.Context, id string) (*booking.Booking, error)
}

// Availability computes free slots.
type Availability interface {
	Compute(ctx context.Context, durationMinutes, horizonDays int) (iter.Seq[availability.DayAvailability], error)
}

// CalendarSync is the calendar synchronization engine.
type CalendarSync interface {
	Import(ctx context.Context) (calsync.ImportStats, error)
	Propagate(ctx context.Context, bookingID string, action booking.SyncAction)
	Status(ctx context.Context) (calsync.Status, error)
}

// SettingsWriter stores ledger settings.
type SettingsWriter interface {
	SetSetting(ctx context.Context, key, value string) error
}

// Config wires the API to its dependencies.
type Config struct {
	Bookings     Bookings
	Availability Availability
	Sync         CalendarSync
	Settings     SettingsWriter

	// AdminPasswordHash is a bcrypt hash. Empty disables all admin routes.
	AdminPasswordHash string

	// DefaultHorizonDays applies when the availability query omits days.
	DefaultHorizonDays int

	Health  *HealthChecker
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
}

// API serves the HTTP interface.
type API struct {
	bookings     Bookings
	availability Availability
	sync         CalendarSync
	settings     SettingsWriter
	adminHash    []byte
	horizonDays  int
	health       *HealthChecker
	logger       *slog.Logger
	metrics      *instrumentation.Metrics
	audit        *instrumentation.AuditLogger

	// background tracks fire-and-forget propagations.
	background sync.WaitGroup
}

// DefaultHorizonDays is the availability horizon used when none is given.
const DefaultHorizonDays = 30

// NewAPI creates an API.
func NewAPI(cfg Config) *API {
	a := &API{
		bookings:     cfg.Bookings,
		availability: cfg.Availability,
		sync:         cfg.Sync,
		settings:     cfg.Settings,
		adminHash:    []byte(cfg.AdminPasswordHash),
		horizonDays:  cfg.DefaultHorizonDays,
		health:       cfg.Health,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		audit:        cfg.Audit,
	}
	if a.horizonDays <= 0 {
		a.horizonDays = DefaultHorizonDays
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = logging.WithService(a.logger, "http")
	if a.health == nil {
		a.health = NewHealthChecker()
	}
	return a
}

// Router builds the HTTP handler.
func (a *API) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(a.recoverMiddleware, a.observeMiddleware)

	a.health.Register(r)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/availability", a.handleAvailability).Methods(http.MethodGet)
	api.HandleFunc("/bookings", a.handleCreateBooking).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}", a.handleGetBooking).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}/reschedule", a.handleReschedule).Methods(http.MethodPatch)

	bookingAdmin := api.PathPrefix("/bookings/{id}").Subrouter()
	bookingAdmin.Use(a.adminMiddleware)
	bookingAdmin.HandleFunc("/confirm", a.handleConfirm).Methods(http.MethodPatch)
	bookingAdmin.HandleFunc("/cancel", a.handleCancel).Methods(http.MethodPatch)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(a.adminMiddleware)
	admin.HandleFunc("/bookings", a.handleListBookings).Methods(http.MethodGet)
	admin.HandleFunc("/calendar/status", a.handleCalendarStatus).Methods(http.MethodGet)
	admin.HandleFunc("/calendar/import", a.handleCalendarImport).Methods(http.MethodPost)
	admin.HandleFunc("/calendar/sync", a.handleCalendarSync).Methods(http.MethodPost)
	admin.HandleFunc("/settings/calendar-id", a.handleSetCalendarID).Methods(http.MethodPut)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Wait blocks until background propagations started by the API finish.
func (a *API) Wait() {
	a.background.Wait()
}
