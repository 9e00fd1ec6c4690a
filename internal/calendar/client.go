package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/sautiksau/bookingsync/internal/google"
	"github.com/sautiksau/bookingsync/internal/instrumentation"
	"github.com/sautiksau/bookingsync/internal/logging"
)

const (
	// CalendarIDSetting is the settings key overriding the target calendar.
	CalendarIDSetting = "google_calendar_id"

	// DefaultCalendarID is the service account's own calendar.
	DefaultCalendarID = "primary"
)

// ErrNotConnected is returned when no access token could be obtained.
var ErrNotConnected = errors.New("calendar: not connected")

// SettingsReader reads persisted settings.
type SettingsReader interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

// Config configures a Client.
type Config struct {
	Tokens   google.TokenSource
	Settings SettingsReader

	// CalendarID is used when no calendar id setting is stored.
	// Empty means DefaultCalendarID.
	CalendarID string

	// Endpoint overrides the API base URL, e.g. for tests.
	Endpoint string

	// HTTPClient is the base client wrapped with the bearer token.
	HTTPClient *http.Client

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Client performs authenticated Calendar API calls.
type Client struct {
	tokens   google.TokenSource
	settings SettingsReader
	fallback string
	endpoint string
	base     *http.Client
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fallback := cfg.CalendarID
	if fallback == "" {
		fallback = DefaultCalendarID
	}
	return &Client{
		tokens:   cfg.Tokens,
		settings: cfg.Settings,
		fallback: fallback,
		endpoint: cfg.Endpoint,
		base:     cfg.HTTPClient,
		logger:   logging.WithService(logger, instrumentation.ServiceCalendar),
		metrics:  cfg.Metrics,
	}
}

// Connected reports whether a token can currently be obtained.
func (c *Client) Connected(ctx context.Context) (bool, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return false, err
	}
	return token != nil, nil
}

// ResolveCalendarID returns the stored calendar id setting, falling back to
// the configured id.
func (c *Client) ResolveCalendarID(ctx context.Context) (string, error) {
	if c.settings == nil {
		return c.fallback, nil
	}
	id, ok, err := c.settings.GetSetting(ctx, CalendarIDSetting)
	if err != nil {
		return "", fmt.Errorf("failed to read calendar id setting: %w", err)
	}
	if !ok || id == "" {
		return c.fallback, nil
	}
	return id, nil
}

// ListEvents returns the timed events in r ordered by start time, following
// every page. Cancelled events are dropped; events that cannot be projected
// are returned separately.
func (c *Client) ListEvents(ctx context.Context, calendarID string, r TimeRange) ([]ExternalEvent, []MalformedEvent, error) {
	var (
		events    []ExternalEvent
		malformed []MalformedEvent
	)

	attrs := instrumentation.NewSpanAttributeBuilder().WithCalendar(calendarID).Build()
	err := c.do(ctx, instrumentation.OperationList, attrs, func(ctx context.Context, svc *calendar.Service) error {
		events, malformed = nil, nil

		call := svc.Events.List(calendarID).
			TimeMin(r.Start.Format(time.RFC3339)).
			TimeMax(r.End.Format(time.RFC3339)).
			SingleEvents(true).
			ShowDeleted(false).
			OrderBy("startTime").
			MaxResults(250)

		return call.Pages(ctx, func(page *calendar.Events) error {
			for _, item := range page.Items {
				if item.Status == "cancelled" {
					continue
				}
				ev, err := toExternalEvent(item)
				if err != nil {
					id := ""
					if item != nil {
						id = item.Id
					}
					malformed = append(malformed, MalformedEvent{ID: id, Reason: err.Error()})
					continue
				}
				events = append(events, ev)
			}
			return nil
		})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, malformed, nil
}

// CreateEvent inserts an event and returns its id.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, in EventInput) (string, error) {
	var id string
	attrs := instrumentation.NewSpanAttributeBuilder().WithCalendar(calendarID).Build()
	err := c.do(ctx, instrumentation.OperationCreate, attrs, func(ctx context.Context, svc *calendar.Service) error {
		created, err := svc.Events.Insert(calendarID, in.toEvent()).Context(ctx).Do()
		if err != nil {
			return err
		}
		id = created.Id
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to create event: %w", err)
	}
	return id, nil
}

// UpdateEvent patches the summary, description and times of an event.
func (c *Client) UpdateEvent(ctx context.Context, calendarID, eventID string, in EventInput) error {
	attrs := instrumentation.NewSpanAttributeBuilder().WithCalendar(calendarID).WithEvent(eventID).Build()
	err := c.do(ctx, instrumentation.OperationUpdate, attrs, func(ctx context.Context, svc *calendar.Service) error {
		_, err := svc.Events.Patch(calendarID, eventID, in.toEvent()).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return nil
}

// DeleteEvent removes an event.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	attrs := instrumentation.NewSpanAttributeBuilder().WithCalendar(calendarID).WithEvent(eventID).Build()
	err := c.do(ctx, instrumentation.OperationDelete, attrs, func(ctx context.Context, svc *calendar.Service) error {
		return svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// IsNotFound reports whether err is a 404 or 410 from the API.
func IsNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}

func isUnauthorized(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized
}

// do runs fn with a service bound to a fresh token, retrying once on 401.
func (c *Client) do(ctx context.Context, operation string, attrs []attribute.KeyValue, fn func(context.Context, *calendar.Service) error) (err error) {
	start := time.Now()
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, operation, attrs...)
	defer func() {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		c.metrics.RecordCalendarOperation(ctx, operation, status, time.Since(start))
		span.End()
	}()

	svc, err := c.service(ctx)
	if err != nil {
		return err
	}

	err = fn(ctx, svc)
	if !isUnauthorized(err) {
		return err
	}

	c.logger.Warn("calendar API rejected token, retrying with a fresh one",
		logging.Operation(operation))
	instrumentation.AddSpanEvent(span, "token_refresh")

	svc, err = c.service(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, svc)
}

// service mints a token and binds a Calendar service to it.
func (c *Client) service(ctx context.Context) (*calendar.Service, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, ErrNotConnected
	}

	baseCtx := ctx
	if c.base != nil {
		baseCtx = context.WithValue(ctx, oauth2.HTTPClient, c.base)
	}
	httpClient := oauth2.NewClient(baseCtx, oauth2.StaticTokenSource(token))

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return svc, nil
}
