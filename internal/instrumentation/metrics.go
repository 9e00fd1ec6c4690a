package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrMethod    = "method"
	attrRoute     = "route"
	attrStatus    = "status"
	attrOperation = "operation"
	attrResult    = "result"
	attrTrigger   = "trigger"
	attrKind      = "kind"
	attrAction    = "action"
)

// Metrics records bookingsync metrics. The zero value is a no-op recorder.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	calendarOperationsTotal   metric.Int64Counter
	calendarOperationDuration metric.Float64Histogram
	tokenExchangesTotal       metric.Int64Counter

	syncRunsTotal       metric.Int64Counter
	syncChangesTotal    metric.Int64Counter
	syncDuration        metric.Float64Histogram
	propagationsTotal   metric.Int64Counter
	bookingsCreateTotal metric.Int64Counter

	detailedLabels bool
}

// NewMetrics creates all instruments on meter.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.calendarOperationsTotal, err = meter.Int64Counter(
		"calendar_api_operations_total",
		metric.WithDescription("Total number of Google Calendar API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_api_operations_total counter: %w", err)
	}

	m.calendarOperationDuration, err = meter.Float64Histogram(
		"calendar_api_operation_duration_seconds",
		metric.WithDescription("Google Calendar API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_api_operation_duration_seconds histogram: %w", err)
	}

	m.tokenExchangesTotal, err = meter.Int64Counter(
		"token_exchanges_total",
		metric.WithDescription("Total number of service-account token exchanges"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_exchanges_total counter: %w", err)
	}

	m.syncRunsTotal, err = meter.Int64Counter(
		"calendar_sync_runs_total",
		metric.WithDescription("Total number of calendar import runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_sync_runs_total counter: %w", err)
	}

	m.syncChangesTotal, err = meter.Int64Counter(
		"calendar_sync_changes_total",
		metric.WithDescription("Bookings touched by calendar imports"),
		metric.WithUnit("{booking}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_sync_changes_total counter: %w", err)
	}

	m.syncDuration, err = meter.Float64Histogram(
		"calendar_sync_duration_seconds",
		metric.WithDescription("Calendar import run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_sync_duration_seconds histogram: %w", err)
	}

	m.propagationsTotal, err = meter.Int64Counter(
		"calendar_propagations_total",
		metric.WithDescription("Total number of booking changes pushed to the calendar"),
		metric.WithUnit("{propagation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_propagations_total counter: %w", err)
	}

	m.bookingsCreateTotal, err = meter.Int64Counter(
		"bookings_created_total",
		metric.WithDescription("Total number of bookings created through the API"),
		metric.WithUnit("{booking}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create bookings_created_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an API request. route should be the route
// template, not the raw path.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}

	status := StatusClass(statusCode)
	if m.detailedLabels {
		status = fmt.Sprintf("%d", statusCode)
	}

	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrRoute, route),
		attribute.String(attrStatus, status),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordCalendarOperation records a Google Calendar API call.
//
// Parameters:
//   - operation: list, create, update or delete
//   - status: StatusSuccess or StatusError
//   - duration: time taken including a retry after 401
func (m *Metrics) RecordCalendarOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m == nil || m.calendarOperationsTotal == nil || m.calendarOperationDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.calendarOperationsTotal.Add(ctx, 1, attrs)
	m.calendarOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordTokenExchange records the result of a service-account token exchange.
// result is one of the TokenResult constants.
func (m *Metrics) RecordTokenExchange(ctx context.Context, result string) {
	if m == nil || m.tokenExchangesTotal == nil {
		return
	}
	m.tokenExchangesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// SyncRun summarizes one import run for RecordSyncRun.
type SyncRun struct {
	Trigger  string
	Status   string
	Created  int
	Updated  int
	Deleted  int
	Skipped  int
	Invalid  int
	Duration time.Duration
}

// RecordSyncRun records an import run and the changes it made.
func (m *Metrics) RecordSyncRun(ctx context.Context, run SyncRun) {
	if m == nil || m.syncRunsTotal == nil || m.syncChangesTotal == nil || m.syncDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrTrigger, run.Trigger),
		attribute.String(attrStatus, run.Status),
	)
	m.syncRunsTotal.Add(ctx, 1, attrs)
	m.syncDuration.Record(ctx, run.Duration.Seconds(), attrs)

	for kind, n := range map[string]int{
		ChangeCreated: run.Created,
		ChangeUpdated: run.Updated,
		ChangeDeleted: run.Deleted,
		ChangeSkipped: run.Skipped,
		ChangeInvalid: run.Invalid,
	} {
		if n > 0 {
			m.syncChangesTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String(attrKind, kind)))
		}
	}
}

// RecordPropagation records a booking change pushed to the calendar.
func (m *Metrics) RecordPropagation(ctx context.Context, action, status string) {
	if m == nil || m.propagationsTotal == nil {
		return
	}
	m.propagationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrAction, action),
		attribute.String(attrStatus, status),
	))
}

// RecordBookingCreated counts a booking created through the API.
func (m *Metrics) RecordBookingCreated(ctx context.Context) {
	if m == nil || m.bookingsCreateTotal == nil {
		return
	}
	m.bookingsCreateTotal.Add(ctx, 1)
}
