package instrumentation

import (
	"context"
	"testing"
	"time"
)

func TestMetrics_Record(t *testing.T) {
	provider := newTestProvider(t, ExporterPrometheus, ExporterNone)
	ctx := context.Background()

	metrics := provider.Metrics()
	if metrics == nil {
		t.Fatal("expected metrics to be non-nil")
	}

	// None of these should panic.
	metrics.RecordHTTPRequest(ctx, "GET", "/api/v1/availability", 200, 10*time.Millisecond)
	metrics.RecordHTTPRequest(ctx, "POST", "/api/v1/bookings", 409, 20*time.Millisecond)
	metrics.RecordCalendarOperation(ctx, OperationList, StatusSuccess, 200*time.Millisecond)
	metrics.RecordCalendarOperation(ctx, OperationCreate, StatusError, 500*time.Millisecond)
	metrics.RecordTokenExchange(ctx, TokenResultSuccess)
	metrics.RecordTokenExchange(ctx, TokenResultRejected)
	metrics.RecordSyncRun(ctx, SyncRun{
		Trigger:  TriggerScheduled,
		Status:   StatusSuccess,
		Created:  2,
		Updated:  1,
		Skipped:  5,
		Duration: time.Second,
	})
	metrics.RecordPropagation(ctx, "create", StatusSuccess)
	metrics.RecordBookingCreated(ctx)
}

func TestMetrics_ZeroValueIsNoop(t *testing.T) {
	ctx := context.Background()

	var zero Metrics
	zero.RecordHTTPRequest(ctx, "GET", "/", 200, time.Millisecond)
	zero.RecordCalendarOperation(ctx, OperationList, StatusSuccess, time.Millisecond)
	zero.RecordSyncRun(ctx, SyncRun{Created: 1})
	zero.RecordPropagation(ctx, "delete", StatusError)

	var nilMetrics *Metrics
	nilMetrics.RecordTokenExchange(ctx, TokenResultUnavailable)
	nilMetrics.RecordBookingCreated(ctx)
}
