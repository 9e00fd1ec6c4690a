// Package instrumentation provides OpenTelemetry metrics and tracing for
// bookingsync.
//
// # Metrics
//
// HTTP API:
//   - http_requests_total: requests by method, route and status class
//   - http_request_duration_seconds: request latency
//
// Google Calendar:
//   - calendar_api_operations_total: Calendar API calls by operation and status
//   - calendar_api_operation_duration_seconds: Calendar API call latency
//   - token_exchanges_total: service-account token exchanges by result
//
// Synchronization:
//   - calendar_sync_runs_total: import runs by trigger and status
//   - calendar_sync_changes_total: bookings changed by import, by kind
//   - calendar_sync_duration_seconds: import run latency
//   - calendar_propagations_total: booking pushes by action and status
//   - bookings_created_total: bookings created through the API
//
// # Tracing
//
// Spans are created for Google API calls (google.calendar.<operation>),
// token exchanges, import runs and propagations.
//
// # Configuration
//
// The following environment variables are honoured by DefaultConfig:
//   - INSTRUMENTATION_ENABLED (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT
//   - OTEL_TRACES_SAMPLER_ARG (default: 0.1)
//   - OTEL_SERVICE_NAME (default: bookingsync)
//
// # Example
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	metrics := provider.Metrics()
//	metrics.RecordCalendarOperation(ctx, instrumentation.OperationList, instrumentation.StatusSuccess, time.Since(start))
package instrumentation
