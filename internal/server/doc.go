// Package server exposes bookingsync over HTTP.
//
// # Routes
//
// Public:
//
//	GET   /api/v1/availability?duration=60&days=30
//	POST  /api/v1/bookings
//	GET   /api/v1/bookings/{id}
//	PATCH /api/v1/bookings/{id}/reschedule  (admin, or customerPhone in the body)
//
// Admin (X-Admin-Password header, checked against a bcrypt hash):
//
//	GET   /api/v1/admin/bookings?from=YYYY-MM-DD&to=YYYY-MM-DD
//	PATCH /api/v1/bookings/{id}/confirm
//	PATCH /api/v1/bookings/{id}/cancel
//	GET   /api/v1/admin/calendar/status
//	POST  /api/v1/admin/calendar/import
//	POST  /api/v1/admin/calendar/sync
//	PUT   /api/v1/admin/settings/calendar-id
//
// Probes are served at /healthz, /readyz and /healthz/detailed. Prometheus
// metrics are served by MetricsServer on a separate port.
//
// Errors are returned as {"error": "..."} with 400 for invalid input, 401 for
// a missing or wrong admin password, 404 for unknown bookings, 409 for slot
// conflicts and 500 otherwise.
package server
