// Package booking holds the booking ledger's domain model and the booking
// flow service.
//
// A Booking is either created by the customer-facing booking flow (origin
// "internal") or imported from the external calendar by reconciliation
// (origin "external"). Every booking can be linked to at most one external
// calendar event.
//
// Service implements create, reschedule and cancel. Each mutation is
// committed to the Repository first and only then handed to a Propagator,
// which pushes it to the external calendar. Propagation never fails the
// originating mutation.
package booking
