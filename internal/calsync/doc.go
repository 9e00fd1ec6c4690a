// Package calsync keeps the booking ledger convergent with the external
// Google Calendar.
//
// Import is a full reconciliation pass over a bounded future window. Every
// fetched event is classified against the bookings that link to it:
//
//   - linked and different: the booking's date and times (and, for imported
//     bookings, the title) are updated
//   - linked and identical: skipped
//   - not linked: a new booking of external origin is created and linked
//
// Afterwards every booking in the window whose linked event is gone is
// removed. Imported bookings are deleted; bookings created here are cancelled
// and unlinked. A booking without a link is never touched.
//
// Propagate pushes a single committed booking mutation to the calendar. It
// never fails the caller.
//
// Concurrent Import calls within a process share one run. Runs in separate
// processes are not coordinated; the last write wins.
package calsync
