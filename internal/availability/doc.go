// Package availability derives bookable time slots from the booking ledger.
//
// The ledger holds both internal bookings and busy blocks imported from the
// external calendar, so a single active-bookings query covers every busy
// interval. Slots are generated at a fixed step inside business hours and
// rejected when they overlap an active booking:
//
//	[a1, a2) overlaps [b1, b2)  iff  a1 < b2 && b1 < a2
//
// Results are computed per call and never cached.
package availability
