package booking

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Origin records which side created a booking.
type Origin string

const (
	OriginInternal Origin = "internal"
	OriginExternal Origin = "external"
)

// SyncAction is a single-booking mutation pushed to the external calendar.
type SyncAction string

const (
	SyncCreate SyncAction = "create"
	SyncUpdate SyncAction = "update"
	SyncDelete SyncAction = "delete"
)

// Valid reports whether a is a known action.
func (a SyncAction) Valid() bool {
	switch a {
	case SyncCreate, SyncUpdate, SyncDelete:
		return true
	}
	return false
}

// Formats used for the date and time fields of a booking.
const (
	DateFormat = "2006-01-02" // YYYY-MM-DD
	TimeFormat = "15:04"      // HH:MM
)

// EndOfDay is the end time of a booking that runs until midnight. It is only
// valid as an end time.
const EndOfDay = "24:00"

// ExternalServiceID is the service id given to bookings imported from the
// external calendar.
const ExternalServiceID = "external"

// Booking is a single appointment in the ledger.
type Booking struct {
	ID        string
	ServiceID string
	Date      string // YYYY-MM-DD
	StartTime string // HH:MM
	EndTime   string // HH:MM

	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Notes         string

	Status Status
	Origin Origin

	// ExternalEventID links the booking to an external calendar event.
	// Empty means unlinked.
	ExternalEventID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the booking still occupies its time slot.
func (b *Booking) IsActive() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

// IsLinked reports whether the booking is linked to an external event.
func (b *Booking) IsLinked() bool {
	return b.ExternalEventID != ""
}

// Interval returns the booking's [start, end) in loc.
func (b *Booking) Interval(loc *time.Location) (time.Time, time.Time, error) {
	start, err := ParseDateTime(b.Date, b.StartTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := ParseDateTime(b.Date, b.EndTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// ParseDateTime combines a YYYY-MM-DD date and an HH:MM time in loc.
// EndOfDay yields midnight at the start of the following day.
func ParseDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	if clock == EndOfDay {
		day, err := time.ParseInLocation(DateFormat, date, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
		}
		return day.AddDate(0, 0, 1), nil
	}
	t, err := time.ParseInLocation(DateFormat+" "+TimeFormat, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time %q %q: %w", date, clock, err)
	}
	return t, nil
}

// Overlaps reports whether [a1, a2) and [b1, b2) intersect.
// Touching intervals do not overlap.
func Overlaps(a1, a2, b1, b2 time.Time) bool {
	return a1.Before(b2) && b1.Before(a2)
}

// Filter selects bookings from the ledger.
type Filter struct {
	// FromDate and ToDate bound booking dates as [FromDate, ToDate).
	// Empty means unbounded.
	FromDate string
	ToDate   string

	// LinkedOnly keeps only bookings linked to an external event.
	LinkedOnly bool

	// ActiveOnly keeps only pending and confirmed bookings.
	ActiveOnly bool
}
