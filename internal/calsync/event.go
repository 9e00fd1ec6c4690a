package calsync

import (
	"fmt"
	"strings"
	"time"

	"github.com/sautiksau/bookingsync/internal/booking"
	"github.com/sautiksau/bookingsync/internal/calendar"
)

// maxEventDays bounds the number of ledger days one event may cover.
const maxEventDays = 366

// pieceSep separates the event id from the date in the link of every
// ledger day of an event after the first.
const pieceSep = "#"

// slot is one ledger day of an event. key is the link stored on the booking
// mirroring it.
type slot struct {
	key   string
	date  string
	start string
	end   string
}

// eventSlots splits an event into one slot per ledger day it touches in loc.
// A slot reaching midnight ends at booking.EndOfDay. All-day events cover
// their dates as written, independent of loc.
func eventSlots(ev calendar.ExternalEvent, loc *time.Location) ([]slot, error) {
	start, end := ev.Start.In(loc), ev.End.In(loc)
	if ev.AllDay {
		start, end = floatingDate(ev.Start, loc), floatingDate(ev.End, loc)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("event %s ends before it starts", ev.ID)
	}

	var slots []slot
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	for cur := start; cur.Before(end); {
		if len(slots) == maxEventDays {
			return nil, fmt.Errorf("event %s spans more than %d days", ev.ID, maxEventDays)
		}
		next := day.AddDate(0, 0, 1)
		s := slot{
			key:   ev.ID,
			date:  day.Format(booking.DateFormat),
			start: cur.Format(booking.TimeFormat),
			end:   booking.EndOfDay,
		}
		if end.Before(next) {
			s.end = end.Format(booking.TimeFormat)
		}
		if len(slots) > 0 {
			s.key = ev.ID + pieceSep + s.date
		}
		slots = append(slots, s)
		cur, day = next, next
	}
	return slots, nil
}

// floatingDate places the UTC date of t at midnight in loc.
func floatingDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// calendarEventID returns the calendar event id a booking link refers to.
func calendarEventID(link string) string {
	id, _, _ := strings.Cut(link, pieceSep)
	return id
}

// partOfLongerEvent reports whether b mirrors one day of an event that
// continues past that day.
func partOfLongerEvent(b *booking.Booking) bool {
	return strings.Contains(b.ExternalEventID, pieceSep) || b.EndTime == booking.EndOfDay
}

// matches reports whether b already reflects s and, for imported bookings,
// the event title.
func matches(b *booking.Booking, s slot, summary string) bool {
	if b.Date != s.date || b.StartTime != s.start || b.EndTime != s.end {
		return false
	}
	if b.Origin == booking.OriginExternal && b.CustomerName != summary {
		return false
	}
	return true
}

// apply copies s and, for imported bookings, the title onto b.
func apply(b *booking.Booking, s slot, summary string) {
	b.Date, b.StartTime, b.EndTime = s.date, s.start, s.end
	if b.Origin == booking.OriginExternal {
		b.CustomerName = summary
	}
}

// eventInput renders b as a calendar event.
func (r *Reconciler) eventInput(b *booking.Booking) (calendar.EventInput, error) {
	start, end, err := b.Interval(r.loc)
	if err != nil {
		return calendar.EventInput{}, err
	}

	service := b.ServiceID
	if name, ok := r.serviceNames[b.ServiceID]; ok && name != "" {
		service = name
	}

	var desc strings.Builder
	if b.CustomerPhone != "" {
		fmt.Fprintf(&desc, "Phone: %s\n", b.CustomerPhone)
	}
	if b.CustomerEmail != "" {
		fmt.Fprintf(&desc, "Email: %s\n", b.CustomerEmail)
	}
	if b.Notes != "" {
		fmt.Fprintf(&desc, "Notes: %s\n", b.Notes)
	}
	fmt.Fprintf(&desc, "Booking ID: %s", b.ID)

	summary := b.CustomerName
	if b.Origin == booking.OriginInternal {
		summary = service + " - " + b.CustomerName
	}

	tz := r.loc.String()
	if tz == "Local" {
		tz = ""
	}

	return calendar.EventInput{
		Summary:     summary,
		Description: desc.String(),
		Start:       start,
		End:         end,
		TimeZone:    tz,
	}, nil
}
