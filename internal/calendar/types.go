package calendar

import (
	"fmt"
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// TimeRange is the half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// ExternalEvent is the read projection of a calendar event.
type ExternalEvent struct {
	ID      string
	Summary string
	Start   time.Time
	End     time.Time
	Updated time.Time

	// AllDay marks an event spanning whole dates. Start and End are then
	// midnight UTC of the first date and of the day after the last date.
	AllDay bool
}

// MalformedEvent is an event that could not be projected.
type MalformedEvent struct {
	ID     string
	Reason string
}

// EventInput is the data written when creating or updating an event.
type EventInput struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string // IANA name; defaults to UTC
}

func (in EventInput) toEvent() *calendar.Event {
	tz := in.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	return &calendar.Event{
		Summary:     in.Summary,
		Description: in.Description,
		Start: &calendar.EventDateTime{
			DateTime: in.Start.Format(time.RFC3339),
			TimeZone: tz,
		},
		End: &calendar.EventDateTime{
			DateTime: in.End.Format(time.RFC3339),
			TimeZone: tz,
		},
	}
}

// dateLayout is the layout of the date of an all-day event.
const dateLayout = "2006-01-02"

// toExternalEvent projects an API event. Missing ids and unparsable or
// inverted times are rejected.
func toExternalEvent(event *calendar.Event) (ExternalEvent, error) {
	if event == nil || event.Id == "" {
		return ExternalEvent{}, fmt.Errorf("event has no id")
	}
	if event.Start == nil || event.End == nil {
		return ExternalEvent{}, fmt.Errorf("event has no start or end")
	}

	allDay := event.Start.DateTime == "" && event.End.DateTime == ""
	start, err := parseEventTime(event.Start, allDay)
	if err != nil {
		return ExternalEvent{}, fmt.Errorf("invalid start: %w", err)
	}
	end, err := parseEventTime(event.End, allDay)
	if err != nil {
		return ExternalEvent{}, fmt.Errorf("invalid end: %w", err)
	}
	if !end.After(start) {
		return ExternalEvent{}, fmt.Errorf("end %s is not after start %s", end, start)
	}

	ev := ExternalEvent{
		ID:      event.Id,
		Summary: event.Summary,
		Start:   start,
		End:     end,
		AllDay:  allDay,
	}
	if event.Updated != "" {
		if updated, err := time.Parse(time.RFC3339, event.Updated); err == nil {
			ev.Updated = updated
		}
	}
	return ev, nil
}

func parseEventTime(t *calendar.EventDateTime, allDay bool) (time.Time, error) {
	if !allDay {
		if t.DateTime == "" {
			return time.Time{}, fmt.Errorf("mixed all-day and timed bounds")
		}
		return time.Parse(time.RFC3339, t.DateTime)
	}
	if t.Date == "" {
		return time.Time{}, fmt.Errorf("no date or time")
	}
	return time.Parse(dateLayout, t.Date)
}
