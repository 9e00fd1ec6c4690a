package booking

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// CreateInput is the data the booking flow collects for a new booking.
type CreateInput struct {
	ServiceID     string
	Date          string
	StartTime     string
	EndTime       string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Notes         string
}

const (
	maxNameLength  = 200
	maxNotesLength = 500
)

func validateCreate(in CreateInput) error {
	if strings.TrimSpace(in.ServiceID) == "" {
		return fmt.Errorf("%w: serviceId is required", ErrInvalidInput)
	}
	if in.ServiceID == ExternalServiceID {
		return fmt.Errorf("%w: serviceId %q is reserved", ErrInvalidInput, ExternalServiceID)
	}
	if err := validateSlot(in.Date, in.StartTime, in.EndTime); err != nil {
		return err
	}

	name := strings.TrimSpace(in.CustomerName)
	if name == "" {
		return fmt.Errorf("%w: customer name is required", ErrInvalidInput)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: customer name exceeds %d characters", ErrInvalidInput, maxNameLength)
	}
	if strings.TrimSpace(in.CustomerPhone) == "" {
		return fmt.Errorf("%w: customer phone is required", ErrInvalidInput)
	}
	if in.CustomerEmail != "" {
		if _, err := mail.ParseAddress(in.CustomerEmail); err != nil {
			return fmt.Errorf("%w: invalid customer email: %v", ErrInvalidInput, err)
		}
	}
	if len(in.Notes) > maxNotesLength {
		return fmt.Errorf("%w: notes exceed %d characters", ErrInvalidInput, maxNotesLength)
	}
	return nil
}

// validateSlot checks the date/time formats and that end is after start.
func validateSlot(date, start, end string) error {
	if _, err := time.Parse(DateFormat, date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	s, err := time.Parse(TimeFormat, start)
	if err != nil {
		return fmt.Errorf("%w: startTime must be HH:MM", ErrInvalidInput)
	}
	e, err := time.Parse(TimeFormat, end)
	if err != nil {
		return fmt.Errorf("%w: endTime must be HH:MM", ErrInvalidInput)
	}
	if !e.After(s) {
		return fmt.Errorf("%w: endTime must be after startTime", ErrInvalidInput)
	}
	return nil
}

// normalizePhone drops the separators customers commonly type.
func normalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, phone)
}
