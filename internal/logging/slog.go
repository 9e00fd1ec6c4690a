package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation    = "operation"
	KeyService      = "service"
	KeyBookingID    = "booking_id"
	KeyEventID      = "event_id"
	KeyCalendarID   = "calendar_id"
	KeyAction       = "action"
	KeyCustomerHash = "customer_hash"
	KeyDuration     = "duration"
	KeyStatus       = "status"
	KeyError        = "error"
)

// Status values for consistent logging. They match the metric label values
// in the instrumentation package.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithService returns a logger with the service attribute set.
func WithService(logger *slog.Logger, service string) *slog.Logger {
	return logger.With(slog.String(KeyService, service))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Service returns a slog attribute for the service name.
func Service(svc string) slog.Attr {
	return slog.String(KeyService, svc)
}

// BookingID returns a slog attribute for a booking identifier.
func BookingID(id string) slog.Attr {
	return slog.String(KeyBookingID, id)
}

// EventID returns a slog attribute for an external calendar event identifier.
func EventID(id string) slog.Attr {
	return slog.String(KeyEventID, id)
}

// CalendarID returns a slog attribute for the target calendar.
func CalendarID(id string) slog.Attr {
	return slog.String(KeyCalendarID, id)
}

// Action returns a slog attribute for a propagation action.
func Action(action string) slog.Attr {
	return slog.String(KeyAction, action)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted from output.
// This allows safely passing Err(maybeNilErr) without adding empty attributes.
//
// Usage:
//
//	logger.Info("operation", logging.Err(err))  // Safe even if err is nil
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// Anonymize returns a hashed representation of a contact value (email or
// phone) for logging purposes.
// This allows correlation of log entries without exposing PII.
func Anonymize(value string) string {
	if value == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(value))
	return "customer:" + hex.EncodeToString(hash[:8])
}

// CustomerHash returns a slog attribute with the anonymized customer contact.
//
// Usage:
//
//	logger.Info("booking created", logging.CustomerHash(b.CustomerEmail))
func CustomerHash(contact string) slog.Attr {
	return slog.String(KeyCustomerHash, Anonymize(contact))
}

// SanitizeToken returns a masked version of a token for logging.
// It returns a length indicator without exposing any token content,
// as even partial token prefixes (like JWT headers) can aid attacks.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}
