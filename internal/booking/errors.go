package booking

import "errors"

var (
	// ErrNotFound is returned when a booking does not exist.
	ErrNotFound = errors.New("booking: not found")

	// ErrSlotTaken is returned when a booking would overlap an active booking.
	ErrSlotTaken = errors.New("booking: time slot already taken")

	// ErrInvalidInput is returned when booking fields fail validation.
	ErrInvalidInput = errors.New("booking: invalid input")

	// ErrAlreadyCancelled is returned when mutating a cancelled booking.
	ErrAlreadyCancelled = errors.New("booking: already cancelled")
)
