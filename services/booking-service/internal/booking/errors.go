package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrAvailabilityUnknown means reservations could not be read; no slots
	// may be offered.
	ErrAvailabilityUnknown = errors.New("availability unknown")
	// ErrSlotTaken means an active booking already holds the slot.
	ErrSlotTaken = errors.New("slot already taken")
	// ErrInsertFailed means the store rejected or failed the booking write.
	ErrInsertFailed      = errors.New("booking could not be saved")
	ErrNotFound          = errors.New("booking not found")
	ErrInvalidTransition = errors.New("status change not allowed")
)

// ValidationError rejects a request before it reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
