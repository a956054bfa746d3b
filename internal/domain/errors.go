package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrShowtimeStarted      = errors.New("showtime already started")
	ErrExpired              = errors.New("booking expired")
	ErrAmountMismatch       = errors.New("amount mismatch")
	ErrAlreadySettled       = errors.New("booking already settled")
)

// SeatsUnavailableError reports a failed reservation under contention. It is
// an expected outcome, not a fault: the buyer must re-query the seat map and
// re-select. SeatIDs names exactly the contested instances.
type SeatsUnavailableError struct {
	SeatIDs []uuid.UUID
}

func (e *SeatsUnavailableError) Error() string {
	return fmt.Sprintf("%d seat(s) unavailable", len(e.SeatIDs))
}

// SeatsNotFoundError reports requested seat instance ids that do not belong
// to the showtime.
type SeatsNotFoundError struct {
	SeatIDs []uuid.UUID
}

func (e *SeatsNotFoundError) Error() string {
	return fmt.Sprintf("%d seat(s) not found for showtime", len(e.SeatIDs))
}

// PaymentFailedError surfaces a gateway decline. By the time the caller sees
// it the booking is already cancelled and its seats released; a retry must
// start a new booking.
type PaymentFailedError struct {
	Reason string
}

func (e *PaymentFailedError) Error() string {
	return "payment failed: " + e.Reason
}
