package domain

import (
	"time"

	"github.com/google/uuid"
)

type SeatStatus string

const (
	SeatAvailable  SeatStatus = "AVAILABLE"
	SeatInProgress SeatStatus = "IN_PROGRESS"
	SeatBooked     SeatStatus = "BOOKED"
)

// SeatInstance is one seat bound to one showtime, the unit of reservation.
// BookingID is set iff the seat is IN_PROGRESS or BOOKED.
type SeatInstance struct {
	ID              uuid.UUID
	ShowtimeID      uuid.UUID
	SeatID          uuid.UUID
	RowNumber       int
	ColumnNumber    int
	SeatType        string
	PriceMultiplier float64
	Status          SeatStatus
	BookingID       *uuid.UUID
	UpdatedAt       time.Time
}
