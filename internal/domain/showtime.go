package domain

import (
	"time"

	"github.com/google/uuid"
)

// Showtime is the catalog view of one scheduled screening. The core only
// reads it; AvailableSeats is a cached aggregate, never authoritative over
// the seat instance rows.
type Showtime struct {
	ID             uuid.UUID
	HallID         uuid.UUID
	Title          string
	BasePrice      float64
	StartTime      time.Time
	EndTime        time.Time
	TotalSeats     int
	AvailableSeats int
}

func (s *Showtime) Started(now time.Time) bool {
	return !now.Before(s.StartTime)
}
