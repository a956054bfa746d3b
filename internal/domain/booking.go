package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingCancelled BookingStatus = "CANCELLED"
)

const (
	CancelReasonExpired       = "expired"
	CancelReasonPaymentFailed = "payment failed"
)

// Booking is a priced, time-bounded hold on a set of seat instances.
// COMPLETED and CANCELLED are terminal; rows are never deleted.
type Booking struct {
	ID           uuid.UUID
	BuyerID      uuid.UUID
	ShowtimeID   uuid.UUID
	SeatIDs      []uuid.UUID
	TotalAmount  float64
	Status       BookingStatus
	CreatedAt    time.Time
	ExpiresAt    time.Time
	CancelReason *string
	CancelledAt  *time.Time
}

func NewBooking(buyerID, showtimeID uuid.UUID, seatIDs []uuid.UUID, total float64, now time.Time, holdTTL time.Duration) *Booking {
	return &Booking{
		ID:          uuid.New(),
		BuyerID:     buyerID,
		ShowtimeID:  showtimeID,
		SeatIDs:     seatIDs,
		TotalAmount: total,
		Status:      BookingPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(holdTTL),
	}
}

func (b *Booking) Terminal() bool {
	return b.Status == BookingCompleted || b.Status == BookingCancelled
}

func (b *Booking) ExpiredAt(now time.Time) bool {
	return b.Status == BookingPending && now.After(b.ExpiresAt)
}
