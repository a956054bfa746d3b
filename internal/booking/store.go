package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/showgrid/cinema-bookings/internal/domain"
)

// Store is the transactional persistence the lifecycle manager needs. Every
// method is one atomic unit of work: either the whole transition lands or
// none of it does. Implemented by the postgres adapter.
type Store interface {
	// CreateBooking reserves b.SeatIDs (Available -> InProgress, owner
	// stamped) and persists the booking in the same transaction. Returns
	// *domain.SeatsUnavailableError naming the contested ids on conflict.
	CreateBooking(ctx context.Context, b *domain.Booking) error
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	// CancelBooking re-checks status in-transaction: no-op success when
	// already cancelled, domain.ErrAlreadySettled when completed.
	CancelBooking(ctx context.Context, id uuid.UUID, reason string, now time.Time) error
	// ExpireBooking conditionally cancels one expired pending booking;
	// false means another transition won the race.
	ExpireBooking(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	SeatInstances(ctx context.Context, showtimeID uuid.UUID, ids []uuid.UUID) ([]domain.SeatInstance, error)
	ListSeatsByShowtime(ctx context.Context, showtimeID uuid.UUID) ([]domain.SeatInstance, error)

	InsertPayment(ctx context.Context, p *domain.Payment) error
	CompleteSettlement(ctx context.Context, bookingID, paymentID uuid.UUID, transactionID string, now time.Time) error
	FailSettlement(ctx context.Context, bookingID, paymentID uuid.UUID, reason string, now time.Time) error
	Payments(ctx context.Context, bookingID uuid.UUID) ([]domain.Payment, error)
}

// Catalog is the showtime lookup collaborator (mongo in production).
type Catalog interface {
	GetShowtime(ctx context.Context, id uuid.UUID) (*domain.Showtime, error)
	AdjustAvailableSeats(ctx context.Context, id uuid.UUID, delta int) error
}

// SeatCache is the optional redis fast path: per-seat locks in front of the
// DB compare-and-swap plus a short-lived seat map cache. Never authoritative.
type SeatCache interface {
	LockSeat(ctx context.Context, showtimeID, seatID, bookingID uuid.UUID, ttl time.Duration) (bool, error)
	UnlockSeats(ctx context.Context, showtimeID uuid.UUID, seatIDs []uuid.UUID)
	GetSeatMap(ctx context.Context, showtimeID uuid.UUID) ([]domain.SeatInstance, error)
	SetSeatMap(ctx context.Context, showtimeID uuid.UUID, seats []domain.SeatInstance, ttl time.Duration) error
	InvalidateSeatMap(ctx context.Context, showtimeID uuid.UUID)
}

// Audit receives lifecycle transitions for the audit trail. Best effort.
type Audit interface {
	BookingCreated(ctx context.Context, b *domain.Booking)
	BookingSettled(ctx context.Context, b *domain.Booking, paymentID uuid.UUID, outcome string)
	BookingCancelled(ctx context.Context, bookingID uuid.UUID, reason string)
}
