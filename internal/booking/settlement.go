package booking

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/showgrid/cinema-bookings/internal/domain"
	"github.com/showgrid/cinema-bookings/internal/gateway"
	"github.com/showgrid/cinema-bookings/internal/observability"
)

// Settle validates a payment attempt against a pending booking and drives it
// to a terminal outcome. Whatever happens, the booking is never left PENDING
// once Settle returns: success completes it, a decline cancels it with its
// seats released, an expired hold is reclaimed on the spot.
func (s *Service) Settle(ctx context.Context, bookingID uuid.UUID, method domain.PaymentMethod, details map[string]string, amount float64) (*domain.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	switch b.Status {
	case domain.BookingCompleted:
		return nil, domain.ErrAlreadySettled
	case domain.BookingCancelled:
		if b.CancelReason != nil && *b.CancelReason == domain.CancelReasonExpired {
			return nil, domain.ErrExpired
		}
		return nil, domain.ErrAlreadySettled
	}

	now := s.clk.Now()
	if b.ExpiredAt(now) {
		// Same reclamation path the sweeper takes; losing the race to it
		// is fine, the outcome is identical.
		if expired, err := s.store.ExpireBooking(ctx, bookingID, now); err != nil {
			s.logger.WithError(err).WithField("booking_id", bookingID).Error("failed to expire booking on settle")
		} else if expired {
			s.releaseSideEffects(ctx, b)
		}
		observability.SettlementsTotal.WithLabelValues("expired").Inc()
		return nil, domain.ErrExpired
	}

	if amount != b.TotalAmount {
		return nil, domain.ErrAmountMismatch
	}

	// The payment row lands before the gateway round trip and no DB
	// transaction stays open across it, so a slow gateway never blocks
	// other buyers' reservations.
	p := domain.NewPayment(bookingID, method, amount, now)
	if err := s.store.InsertPayment(ctx, p); err != nil {
		return nil, err
	}

	transactionID, err := s.gw.Attempt(ctx, method, details, amount)
	if err != nil {
		reason := err.Error()
		var declined *gateway.DeclinedError
		if errors.As(err, &declined) {
			reason = declined.Reason
		}
		if err := s.store.FailSettlement(ctx, bookingID, p.ID, reason, s.clk.Now()); err != nil {
			s.logger.WithError(err).WithField("booking_id", bookingID).Error("failed to record settlement failure")
			return nil, err
		}
		s.releaseSideEffects(ctx, b)
		if s.audit != nil {
			s.audit.BookingSettled(ctx, b, p.ID, "failed")
		}
		observability.SettlementsTotal.WithLabelValues("failed").Inc()
		return nil, &domain.PaymentFailedError{Reason: reason}
	}

	if err := s.store.CompleteSettlement(ctx, bookingID, p.ID, transactionID, s.clk.Now()); err != nil {
		// Another transition reached the booking between our checks and
		// the commit; the store refunded the payment and reports the
		// terminal state.
		observability.SettlementsTotal.WithLabelValues("raced").Inc()
		return nil, err
	}

	if s.cache != nil {
		s.cache.InvalidateSeatMap(ctx, b.ShowtimeID)
	}
	if s.audit != nil {
		s.audit.BookingSettled(ctx, b, p.ID, "completed")
	}
	observability.SettlementsTotal.WithLabelValues("completed").Inc()

	return s.store.GetBooking(ctx, bookingID)
}
