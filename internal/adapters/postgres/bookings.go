package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/showgrid/cinema-bookings/internal/domain"
)

// CreateBooking reserves the requested seats and persists the booking with
// its seat links in the same transaction, so seat ownership and the booking
// row cannot diverge. A contested seat rolls everything back: no booking row
// is created and no seat is left IN_PROGRESS.
func (r *Repository) CreateBooking(ctx context.Context, b *domain.Booking) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if err := r.reserveSeats(ctx, tx, b.ShowtimeID, b.SeatIDs, b.ID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO bookings (id, buyer_id, showtime_id, total_amount, status, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, b.ID, b.BuyerID, b.ShowtimeID, b.TotalAmount, b.Status, b.CreatedAt, b.ExpiresAt)
		if err != nil {
			return errors.Wrap(err, "insert booking")
		}
		for _, seatID := range b.SeatIDs {
			_, err := tx.Exec(ctx, `
				INSERT INTO booking_seats (booking_id, seat_instance_id)
				VALUES ($1, $2)
			`, b.ID, seatID)
			if err != nil {
				return errors.Wrap(err, "insert booking seat")
			}
		}
		return nil
	})
}

func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	var b domain.Booking
	err := r.pool.QueryRow(ctx, `
		SELECT id, buyer_id, showtime_id, total_amount, status, created_at, expires_at, cancel_reason, cancelled_at
		FROM bookings WHERE id = $1
	`, id).Scan(&b.ID, &b.BuyerID, &b.ShowtimeID, &b.TotalAmount, &b.Status, &b.CreatedAt, &b.ExpiresAt, &b.CancelReason, &b.CancelledAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT seat_instance_id FROM booking_seats WHERE booking_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var seatID uuid.UUID
		if err := rows.Scan(&seatID); err != nil {
			return nil, err
		}
		b.SeatIDs = append(b.SeatIDs, seatID)
	}
	return &b, rows.Err()
}

// CancelBooking is the single cancellation path used by the buyer-facing
// cancel, payment failure and expiry alike. The status is re-checked inside
// the transaction, so a booking that has already reached a terminal state is
// never overwritten: an already-cancelled booking is a no-op success, a
// completed one is rejected.
func (r *Repository) CancelBooking(ctx context.Context, id uuid.UUID, reason string, now time.Time) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		var status domain.BookingStatus
		err := tx.QueryRow(ctx, `
			SELECT status FROM bookings WHERE id = $1 FOR UPDATE
		`, id).Scan(&status)
		if err == pgx.ErrNoRows {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		switch status {
		case domain.BookingCancelled:
			return nil
		case domain.BookingCompleted:
			return domain.ErrAlreadySettled
		}

		_, err = tx.Exec(ctx, `
			UPDATE bookings SET status = 'CANCELLED', cancel_reason = $2, cancelled_at = $3
			WHERE id = $1
		`, id, reason, now)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE payments SET status = 'REFUNDED', refund_reason = $2, updated_at = $3
			WHERE booking_id = $1 AND status = 'PENDING'
		`, id, reason, now)
		if err != nil {
			return err
		}
		if _, err := r.releaseSeats(ctx, tx, id); err != nil {
			return err
		}
		return r.insertOutbox(ctx, tx, newBookingEvent(id, "booking.cancelled", map[string]interface{}{
			"booking_id": id,
			"reason":     reason,
		}))
	})
}

// ExpireBooking flips one expired PENDING booking to CANCELLED("expired")
// and releases its seats, all in one transaction. The conditional update is
// the guard against the three-way race with Settle and CancelBooking: losing
// the race affects zero rows and the sweep skips the booking.
func (r *Repository) ExpireBooking(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	var expired bool
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE bookings SET status = 'CANCELLED', cancel_reason = $2, cancelled_at = $3
			WHERE id = $1 AND status = 'PENDING' AND expires_at < $3
		`, id, domain.CancelReasonExpired, now)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return nil
		}
		expired = true
		if _, err := r.releaseSeats(ctx, tx, id); err != nil {
			return err
		}
		return r.insertOutbox(ctx, tx, newBookingEvent(id, "booking.expired", map[string]interface{}{
			"booking_id": id,
			"reason":     domain.CancelReasonExpired,
		}))
	})
	return expired, err
}

func (r *Repository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM bookings
		WHERE status = 'PENDING' AND expires_at < $1
		ORDER BY expires_at ASC LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertPayment records a settlement attempt before the external gateway
// round trip, outside of any seat transaction, so a hanging gateway never
// blocks other buyers.
func (r *Repository) InsertPayment(ctx context.Context, p *domain.Payment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payments (id, booking_id, amount, method, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.BookingID, p.Amount, p.Method, p.Status, p.CreatedAt, p.UpdatedAt)
	return errors.Wrap(err, "insert payment")
}

// CompleteSettlement finalizes a successful gateway attempt: payment
// COMPLETED, booking COMPLETED, seats BOOKED, outbox event — one transaction,
// guarded on the booking still being PENDING. If the sweeper or an explicit
// cancel won the race meanwhile, the payment is refunded instead and the
// terminal state is surfaced to the caller.
func (r *Repository) CompleteSettlement(ctx context.Context, bookingID, paymentID uuid.UUID, transactionID string, now time.Time) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE bookings SET status = 'COMPLETED' WHERE id = $1 AND status = 'PENDING'
		`, bookingID)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return r.refundRacedPayment(ctx, tx, bookingID, paymentID, now)
		}

		_, err = tx.Exec(ctx, `
			UPDATE payments SET status = 'COMPLETED', transaction_id = $2, updated_at = $3
			WHERE id = $1
		`, paymentID, transactionID, now)
		if err != nil {
			return err
		}
		if err := r.confirmSeats(ctx, tx, bookingID); err != nil {
			return err
		}
		return r.insertOutbox(ctx, tx, newBookingEvent(bookingID, "booking.completed", map[string]interface{}{
			"booking_id":     bookingID,
			"payment_id":     paymentID,
			"transaction_id": transactionID,
		}))
	})
}

func (r *Repository) refundRacedPayment(ctx context.Context, tx pgx.Tx, bookingID, paymentID uuid.UUID, now time.Time) error {
	var status domain.BookingStatus
	var cancelReason *string
	err := tx.QueryRow(ctx, `
		SELECT status, cancel_reason FROM bookings WHERE id = $1
	`, bookingID).Scan(&status, &cancelReason)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE payments SET status = 'REFUNDED', refund_reason = 'booking no longer pending', updated_at = $2
		WHERE id = $1 AND status = 'PENDING'
	`, paymentID, now)
	if err != nil {
		return err
	}
	if status == domain.BookingCancelled && cancelReason != nil && *cancelReason == domain.CancelReasonExpired {
		return domain.ErrExpired
	}
	return domain.ErrAlreadySettled
}

// FailSettlement finalizes a declined gateway attempt: payment FAILED and,
// unless another transition already reached the booking, booking CANCELLED
// with its seats released.
func (r *Repository) FailSettlement(ctx context.Context, bookingID, paymentID uuid.UUID, reason string, now time.Time) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE payments SET status = 'FAILED', failure_reason = $2, updated_at = $3
			WHERE id = $1 AND status = 'PENDING'
		`, paymentID, reason, now)
		if err != nil {
			return err
		}
		result, err := tx.Exec(ctx, `
			UPDATE bookings SET status = 'CANCELLED', cancel_reason = $2, cancelled_at = $3
			WHERE id = $1 AND status = 'PENDING'
		`, bookingID, domain.CancelReasonPaymentFailed, now)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return nil
		}
		if _, err := r.releaseSeats(ctx, tx, bookingID); err != nil {
			return err
		}
		return r.insertOutbox(ctx, tx, newBookingEvent(bookingID, "booking.cancelled", map[string]interface{}{
			"booking_id": bookingID,
			"reason":     domain.CancelReasonPaymentFailed,
		}))
	})
}

// Payments lists the settlement attempts recorded against a booking.
func (r *Repository) Payments(ctx context.Context, bookingID uuid.UUID) ([]domain.Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, booking_id, amount, method, COALESCE(transaction_id, ''), status, failure_reason, refund_reason, created_at, updated_at
		FROM payments WHERE booking_id = $1 ORDER BY created_at ASC
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.BookingID, &p.Amount, &p.Method, &p.TransactionID, &p.Status, &p.FailureReason, &p.RefundReason, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func newBookingEvent(bookingID uuid.UUID, eventType string, payload map[string]interface{}) OutboxRecord {
	body, _ := json.Marshal(payload)
	return OutboxRecord{
		ID:            uuid.New(),
		AggregateType: "booking",
		AggregateID:   bookingID,
		EventType:     eventType,
		Payload:       body,
		DedupeKey:     uuid.New().String(),
	}
}
