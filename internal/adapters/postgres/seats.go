package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/showgrid/cinema-bookings/internal/domain"
)

// InsertSeatInstances materializes the bookable seats for a showtime, one row
// per hall seat. Called once when the showtime is scheduled (cmd/seed).
func (r *Repository) InsertSeatInstances(ctx context.Context, seats []domain.SeatInstance) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		for _, s := range seats {
			_, err := tx.Exec(ctx, `
				INSERT INTO seat_instances (id, showtime_id, seat_id, row_number, column_number, seat_type, price_multiplier, status)
				VALUES ($1, $2, $3, $4, $5, $6, $7, 'AVAILABLE')
				ON CONFLICT (showtime_id, seat_id) DO NOTHING
			`, s.ID, s.ShowtimeID, s.SeatID, s.RowNumber, s.ColumnNumber, s.SeatType, s.PriceMultiplier)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// SeatInstances returns the named instances belonging to the showtime. Ids
// for other showtimes, or unknown ids, are simply absent from the result;
// the caller decides whether that is an error.
func (r *Repository) SeatInstances(ctx context.Context, showtimeID uuid.UUID, ids []uuid.UUID) ([]domain.SeatInstance, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, showtime_id, seat_id, row_number, column_number, seat_type, price_multiplier, status, booking_id, updated_at
		FROM seat_instances WHERE showtime_id = $1 AND id = ANY($2)
	`, showtimeID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSeats(rows)
}

// ListSeatsByShowtime returns the full seat map with live statuses.
func (r *Repository) ListSeatsByShowtime(ctx context.Context, showtimeID uuid.UUID) ([]domain.SeatInstance, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, showtime_id, seat_id, row_number, column_number, seat_type, price_multiplier, status, booking_id, updated_at
		FROM seat_instances WHERE showtime_id = $1
		ORDER BY row_number, column_number
	`, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSeats(rows)
}

func scanSeats(rows pgx.Rows) ([]domain.SeatInstance, error) {
	var seats []domain.SeatInstance
	for rows.Next() {
		var s domain.SeatInstance
		if err := rows.Scan(&s.ID, &s.ShowtimeID, &s.SeatID, &s.RowNumber, &s.ColumnNumber, &s.SeatType, &s.PriceMultiplier, &s.Status, &s.BookingID, &s.UpdatedAt); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// reserveSeats is the compare-and-swap at the center of the engine: a single
// conditional UPDATE keyed on the current status, never a read-then-write
// pair. If any requested instance is not AVAILABLE the transaction is rolled
// back by the caller and the contested ids are reported.
func (r *Repository) reserveSeats(ctx context.Context, tx pgx.Tx, showtimeID uuid.UUID, seatIDs []uuid.UUID, bookingID uuid.UUID) error {
	rows, err := tx.Query(ctx, `
		UPDATE seat_instances
		SET status = 'IN_PROGRESS', booking_id = $3, updated_at = now()
		WHERE showtime_id = $1 AND id = ANY($2) AND status = 'AVAILABLE'
		RETURNING id
	`, showtimeID, seatIDs, bookingID)
	if err != nil {
		return err
	}
	reserved := make(map[uuid.UUID]bool, len(seatIDs))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		reserved[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if len(reserved) != len(seatIDs) {
		var contested []uuid.UUID
		for _, id := range seatIDs {
			if !reserved[id] {
				contested = append(contested, id)
			}
		}
		return &domain.SeatsUnavailableError{SeatIDs: contested}
	}
	return nil
}

func (r *Repository) confirmSeats(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE seat_instances SET status = 'BOOKED', updated_at = now()
		WHERE booking_id = $1 AND status = 'IN_PROGRESS'
	`, bookingID)
	return err
}

func (r *Repository) releaseSeats(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) (int64, error) {
	result, err := tx.Exec(ctx, `
		UPDATE seat_instances SET status = 'AVAILABLE', booking_id = NULL, updated_at = now()
		WHERE booking_id = $1 AND status IN ('IN_PROGRESS', 'BOOKED')
	`, bookingID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// Confirm transitions all IN_PROGRESS instances owned by the booking to
// BOOKED. Idempotent: already-BOOKED instances are left alone.
func (r *Repository) Confirm(ctx context.Context, bookingID uuid.UUID) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		return r.confirmSeats(ctx, tx, bookingID)
	})
}

// Release returns all instances owned by the booking to AVAILABLE and clears
// the owner. Idempotent: a second call releases nothing and reports zero.
func (r *Repository) Release(ctx context.Context, bookingID uuid.UUID) (int64, error) {
	var released int64
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		released, err = r.releaseSeats(ctx, tx, bookingID)
		return err
	})
	return released, err
}
