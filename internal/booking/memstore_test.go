package booking_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/showgrid/cinema-bookings/internal/domain"
)

// memStore mirrors the postgres repository semantics in memory: every
// method is one atomic unit guarded by the mutex, conditional transitions
// re-check status before mutating, and a reservation conflict leaves
// nothing behind.
type memStore struct {
	mu       sync.Mutex
	seats    map[uuid.UUID]*domain.SeatInstance
	bookings map[uuid.UUID]*domain.Booking
	payments map[uuid.UUID]*domain.Payment
	events   []string
}

func newMemStore() *memStore {
	return &memStore{
		seats:    make(map[uuid.UUID]*domain.SeatInstance),
		bookings: make(map[uuid.UUID]*domain.Booking),
		payments: make(map[uuid.UUID]*domain.Payment),
	}
}

func (m *memStore) addSeat(showtimeID uuid.UUID, row, col int, multiplier float64) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &domain.SeatInstance{
		ID:              uuid.New(),
		ShowtimeID:      showtimeID,
		SeatID:          uuid.New(),
		RowNumber:       row,
		ColumnNumber:    col,
		SeatType:        "STANDARD",
		PriceMultiplier: multiplier,
		Status:          domain.SeatAvailable,
	}
	m.seats[s.ID] = s
	return s.ID
}

func (m *memStore) CreateBooking(ctx context.Context, b *domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var contested []uuid.UUID
	for _, id := range b.SeatIDs {
		seat, ok := m.seats[id]
		if !ok || seat.ShowtimeID != b.ShowtimeID || seat.Status != domain.SeatAvailable {
			contested = append(contested, id)
		}
	}
	if len(contested) > 0 {
		return &domain.SeatsUnavailableError{SeatIDs: contested}
	}

	for _, id := range b.SeatIDs {
		bid := b.ID
		m.seats[id].Status = domain.SeatInProgress
		m.seats[id].BookingID = &bid
	}
	copied := *b
	m.bookings[b.ID] = &copied
	return nil
}

func (m *memStore) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (m *memStore) releaseSeatsLocked(bookingID uuid.UUID) int {
	released := 0
	for _, seat := range m.seats {
		if seat.BookingID != nil && *seat.BookingID == bookingID {
			seat.Status = domain.SeatAvailable
			seat.BookingID = nil
			released++
		}
	}
	return released
}

func (m *memStore) CancelBooking(ctx context.Context, id uuid.UUID, reason string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return domain.ErrNotFound
	}
	switch b.Status {
	case domain.BookingCancelled:
		return nil
	case domain.BookingCompleted:
		return domain.ErrAlreadySettled
	}
	b.Status = domain.BookingCancelled
	b.CancelReason = &reason
	b.CancelledAt = &now
	for _, p := range m.payments {
		if p.BookingID == id && p.Status == domain.PaymentPending {
			p.Status = domain.PaymentRefunded
			r := reason
			p.RefundReason = &r
		}
	}
	m.releaseSeatsLocked(id)
	m.events = append(m.events, "booking.cancelled")
	return nil
}

func (m *memStore) ExpireBooking(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != domain.BookingPending || !b.ExpiresAt.Before(now) {
		return false, nil
	}
	reason := domain.CancelReasonExpired
	b.Status = domain.BookingCancelled
	b.CancelReason = &reason
	b.CancelledAt = &now
	m.releaseSeatsLocked(id)
	m.events = append(m.events, "booking.expired")
	return true, nil
}

func (m *memStore) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, b := range m.bookings {
		if b.Status == domain.BookingPending && b.ExpiresAt.Before(now) {
			ids = append(ids, id)
			if len(ids) == limit {
				break
			}
		}
	}
	return ids, nil
}

func (m *memStore) SeatInstances(ctx context.Context, showtimeID uuid.UUID, ids []uuid.UUID) ([]domain.SeatInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SeatInstance
	for _, id := range ids {
		if seat, ok := m.seats[id]; ok && seat.ShowtimeID == showtimeID {
			out = append(out, *seat)
		}
	}
	return out, nil
}

func (m *memStore) ListSeatsByShowtime(ctx context.Context, showtimeID uuid.UUID) ([]domain.SeatInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SeatInstance
	for _, seat := range m.seats {
		if seat.ShowtimeID == showtimeID {
			out = append(out, *seat)
		}
	}
	return out, nil
}

func (m *memStore) InsertPayment(ctx context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *p
	m.payments[p.ID] = &copied
	return nil
}

func (m *memStore) CompleteSettlement(ctx context.Context, bookingID, paymentID uuid.UUID, transactionID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return domain.ErrNotFound
	}
	if b.Status != domain.BookingPending {
		if p, ok := m.payments[paymentID]; ok && p.Status == domain.PaymentPending {
			p.Status = domain.PaymentRefunded
		}
		if b.Status == domain.BookingCancelled && b.CancelReason != nil && *b.CancelReason == domain.CancelReasonExpired {
			return domain.ErrExpired
		}
		return domain.ErrAlreadySettled
	}
	b.Status = domain.BookingCompleted
	if p, ok := m.payments[paymentID]; ok {
		p.Status = domain.PaymentCompleted
		p.TransactionID = transactionID
	}
	for _, seat := range m.seats {
		if seat.BookingID != nil && *seat.BookingID == bookingID && seat.Status == domain.SeatInProgress {
			seat.Status = domain.SeatBooked
		}
	}
	m.events = append(m.events, "booking.completed")
	return nil
}

func (m *memStore) FailSettlement(ctx context.Context, bookingID, paymentID uuid.UUID, reason string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payments[paymentID]; ok && p.Status == domain.PaymentPending {
		p.Status = domain.PaymentFailed
		r := reason
		p.FailureReason = &r
	}
	b, ok := m.bookings[bookingID]
	if !ok || b.Status != domain.BookingPending {
		return nil
	}
	reason = domain.CancelReasonPaymentFailed
	b.Status = domain.BookingCancelled
	b.CancelReason = &reason
	b.CancelledAt = &now
	m.releaseSeatsLocked(bookingID)
	m.events = append(m.events, "booking.cancelled")
	return nil
}

func (m *memStore) Payments(ctx context.Context, bookingID uuid.UUID) ([]domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Payment
	for _, p := range m.payments {
		if p.BookingID == bookingID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) seat(id uuid.UUID) domain.SeatInstance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.seats[id]
}

// checkSeatInvariant verifies owning-booking is set iff the seat is held or
// booked, for every seat in the store.
func (m *memStore) checkSeatInvariant() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, seat := range m.seats {
		available := seat.Status == domain.SeatAvailable
		if available != (seat.BookingID == nil) {
			return false
		}
	}
	return true
}

// memCatalog is the showtime lookup fake.
type memCatalog struct {
	mu        sync.Mutex
	showtimes map[uuid.UUID]*domain.Showtime
}

func newMemCatalog() *memCatalog {
	return &memCatalog{showtimes: make(map[uuid.UUID]*domain.Showtime)}
}

func (c *memCatalog) addShowtime(basePrice float64, start, end time.Time, totalSeats int) uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := &domain.Showtime{
		ID:             uuid.New(),
		HallID:         uuid.New(),
		Title:          "Test Showing",
		BasePrice:      basePrice,
		StartTime:      start,
		EndTime:        end,
		TotalSeats:     totalSeats,
		AvailableSeats: totalSeats,
	}
	c.showtimes[st.ID] = st
	return st.ID
}

func (c *memCatalog) GetShowtime(ctx context.Context, id uuid.UUID) (*domain.Showtime, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.showtimes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *st
	return &copied, nil
}

func (c *memCatalog) AdjustAvailableSeats(ctx context.Context, id uuid.UUID, delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.showtimes[id]; ok {
		st.AvailableSeats += delta
	}
	return nil
}

func (c *memCatalog) available(id uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.showtimes[id].AvailableSeats
}
