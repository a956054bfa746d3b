package booking

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/showgrid/cinema-bookings/internal/clock"
	"github.com/showgrid/cinema-bookings/internal/domain"
	"github.com/showgrid/cinema-bookings/internal/gateway"
	"github.com/showgrid/cinema-bookings/internal/observability"
)

// Service is the booking lifecycle manager: it turns a buyer's seat
// selection into a priced, time-bounded hold and drives every status
// transition from there.
type Service struct {
	store      Store
	catalog    Catalog
	cache      SeatCache
	audit      Audit
	gw         gateway.Gateway
	clk        clock.Clock
	logger     observability.Logger
	holdTTL    time.Duration
	seatMapTTL time.Duration
}

func NewService(store Store, catalog Catalog, gw gateway.Gateway, clk clock.Clock, logger observability.Logger, holdTTL time.Duration) *Service {
	return &Service{
		store:      store,
		catalog:    catalog,
		gw:         gw,
		clk:        clk,
		logger:     logger,
		holdTTL:    holdTTL,
		seatMapTTL: 2 * time.Second,
	}
}

// WithCache attaches the redis fast path.
func (s *Service) WithCache(cache SeatCache, seatMapTTL time.Duration) *Service {
	s.cache = cache
	if seatMapTTL > 0 {
		s.seatMapTTL = seatMapTTL
	}
	return s
}

// WithAudit attaches the audit trail sink.
func (s *Service) WithAudit(audit Audit) *Service {
	s.audit = audit
	return s
}

// CreateBooking validates the selection against the catalog, prices it, and
// atomically reserves the seats while creating the PENDING booking. A
// conflict on any seat creates nothing.
func (s *Service) CreateBooking(ctx context.Context, buyerID, showtimeID uuid.UUID, seatIDs []uuid.UUID) (*domain.Booking, error) {
	if len(seatIDs) == 0 {
		return nil, errors.Wrap(domain.ErrInvalidInput, "no seats requested")
	}
	seen := make(map[uuid.UUID]bool, len(seatIDs))
	for _, id := range seatIDs {
		if seen[id] {
			return nil, errors.Wrap(domain.ErrInvalidInput, "duplicate seat id")
		}
		seen[id] = true
	}

	now := s.clk.Now()
	showtime, err := s.catalog.GetShowtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	if showtime.Started(now) {
		return nil, domain.ErrShowtimeStarted
	}

	seats, err := s.store.SeatInstances(ctx, showtimeID, seatIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]domain.SeatInstance, len(seats))
	for _, seat := range seats {
		byID[seat.ID] = seat
	}
	var missing []uuid.UUID
	var total float64
	for _, id := range seatIDs {
		seat, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		total += showtime.BasePrice * seat.PriceMultiplier
	}
	if len(missing) > 0 {
		return nil, &domain.SeatsNotFoundError{SeatIDs: missing}
	}

	b := domain.NewBooking(buyerID, showtimeID, seatIDs, total, now, s.holdTTL)

	var locked []uuid.UUID
	if s.cache != nil {
		for _, id := range seatIDs {
			ok, err := s.cache.LockSeat(ctx, showtimeID, id, b.ID, s.holdTTL)
			if err != nil {
				// Redis down must not take bookings down; the DB CAS
				// still guarantees exclusivity.
				s.logger.WithError(err).Warn("seat lock fast path unavailable")
				break
			}
			if !ok {
				s.cache.UnlockSeats(ctx, showtimeID, locked)
				observability.SeatConflicts.Inc()
				return nil, &domain.SeatsUnavailableError{SeatIDs: []uuid.UUID{id}}
			}
			locked = append(locked, id)
		}
	}

	if err := s.store.CreateBooking(ctx, b); err != nil {
		if s.cache != nil && len(locked) > 0 {
			s.cache.UnlockSeats(ctx, showtimeID, locked)
		}
		var unavailable *domain.SeatsUnavailableError
		if errors.As(err, &unavailable) {
			observability.SeatConflicts.Inc()
		}
		return nil, err
	}

	observability.BookingsCreated.Inc()
	if err := s.catalog.AdjustAvailableSeats(ctx, showtimeID, -len(seatIDs)); err != nil {
		s.logger.WithError(err).Warn("available seat counter not adjusted")
	}
	if s.cache != nil {
		s.cache.InvalidateSeatMap(ctx, showtimeID)
	}
	if s.audit != nil {
		s.audit.BookingCreated(ctx, b)
	}
	return b, nil
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

func (s *Service) Payments(ctx context.Context, bookingID uuid.UUID) ([]domain.Payment, error) {
	return s.store.Payments(ctx, bookingID)
}

// CancelBooking cancels a pending or confirmed booking and releases its
// seats through the shared release path. Idempotent against an already
// cancelled booking.
func (s *Service) CancelBooking(ctx context.Context, id uuid.UUID, reason string) error {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	wasHeld := !b.Terminal()

	if err := s.store.CancelBooking(ctx, id, reason, s.clk.Now()); err != nil {
		return err
	}

	if wasHeld {
		s.releaseSideEffects(ctx, b)
		if s.audit != nil {
			s.audit.BookingCancelled(ctx, id, reason)
		}
	}
	return nil
}

// SeatMap returns the live seat map for display, through the short-lived
// cache when one is attached.
func (s *Service) SeatMap(ctx context.Context, showtimeID uuid.UUID) ([]domain.SeatInstance, error) {
	if s.cache != nil {
		if seats, err := s.cache.GetSeatMap(ctx, showtimeID); err == nil && seats != nil {
			return seats, nil
		}
	}
	seats, err := s.store.ListSeatsByShowtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetSeatMap(ctx, showtimeID, seats, s.seatMapTTL); err != nil {
			s.logger.WithError(err).Debug("seat map not cached")
		}
	}
	return seats, nil
}

// releaseSideEffects clears the non-authoritative bits after seats went back
// to Available: redis locks, the seat map cache and the catalog counter.
func (s *Service) releaseSideEffects(ctx context.Context, b *domain.Booking) {
	if s.cache != nil {
		s.cache.UnlockSeats(ctx, b.ShowtimeID, b.SeatIDs)
		s.cache.InvalidateSeatMap(ctx, b.ShowtimeID)
	}
	if err := s.catalog.AdjustAvailableSeats(ctx, b.ShowtimeID, len(b.SeatIDs)); err != nil {
		s.logger.WithError(err).Warn("available seat counter not adjusted")
	}
}
