package sweeper

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/showgrid/cinema-bookings/internal/clock"
	"github.com/showgrid/cinema-bookings/internal/domain"
	"github.com/showgrid/cinema-bookings/internal/observability"
	"golang.org/x/sync/errgroup"
)

// Store is the slice of persistence the sweeper needs.
type Store interface {
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ExpireBooking(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
}

// SeatCache mirrors the redis fast path so reclaimed seats become lockable
// again immediately instead of waiting for the lock TTL.
type SeatCache interface {
	UnlockSeats(ctx context.Context, showtimeID uuid.UUID, seatIDs []uuid.UUID)
	InvalidateSeatMap(ctx context.Context, showtimeID uuid.UUID)
}

type Catalog interface {
	AdjustAvailableSeats(ctx context.Context, id uuid.UUID, delta int) error
}

// Sweeper reclaims expired holds. Each booking is released in its own
// transaction, so a crash mid-sweep leaves the rest for the next tick and
// never an inconsistent inventory.
type Sweeper struct {
	store       Store
	cache       SeatCache
	catalog     Catalog
	clk         clock.Clock
	logger      observability.Logger
	batchSize   int
	concurrency int
	maxRetries  int
}

func New(store Store, clk clock.Clock, logger observability.Logger, batchSize int) *Sweeper {
	return &Sweeper{
		store:       store,
		clk:         clk,
		logger:      logger,
		batchSize:   batchSize,
		concurrency: 4,
		maxRetries:  3,
	}
}

func (s *Sweeper) WithCache(cache SeatCache) *Sweeper {
	s.cache = cache
	return s
}

func (s *Sweeper) WithCatalog(catalog Catalog) *Sweeper {
	s.catalog = catalog
	return s
}

func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.logger.WithError(err).Error("sweep failed")
			}
		}
	}
}

// SweepOnce reclaims every currently expired pending booking. A failure on
// one booking is logged and does not abort the sweep.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	now := s.clk.Now()
	ids, err := s.store.ListExpiredPending(ctx, now, s.batchSize)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := s.expireWithRetry(gctx, id, now); err != nil {
				s.logger.WithError(err).WithField("booking_id", id).Error("failed to reclaim expired booking")
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Sweeper) expireWithRetry(ctx context.Context, id uuid.UUID, now time.Time) error {
	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<attempt) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		expired, err := s.store.ExpireBooking(ctx, id, now)
		if err != nil {
			lastErr = err
			continue
		}
		if !expired {
			// Settle or an explicit cancel got there first; nothing to do.
			return nil
		}

		observability.SweeperReleased.Inc()
		s.logger.WithField("booking_id", id).Info("expired booking reclaimed")

		if s.cache != nil || s.catalog != nil {
			if b, err := s.store.GetBooking(ctx, id); err == nil {
				if s.cache != nil {
					s.cache.UnlockSeats(ctx, b.ShowtimeID, b.SeatIDs)
					s.cache.InvalidateSeatMap(ctx, b.ShowtimeID)
				}
				if s.catalog != nil {
					if err := s.catalog.AdjustAvailableSeats(ctx, b.ShowtimeID, len(b.SeatIDs)); err != nil {
						s.logger.WithError(err).Warn("available seat counter not adjusted")
					}
				}
			}
		}
		return nil
	}
	return lastErr
}
