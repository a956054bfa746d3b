package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/showgrid/cinema-bookings/internal/domain"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func seatLockKey(showtimeID, seatID uuid.UUID) string {
	return "seat:" + showtimeID.String() + ":" + seatID.String()
}

// LockSeat takes the fast-path per-seat lock in front of the DB
// compare-and-swap. The lock TTL matches the hold duration, so a crashed
// holder never wedges a seat; the seat_instances row stays authoritative.
func (c *Cache) LockSeat(ctx context.Context, showtimeID, seatID, bookingID uuid.UUID, ttl time.Duration) (bool, error) {
	res := c.client.SetNX(ctx, seatLockKey(showtimeID, seatID), bookingID.String(), ttl)
	return res.Val(), res.Err()
}

func (c *Cache) UnlockSeats(ctx context.Context, showtimeID uuid.UUID, seatIDs []uuid.UUID) {
	keys := make([]string, len(seatIDs))
	for i, id := range seatIDs {
		keys[i] = seatLockKey(showtimeID, id)
	}
	c.client.Del(ctx, keys...)
}

func seatMapKey(showtimeID uuid.UUID) string {
	return "seatmap:" + showtimeID.String()
}

func (c *Cache) GetSeatMap(ctx context.Context, showtimeID uuid.UUID) ([]domain.SeatInstance, error) {
	val, err := c.client.Get(ctx, seatMapKey(showtimeID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var seats []domain.SeatInstance
	if err := json.Unmarshal(val, &seats); err != nil {
		return nil, err
	}
	return seats, nil
}

func (c *Cache) SetSeatMap(ctx context.Context, showtimeID uuid.UUID, seats []domain.SeatInstance, ttl time.Duration) error {
	data, err := json.Marshal(seats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, seatMapKey(showtimeID), data, ttl).Err()
}

func (c *Cache) InvalidateSeatMap(ctx context.Context, showtimeID uuid.UUID) {
	c.client.Del(ctx, seatMapKey(showtimeID))
}
