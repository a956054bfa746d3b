package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/showgrid/cinema-bookings/internal/domain"
	"github.com/showgrid/cinema-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CatalogRepository reads the showtime catalog maintained by the (out of
// scope) catalog service. The core treats it as read-only except for the
// cached available-seat counter, which is adjusted best-effort and is never
// authoritative over the seat instance rows.
type CatalogRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		coll:   db.Collection("showtimes"),
		logger: logger,
	}
}

type ShowtimeDoc struct {
	ID             uuid.UUID     `bson:"_id"`
	HallID         uuid.UUID     `bson:"hall_id"`
	Title          string        `bson:"title"`
	BasePrice      float64       `bson:"base_price"`
	StartTime      time.Time     `bson:"start_time"`
	EndTime        time.Time     `bson:"end_time"`
	TotalSeats     int           `bson:"total_seats"`
	AvailableSeats int           `bson:"available_seats"`
	Seats          []HallSeatDoc `bson:"seats"`
	CreatedAt      time.Time     `bson:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at"`
}

type HallSeatDoc struct {
	SeatID          uuid.UUID `bson:"seat_id"`
	RowNumber       int       `bson:"row_number"`
	ColumnNumber    int       `bson:"column_number"`
	SeatType        string    `bson:"seat_type"`
	PriceMultiplier float64   `bson:"price_multiplier"`
}

func (c *CatalogRepository) GetShowtime(ctx context.Context, id uuid.UUID) (*domain.Showtime, error) {
	doc, err := c.GetShowtimeDoc(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.Showtime{
		ID:             doc.ID,
		HallID:         doc.HallID,
		Title:          doc.Title,
		BasePrice:      doc.BasePrice,
		StartTime:      doc.StartTime,
		EndTime:        doc.EndTime,
		TotalSeats:     doc.TotalSeats,
		AvailableSeats: doc.AvailableSeats,
	}, nil
}

func (c *CatalogRepository) GetShowtimeDoc(ctx context.Context, id uuid.UUID) (*ShowtimeDoc, error) {
	var doc ShowtimeDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *CatalogRepository) CreateShowtime(ctx context.Context, doc ShowtimeDoc) error {
	doc.CreatedAt = time.Now().UTC()
	doc.UpdatedAt = doc.CreatedAt
	_, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		c.logger.WithError(err).Error("failed to create showtime")
		return err
	}
	return nil
}

// AdjustAvailableSeats moves the cached counter by delta (negative when
// seats are taken). Best effort only.
func (c *CatalogRepository) AdjustAvailableSeats(ctx context.Context, id uuid.UUID, delta int) error {
	_, err := c.coll.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"available_seats": delta},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		c.logger.WithError(err).Error("failed to adjust available seats")
		return err
	}
	return nil
}
