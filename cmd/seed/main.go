package main

import (
	"context"
	"flag"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	mongoadapter "github.com/showgrid/cinema-bookings/internal/adapters/mongo"
	"github.com/showgrid/cinema-bookings/internal/adapters/postgres"
	"github.com/showgrid/cinema-bookings/internal/config"
	"github.com/showgrid/cinema-bookings/internal/domain"
	"github.com/showgrid/cinema-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Materializes the bookable seat instances for a scheduled showtime: reads
// the hall layout from the catalog and inserts one AVAILABLE row per seat.
// Run once per showtime, after the catalog service has created it.
func main() {
	showtimeFlag := flag.String("showtime", "", "showtime id to materialize")
	flag.Parse()

	showtimeID, err := uuid.Parse(*showtimeFlag)
	if err != nil {
		log.Fatalf("invalid -showtime: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := observability.NewLogger()
	ctx := context.Background()

	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := postgres.NewRepository(pool)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(ctx)
	catalog := mongoadapter.NewCatalogRepository(mongoClient.Database("cinema"), logger)

	doc, err := catalog.GetShowtimeDoc(ctx, showtimeID)
	if err != nil {
		log.Fatalf("failed to load showtime: %v", err)
	}

	seats := make([]domain.SeatInstance, 0, len(doc.Seats))
	for _, hs := range doc.Seats {
		seats = append(seats, domain.SeatInstance{
			ID:              uuid.New(),
			ShowtimeID:      showtimeID,
			SeatID:          hs.SeatID,
			RowNumber:       hs.RowNumber,
			ColumnNumber:    hs.ColumnNumber,
			SeatType:        hs.SeatType,
			PriceMultiplier: hs.PriceMultiplier,
			Status:          domain.SeatAvailable,
		})
	}
	if err := repo.InsertSeatInstances(ctx, seats); err != nil {
		log.Fatalf("failed to insert seat instances: %v", err)
	}
	logger.WithField("showtime_id", showtimeID).WithField("seats", len(seats)).Info("seat instances materialized")
}
