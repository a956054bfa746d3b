package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	mongoadapter "github.com/showgrid/cinema-bookings/internal/adapters/mongo"
	"github.com/showgrid/cinema-bookings/internal/adapters/postgres"
	redisadapter "github.com/showgrid/cinema-bookings/internal/adapters/redis"
	"github.com/showgrid/cinema-bookings/internal/booking"
	"github.com/showgrid/cinema-bookings/internal/clock"
	"github.com/showgrid/cinema-bookings/internal/config"
	"github.com/showgrid/cinema-bookings/internal/gateway"
	httphandler "github.com/showgrid/cinema-bookings/internal/http"
	"github.com/showgrid/cinema-bookings/internal/idempotency"
	"github.com/showgrid/cinema-bookings/internal/observability"
	"github.com/showgrid/cinema-bookings/internal/ratelimit"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := postgres.NewRepository(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("cinema")
	catalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	cache := redisadapter.NewCache(redisClient)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), time.Hour)
	rl := ratelimit.NewRateLimiter(cache)

	svc := booking.NewService(repo, catalog, gateway.NewSimulator(), clock.System(), logger, cfg.HoldTTL).
		WithCache(cache, cfg.SeatMapTTL).
		WithAudit(audit)

	handlers := httphandler.NewHandlers(cfg, svc, idemp)
	r := httphandler.SetupRouter(handlers, logger, rl, idemp)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
