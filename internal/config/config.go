package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	PostgresDSN    string
	MongoURI       string
	RedisAddr      string
	RabbitURL      string
	HTTPAddr       string
	HoldTTL        time.Duration
	SweepInterval  time.Duration
	SweepBatchSize int
	SeatMapTTL     time.Duration
	OTLPEndpoint   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	holdTTL, _ := time.ParseDuration(os.Getenv("HOLD_TTL"))
	if holdTTL == 0 {
		holdTTL = 5 * time.Minute
	}
	sweepInterval, _ := time.ParseDuration(os.Getenv("SWEEP_INTERVAL"))
	if sweepInterval == 0 {
		sweepInterval = 30 * time.Second
	}
	sweepBatch, _ := strconv.Atoi(os.Getenv("SWEEP_BATCH_SIZE"))
	if sweepBatch == 0 {
		sweepBatch = 100
	}
	seatMapTTL, _ := time.ParseDuration(os.Getenv("SEAT_MAP_TTL"))
	if seatMapTTL == 0 {
		seatMapTTL = 2 * time.Second
	}
	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	return &Config{
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),
		MongoURI:       os.Getenv("MONGO_URI"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		HTTPAddr:       httpAddr,
		HoldTTL:        holdTTL,
		SweepInterval:  sweepInterval,
		SweepBatchSize: sweepBatch,
		SeatMapTTL:     seatMapTTL,
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}
