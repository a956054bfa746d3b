package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/showgrid/cinema-bookings/internal/adapters/mongo"
	"github.com/showgrid/cinema-bookings/internal/adapters/postgres"
	"github.com/showgrid/cinema-bookings/internal/adapters/rabbit"
	redisadapter "github.com/showgrid/cinema-bookings/internal/adapters/redis"
	"github.com/showgrid/cinema-bookings/internal/booking"
	"github.com/showgrid/cinema-bookings/internal/clock"
	"github.com/showgrid/cinema-bookings/internal/config"
	"github.com/showgrid/cinema-bookings/internal/domain"
	"github.com/showgrid/cinema-bookings/internal/gateway"
	httphandler "github.com/showgrid/cinema-bookings/internal/http"
	"github.com/showgrid/cinema-bookings/internal/idempotency"
	"github.com/showgrid/cinema-bookings/internal/observability"
	"github.com/showgrid/cinema-bookings/internal/outbox"
	"github.com/showgrid/cinema-bookings/internal/ratelimit"
)

func TestIntegration_BookingSettleFlow(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "cinema",
				"POSTGRES_PASSWORD": "cinema",
				"POSTGRES_DB":       "cinema",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer pgContainer.Terminate(ctx)

	mongoContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer mongoContainer.Terminate(ctx)

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer redisContainer.Terminate(ctx)

	rabbitContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-management",
			ExposedPorts: []string{"5672/tcp"},
			WaitingFor:   wait.ForListeningPort("5672/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer rabbitContainer.Terminate(ctx)

	pgEndpoint, err := pgContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	mongoEndpoint, err := mongoContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	redisEndpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	rabbitEndpoint, err := rabbitContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		PostgresDSN: "postgres://cinema:cinema@" + pgEndpoint + "/cinema?sslmode=disable",
		MongoURI:    "mongodb://" + mongoEndpoint,
		RedisAddr:   redisEndpoint,
		RabbitURL:   "amqp://guest:guest@" + rabbitEndpoint + "/",
		HoldTTL:     5 * time.Minute,
	}

	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		t.Fatal(err)
	}
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	repo := postgres.NewRepository(pool)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		t.Fatal(err)
	}
	defer mongoClient.Disconnect(ctx)
	logger := observability.NewLogger()
	mongoDB := mongoClient.Database("cinema")
	catalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	cache := redisadapter.NewCache(redisClient)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), time.Hour)
	rl := ratelimit.NewRateLimiter(cache)

	svc := booking.NewService(repo, catalog, gateway.NewSimulator(), clock.System(), logger, cfg.HoldTTL).
		WithCache(cache, 2*time.Second).
		WithAudit(audit)

	handlers := httphandler.NewHandlers(cfg, svc, idemp)
	srv := httptest.NewServer(httphandler.SetupRouter(handlers, logger, rl, idemp))
	defer srv.Close()

	// Seed the catalog and materialize the seat instances the way the seed
	// command does.
	showtimeID := uuid.New()
	seatA := uuid.New()
	seatB := uuid.New()
	doc := mongoadapter.ShowtimeDoc{
		ID:             showtimeID,
		HallID:         uuid.New(),
		Title:          "Integration Showing",
		BasePrice:      10.0,
		StartTime:      time.Now().UTC().Add(2 * time.Hour),
		EndTime:        time.Now().UTC().Add(4 * time.Hour),
		TotalSeats:     2,
		AvailableSeats: 2,
		Seats: []mongoadapter.HallSeatDoc{
			{SeatID: seatA, RowNumber: 1, ColumnNumber: 1, SeatType: "STANDARD", PriceMultiplier: 1.0},
			{SeatID: seatB, RowNumber: 1, ColumnNumber: 2, SeatType: "PREMIUM", PriceMultiplier: 1.5},
		},
	}
	if err := catalog.CreateShowtime(ctx, doc); err != nil {
		t.Fatal(err)
	}
	seats := make([]domain.SeatInstance, 0, len(doc.Seats))
	for _, s := range doc.Seats {
		seats = append(seats, domain.SeatInstance{
			ID:              uuid.New(),
			ShowtimeID:      showtimeID,
			SeatID:          s.SeatID,
			RowNumber:       s.RowNumber,
			ColumnNumber:    s.ColumnNumber,
			SeatType:        s.SeatType,
			PriceMultiplier: s.PriceMultiplier,
			Status:          domain.SeatAvailable,
		})
	}
	if err := repo.InsertSeatInstances(ctx, seats); err != nil {
		t.Fatal(err)
	}

	// Relay outbox events to RabbitMQ and listen for booking.completed.
	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		t.Fatal(err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		t.Fatal(err)
	}
	consumer, err := rabbit.NewConsumer(rabbitConn, "it-ticketing", "booking.completed")
	if err != nil {
		t.Fatal(err)
	}
	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	go outbox.NewPublisher(repo, rabbitPub, logger).Run(relayCtx, 200*time.Millisecond)

	// Read the seat map to learn the seat instance ids.
	resp, err := http.Get(srv.URL + "/v1/showtimes/" + showtimeID.String() + "/seats")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("seat map failed: %v, status: %d", err, resp.StatusCode)
	}
	var seatMap struct {
		Seats []struct {
			SeatInstanceID uuid.UUID `json:"seat_instance_id"`
			Status         string    `json:"status"`
		} `json:"seats"`
	}
	json.NewDecoder(resp.Body).Decode(&seatMap)
	resp.Body.Close()
	if len(seatMap.Seats) != 2 {
		t.Fatalf("expected 2 seats, got %d", len(seatMap.Seats))
	}

	post := func(path string, body map[string]interface{}) *http.Response {
		t.Helper()
		data, _ := json.Marshal(body)
		req, _ := http.NewRequest("POST", srv.URL+path, bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", uuid.New().String())
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}

	buyerID := uuid.New()
	seatInstanceIDs := []string{
		seatMap.Seats[0].SeatInstanceID.String(),
		seatMap.Seats[1].SeatInstanceID.String(),
	}

	// Create the booking on both seats.
	resp = post("/v1/bookings", map[string]interface{}{
		"buyer_id":          buyerID.String(),
		"showtime_id":       showtimeID.String(),
		"seat_instance_ids": seatInstanceIDs,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create booking: status %d", resp.StatusCode)
	}
	var created struct {
		BookingID   uuid.UUID `json:"booking_id"`
		TotalAmount float64   `json:"total_amount"`
		Status      string    `json:"status"`
	}
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if created.Status != "PENDING" {
		t.Errorf("expected PENDING, got %s", created.Status)
	}
	if created.TotalAmount != 25.0 {
		t.Errorf("expected total 25.0, got %v", created.TotalAmount)
	}

	// A second buyer contesting a held seat is turned away with the seat ids.
	resp = post("/v1/bookings", map[string]interface{}{
		"buyer_id":          uuid.New().String(),
		"showtime_id":       showtimeID.String(),
		"seat_instance_ids": seatInstanceIDs[:1],
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for contested seat, got %d", resp.StatusCode)
	}
	var conflict struct {
		SeatIDs []uuid.UUID `json:"seat_ids"`
	}
	json.NewDecoder(resp.Body).Decode(&conflict)
	resp.Body.Close()
	if len(conflict.SeatIDs) != 1 {
		t.Errorf("expected 1 contested seat id, got %v", conflict.SeatIDs)
	}

	// Wrong amount is rejected without burning the hold.
	resp = post("/v1/bookings/"+created.BookingID.String()+"/payment", map[string]interface{}{
		"method":  "CARD",
		"amount":  20.0,
		"details": map[string]string{"card_number": "4111111111111111", "expiry": "12/29", "cvv": "123"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for amount mismatch, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Settle at the booked total.
	resp = post("/v1/bookings/"+created.BookingID.String()+"/payment", map[string]interface{}{
		"method":  "CARD",
		"amount":  25.0,
		"details": map[string]string{"card_number": "4111111111111111", "expiry": "12/29", "cvv": "123"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("settle: status %d", resp.StatusCode)
	}
	var settled struct {
		Status string `json:"status"`
	}
	json.NewDecoder(resp.Body).Decode(&settled)
	resp.Body.Close()
	if settled.Status != "COMPLETED" {
		t.Errorf("expected COMPLETED, got %s", settled.Status)
	}

	// The booking view carries the payment attempt.
	resp, err = http.Get(srv.URL + "/v1/bookings/" + created.BookingID.String())
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("get booking failed: %v, status: %d", err, resp.StatusCode)
	}
	var view struct {
		Status   string `json:"status"`
		Payments []struct {
			Status        string `json:"status"`
			TransactionID string `json:"transaction_id"`
		} `json:"payments"`
	}
	json.NewDecoder(resp.Body).Decode(&view)
	resp.Body.Close()
	if view.Status != "COMPLETED" || len(view.Payments) != 1 || view.Payments[0].Status != "COMPLETED" {
		t.Errorf("unexpected booking view: %+v", view)
	}

	// The outbox relay delivers booking.completed to the ticketing queue.
	select {
	case d := <-deliveries:
		var event struct {
			BookingID     uuid.UUID `json:"booking_id"`
			TransactionID string    `json:"transaction_id"`
		}
		json.Unmarshal(d.Body, &event)
		d.Ack(false)
		if event.BookingID != created.BookingID {
			t.Errorf("event for wrong booking: %+v", event)
		}
	case <-time.After(10 * time.Second):
		t.Error("booking.completed never reached the queue")
	}
}
