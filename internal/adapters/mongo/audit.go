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

// AuditLogger appends booking lifecycle transitions to an audit collection.
// Failures are logged and swallowed; the audit trail is never allowed to
// fail a booking operation.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("booking_audit"),
		logger: logger,
	}
}

type AuditEntry struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	BookingID uuid.UUID `bson:"booking_id"`
	BuyerID   uuid.UUID `bson:"buyer_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) record(ctx context.Context, action string, bookingID, buyerID uuid.UUID, data map[string]interface{}) {
	entry := AuditEntry{
		ID:        uuid.New(),
		Action:    action,
		BookingID: bookingID,
		BuyerID:   buyerID,
		Timestamp: time.Now().UTC(),
		Data:      bson.M(data),
	}
	if _, err := a.coll.InsertOne(ctx, entry); err != nil {
		a.logger.WithError(err).WithField("action", action).Error("failed to insert audit entry")
	}
}

func (a *AuditLogger) BookingCreated(ctx context.Context, b *domain.Booking) {
	a.record(ctx, "booking.created", b.ID, b.BuyerID, map[string]interface{}{
		"showtime_id": b.ShowtimeID,
		"seats":       b.SeatIDs,
		"total":       b.TotalAmount,
		"expires_at":  b.ExpiresAt.Format(time.RFC3339),
	})
}

func (a *AuditLogger) BookingSettled(ctx context.Context, b *domain.Booking, paymentID uuid.UUID, outcome string) {
	a.record(ctx, "booking.settled", b.ID, b.BuyerID, map[string]interface{}{
		"payment_id": paymentID,
		"outcome":    outcome,
		"amount":     b.TotalAmount,
	})
}

func (a *AuditLogger) BookingCancelled(ctx context.Context, bookingID uuid.UUID, reason string) {
	a.record(ctx, "booking.cancelled", bookingID, uuid.Nil, map[string]interface{}{
		"reason": reason,
	})
}
