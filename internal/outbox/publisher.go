package outbox

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/showgrid/cinema-bookings/internal/adapters/postgres"
	"github.com/showgrid/cinema-bookings/internal/adapters/rabbit"
	"github.com/showgrid/cinema-bookings/internal/observability"
)

// Publisher relays committed outbox records to RabbitMQ. Records are only
// written inside the same transaction as the booking transition they
// describe, so downstream consumers (ticketing, notifications) never see an
// event for a state that did not land.
type Publisher struct {
	repo      *postgres.Repository
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
	batchSize int
}

func NewPublisher(repo *postgres.Repository, rabbitPub *rabbit.Publisher, logger observability.Logger) *Publisher {
	return &Publisher{repo: repo, rabbitPub: rabbitPub, logger: logger, batchSize: 50}
}

func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.publishBatch(ctx); err != nil {
				p.logger.WithError(err).Error("outbox batch failed")
			}
		}
	}
}

func (p *Publisher) publishBatch(ctx context.Context) error {
	now := time.Now().UTC()
	if lag, err := p.repo.OldestUnpublishedAge(ctx, now); err == nil {
		observability.OutboxLag.Set(lag.Seconds())
	}

	records, err := p.repo.GetUnpublishedOutbox(ctx, p.batchSize)
	if err != nil {
		return err
	}
	for _, rec := range records {
		msg := amqp.Publishing{
			MessageId:   rec.DedupeKey,
			ContentType: "application/json",
			Body:        rec.Payload,
		}
		if err := p.rabbitPub.Publish(ctx, rec.EventType, msg); err != nil {
			p.logger.WithError(err).WithField("event_type", rec.EventType).Warn("publish failed, will retry")
			continue
		}
		if err := p.repo.MarkPublished(ctx, rec.ID, time.Now().UTC()); err != nil {
			p.logger.WithError(err).Error("failed to mark outbox record published")
		}
	}
	return nil
}
