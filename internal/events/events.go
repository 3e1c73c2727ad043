package events

import (
	"context"

	"reservio/pkg/kafka"
	kafka_config "reservio/pkg/kafka/config"
	kafka_middleware "reservio/pkg/kafka/middleware"
	"reservio/pkg/logger"
	"reservio/pkg/model"
)

const (
	TopicReservations = "reservio.reservations"
	TopicBlockedTimes = "reservio.blocked-times"

	EventReservationCreated   = "reservation.created"
	EventReservationCancelled = "reservation.cancelled"
	EventBlockedTimeCreated   = "blockedtime.created"

	source = "reservio-api"
)

// Publisher emits domain events after a write commits. Publishing is best
// effort: a broker outage must never fail a reservation that is already
// durable in the database.
type Publisher interface {
	ReservationCreated(ctx context.Context, reservation *model.Reservation)
	ReservationCancelled(ctx context.Context, reservation *model.Reservation)
	BlockedTimeCreated(ctx context.Context, blocked *model.BlockedTime)
	Close() error
}

type kafkaPublisher struct {
	reservations *kafka.Producer
	blockedTimes *kafka.Producer
	log          *logger.Logger
}

func NewKafkaPublisher(cfg *kafka_config.Config, log *logger.Logger) (Publisher, error) {
	reservations, err := kafka.NewProducer(cfg, TopicReservations, TopicReservations+".dlq")
	if err != nil {
		return nil, err
	}

	blockedTimes, err := kafka.NewProducer(cfg, TopicBlockedTimes, TopicBlockedTimes+".dlq")
	if err != nil {
		reservations.Close()
		return nil, err
	}

	if cfg.EnableMiddleware {
		for _, p := range []*kafka.Producer{reservations, blockedTimes} {
			p.Use(kafka_middleware.LoggingProducerMiddleware(log))
			p.Use(kafka_middleware.MetricsProducerMiddleware())
		}
	}

	return &kafkaPublisher{
		reservations: reservations,
		blockedTimes: blockedTimes,
		log:          log,
	}, nil
}

func (p *kafkaPublisher) ReservationCreated(ctx context.Context, reservation *model.Reservation) {
	p.publishReservation(ctx, EventReservationCreated, reservation)
}

func (p *kafkaPublisher) ReservationCancelled(ctx context.Context, reservation *model.Reservation) {
	p.publishReservation(ctx, EventReservationCancelled, reservation)
}

// Messages are keyed by resource ID so consumers see events for one resource
// in order.
func (p *kafkaPublisher) publishReservation(ctx context.Context, eventType string, reservation *model.Reservation) {
	msg := kafka.NewMessage().
		WithKey(reservation.ResourceID).
		WithValue(reservation).
		WithEventType(eventType).
		WithSource(source).
		Build()

	if err := p.reservations.Publish(ctx, msg); err != nil {
		p.log.Error("Failed to publish reservation event",
			"event_type", eventType,
			"reservation_id", reservation.ID,
			"error", err,
		)
	}
}

func (p *kafkaPublisher) BlockedTimeCreated(ctx context.Context, blocked *model.BlockedTime) {
	msg := kafka.NewMessage().
		WithKey(blocked.ResourceID).
		WithValue(blocked).
		WithEventType(EventBlockedTimeCreated).
		WithSource(source).
		Build()

	if err := p.blockedTimes.Publish(ctx, msg); err != nil {
		p.log.Error("Failed to publish blocked time event",
			"event_type", EventBlockedTimeCreated,
			"blocked_time_id", blocked.ID,
			"error", err,
		)
	}
}

func (p *kafkaPublisher) Close() error {
	err := p.reservations.Close()
	if blockedErr := p.blockedTimes.Close(); err == nil {
		err = blockedErr
	}
	return err
}

type noopPublisher struct{}

// NewNoopPublisher is used when event publishing is disabled by configuration.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) ReservationCreated(context.Context, *model.Reservation)   {}
func (noopPublisher) ReservationCancelled(context.Context, *model.Reservation) {}
func (noopPublisher) BlockedTimeCreated(context.Context, *model.BlockedTime)   {}
func (noopPublisher) Close() error                                             { return nil }
