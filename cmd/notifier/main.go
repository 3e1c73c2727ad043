package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"reservio/internal/events"
	"reservio/pkg/config"
	"reservio/pkg/kafka"
	kafka_config "reservio/pkg/kafka/config"
	kafka_middleware "reservio/pkg/kafka/middleware"
	"reservio/pkg/logger"
	"reservio/pkg/model"
)

const (
	ServiceName   = "reservio-notifier"
	consumerGroup = "reservio-notifier"
)

// The notifier tails the domain event topics and tells users what happened to
// their bookings. Delivery here is just a structured log line; a mail or push
// gateway slots in behind the same handlers.
func main() {
	cfg := config.Load(ServiceName)
	cfg.LogConfiguration()

	kafkaCfg := kafka_config.Load()
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	log := cfg.Log

	reservations, err := kafka.NewConsumer(
		kafkaCfg,
		events.TopicReservations,
		consumerGroup,
		events.TopicReservations+".dlq",
		reservationHandler(log),
	)
	if err != nil {
		log.Fatal("Failed to create reservations consumer", "error", err)
	}

	blockedTimes, err := kafka.NewConsumer(
		kafkaCfg,
		events.TopicBlockedTimes,
		consumerGroup,
		events.TopicBlockedTimes+".dlq",
		blockedTimeHandler(log),
	)
	if err != nil {
		log.Fatal("Failed to create blocked times consumer", "error", err)
	}

	if kafkaCfg.EnableMiddleware {
		for _, c := range []*kafka.Consumer{reservations, blockedTimes} {
			c.Use(kafka_middleware.LoggingConsumerMiddleware(log))
			c.Use(kafka_middleware.MetricsConsumerMiddleware())
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for _, c := range []*kafka.Consumer{reservations, blockedTimes} {
		wg.Add(1)
		go func(consumer *kafka.Consumer) {
			defer wg.Done()
			if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error("Consumer stopped with error", "error", err)
			}
		}(c)
	}

	log.Info("Notifier started", "topics", []string{events.TopicReservations, events.TopicBlockedTimes})

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown
	log.Info("Shutdown signal received", "signal", sig)

	cancel()
	for _, c := range []*kafka.Consumer{reservations, blockedTimes} {
		if err := c.Close(); err != nil {
			log.Error("Failed to close consumer", "error", err)
		}
	}
	wg.Wait()
	log.Info("Notifier stopped")
}

func reservationHandler(log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var reservation model.Reservation
		if err := msg.DecodeValue(&reservation); err != nil {
			return err
		}

		eventType := msg.Headers[kafka.HeaderEventType]
		switch eventType {
		case events.EventReservationCreated:
			log.Info("Notifying user of new reservation",
				"user_id", reservation.UserID,
				"resource_id", reservation.ResourceID,
				"start_time", reservation.StartTime,
			)
		case events.EventReservationCancelled:
			log.Info("Notifying user of cancelled reservation",
				"user_id", reservation.UserID,
				"resource_id", reservation.ResourceID,
				"start_time", reservation.StartTime,
			)
		default:
			log.Warn("Unknown reservation event type", "event_type", eventType)
		}

		return nil
	}
}

func blockedTimeHandler(log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var blocked model.BlockedTime
		if err := msg.DecodeValue(&blocked); err != nil {
			return err
		}

		log.Info("Resource blocked, affected users should be notified",
			"resource_id", blocked.ResourceID,
			"start_time", blocked.StartTime,
			"end_time", blocked.EndTime,
			"reason", blocked.Reason,
		)
		return nil
	}
}
