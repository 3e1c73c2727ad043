package kafka_middleware

import (
	"context"
	"time"

	"reservio/pkg/kafka"
	"reservio/pkg/logger"
)

// LoggingProducerMiddleware logs every publish attempt with its outcome.
func LoggingProducerMiddleware(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()

		err := next(ctx, msg)

		attrs := []any{
			"topic", msg.Topic,
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"event_type", msg.GetEventType(),
			"correlation_id", msg.GetCorrelationID(),
			"duration", time.Since(start).String(),
		}

		if err != nil {
			log.Error("failed to publish message", append(attrs, "error", err)...)
		} else {
			log.Info("published message", attrs...)
		}

		return err
	}
}

// LoggingConsumerMiddleware logs every processed message with its outcome.
func LoggingConsumerMiddleware(log *logger.Logger) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()

		err := next(ctx, msg)

		attrs := []any{
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"event_type", msg.GetEventType(),
			"correlation_id", msg.GetCorrelationID(),
			"duration", time.Since(start).String(),
		}

		if err != nil {
			log.Error("failed to process message", append(attrs, "error", err)...)
		} else {
			log.Info("processed message", attrs...)
		}

		return err
	}
}
