package kafka_middleware

import (
	"context"
	"time"

	"carrental/pkg/kafka"
	"carrental/pkg/logger"
)

// LoggingProducerMiddleware logs every publish with its outcome and duration.
func LoggingProducerMiddleware(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()

		err := next(ctx, msg)

		attrs := []any{
			"topic", msg.Topic,
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"event_type", msg.GetEventType(),
			"duration", time.Since(start),
		}
		if correlationID := msg.GetCorrelationID(); correlationID != "" {
			attrs = append(attrs, "correlation_id", correlationID)
		}

		if err != nil {
			attrs = append(attrs, "error", err, "error_type", kafka.ClassifyError(err).String())
			log.Error("Failed to publish Kafka message", attrs...)
			return err
		}

		log.Debug("Published Kafka message", attrs...)
		return nil
	}
}
