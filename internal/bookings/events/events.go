// Package events announces committed booking ledger changes.
package events

import (
	"context"
	"time"

	"carrental/pkg/kafka"
	"carrental/pkg/logger"
	"carrental/pkg/middleware"
	"carrental/pkg/model"
)

type Type string

const (
	BookingCreated   Type = "booking.created"
	BookingUpdated   Type = "booking.updated"
	BookingCancelled Type = "booking.cancelled"

	SchemaVersion = "1"
)

// Event is the JSON value of a booking event record.
type Event struct {
	Type       Type          `json:"type"`
	Booking    model.Booking `json:"booking"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// Publisher is notified after each committed ledger mutation. Failures never
// undo the mutation.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type noopPublisher struct{}

// NewNoopPublisher returns a Publisher that discards every event.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, Event) error { return nil }
func (noopPublisher) Close() error                         { return nil }

type kafkaPublisher struct {
	producer *kafka.Producer
	source   string
	log      *logger.Logger
}

// NewKafkaPublisher publishes events keyed by booking id so every change to
// one booking lands on the same partition.
func NewKafkaPublisher(producer *kafka.Producer, source string, log *logger.Logger) Publisher {
	return &kafkaPublisher{
		producer: producer,
		source:   source,
		log:      log,
	}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := kafka.NewMessage().
		WithKey(event.Booking.ID).
		WithValue(event).
		WithTimestamp(event.OccurredAt).
		WithEventID("").
		WithEventType(string(event.Type)).
		WithSchemaVersion(SchemaVersion).
		WithSource(p.source).
		WithCorrelationID(middleware.RequestIDFromContext(ctx)).
		Build()
	if err != nil {
		return err
	}
	if err := p.producer.Publish(ctx, msg); err != nil {
		return err
	}

	p.log.Debug("Booking event published",
		"event_type", event.Type,
		"booking_id", event.Booking.ID,
		"event_id", msg.GetEventID(),
	)
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}
