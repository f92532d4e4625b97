package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func buildMessage(t *testing.T) Message {
	t.Helper()
	msg, err := NewMessage().
		WithKey("booking-1").
		WithValue(map[string]string{"type": "booking.created"}).
		WithEventType("booking.created").
		WithSource("rentals").
		Build()
	require.NoError(t, err)
	return msg
}

func TestProducer_Publish(t *testing.T) {
	writer := &recordingWriter{}
	producer := NewProducerWithWriter(writer, nil, "rentals.bookings", "", 0)

	require.NoError(t, producer.Publish(context.Background(), buildMessage(t)))

	require.Len(t, writer.messages, 1)
	got := writer.messages[0]
	assert.Equal(t, "booking-1", string(got.Key))
	assert.JSONEq(t, `{"type":"booking.created"}`, string(got.Value))
	assert.Equal(t, "booking.created", header(got, HeaderEventType))
	assert.Equal(t, "rentals", header(got, HeaderSource))
	assert.NotEmpty(t, header(got, HeaderEventID))
	assert.NotEmpty(t, header(got, HeaderTimestamp))
}

func TestProducer_RejectsInvalidMessages(t *testing.T) {
	writer := &recordingWriter{}
	producer := NewProducerWithWriter(writer, nil, "rentals.bookings", "", 0)
	ctx := context.Background()

	assert.ErrorIs(t, producer.Publish(ctx, Message{Value: []byte("{}")}), ErrEmptyKey)
	assert.ErrorIs(t, producer.Publish(ctx, Message{Key: "k"}), ErrEmptyValue)
	assert.Empty(t, writer.messages)
}

func TestProducer_Closed(t *testing.T) {
	writer := &recordingWriter{}
	producer := NewProducerWithWriter(writer, nil, "rentals.bookings", "", 0)

	require.NoError(t, producer.Close())
	require.NoError(t, producer.Close(), "second close is a no-op")
	assert.True(t, writer.closed)
	assert.ErrorIs(t, producer.Publish(context.Background(), buildMessage(t)), ErrProducerClosed)
}

func TestProducer_FailedWriteGoesToDLQ(t *testing.T) {
	brokerErr := errors.New("dial tcp: connection refused")
	writer := &recordingWriter{err: brokerErr}
	dlq := &recordingWriter{}
	producer := NewProducerWithWriter(writer, dlq, "rentals.bookings", "rentals.bookings.dlq", 0)

	msg := buildMessage(t)
	err := producer.Publish(context.Background(), msg)
	require.ErrorIs(t, err, brokerErr)

	require.Len(t, dlq.messages, 1)
	assert.Equal(t, "rentals.bookings", header(dlq.messages[0], HeaderOriginalTopic))
	assert.Equal(t, brokerErr.Error(), header(dlq.messages[0], HeaderDLQError))
	_, leaked := msg.Headers[HeaderDLQError]
	assert.False(t, leaked, "DLQ headers must not leak into the caller's message")
}

func TestProducer_MiddlewareOrder(t *testing.T) {
	producer := NewProducerWithWriter(&recordingWriter{}, nil, "rentals.bookings", "", 0)

	var calls []string
	for _, name := range []string{"outer", "inner"} {
		name := name
		producer.Use(func(ctx context.Context, msg Message, next func(ctx context.Context, msg Message) error) error {
			calls = append(calls, name)
			assert.Equal(t, "rentals.bookings", msg.Topic)
			return next(ctx, msg)
		})
	}

	require.NoError(t, producer.Publish(context.Background(), buildMessage(t)))
	assert.Equal(t, []string{"outer", "inner"}, calls)
}

func TestMessageBuilder_EncodingFailure(t *testing.T) {
	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorType
	}{
		{err: nil, want: ErrorTypeUnknown},
		{err: errors.New("dial tcp 127.0.0.1:9092: connection refused"), want: ErrorTypeTransient},
		{err: context.DeadlineExceeded, want: ErrorTypeTransient},
		{err: errors.New("[3] Unknown Topic Or Partition"), want: ErrorTypePermanent},
		{err: ErrEmptyKey, want: ErrorTypePermanent},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
