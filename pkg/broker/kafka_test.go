package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducerPublish(t *testing.T) {
	writer := &recordingWriter{}
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p := &Producer{writer: writer, topic: "print-hub.orders", now: func() time.Time { return at }}

	err := p.Publish(context.Background(), Message{Key: "order-1", EventType: "order.created", Value: []byte(`{"a":1}`)})
	require.NoError(t, err)
	require.Len(t, writer.msgs, 1)

	msg := writer.msgs[0]
	assert.Equal(t, "order-1", string(msg.Key))
	assert.Equal(t, `{"a":1}`, string(msg.Value))
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event-type", msg.Headers[0].Key)
	assert.Equal(t, "order.created", string(msg.Headers[0].Value))

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}

func TestProducerPublishError(t *testing.T) {
	writer := &recordingWriter{err: errors.New("leader not available")}
	p := &Producer{writer: writer, topic: "t", now: time.Now}

	err := p.Publish(context.Background(), Message{Key: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestLogPublisherNeverFails(t *testing.T) {
	p := NewLogPublisher(nil)
	require.NoError(t, p.Publish(context.Background(), Message{Key: "k", EventType: "x"}))
	require.NoError(t, p.Close())
}
