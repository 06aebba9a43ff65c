package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestNewProducerValidates(t *testing.T) {
	_, err := NewProducer(config.KafkaConfig{Brokers: []string{" "}, OrdersTopic: "orders"})
	assert.ErrorIs(t, err, errNoBrokers)

	_, err = NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.ErrorIs(t, err, errNoTopic)

	p, err := NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}, OrdersTopic: "coffeeshop.orders"})
	require.NoError(t, err)
	assert.Equal(t, "coffeeshop.orders", p.Topic())
}

func TestPublishCarriesKeyAndHeaders(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{w: w, topic: "orders"}

	err := p.Publish(context.Background(), []byte("42"), []byte(`{"x":1}`), map[string]string{"event_type": "order_created"})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "42", string(w.msgs[0].Key))
	require.Len(t, w.msgs[0].Headers, 1)
	assert.Equal(t, "event_type", w.msgs[0].Headers[0].Key)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("leader not available")
	p := &Producer{w: &fakeWriter{err: boom}, topic: "orders"}
	err := p.Publish(context.Background(), nil, nil, nil)
	assert.ErrorIs(t, err, boom)
}
