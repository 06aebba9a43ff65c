package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
)

var (
	errNoBrokers = errors.New("kafka brokers are required")
	errNoTopic   = errors.New("kafka orders topic is required")
)

type messageWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Producer writes keyed messages synchronously so callers only mark work done after the broker acked it.
type Producer struct {
	w     messageWriter
	topic string
}

// NewProducer builds a producer for the orders topic. Messages sharing a key
// land on the same partition, which keeps per-order ordering.
func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 {
		return nil, errNoBrokers
	}
	topic := strings.TrimSpace(cfg.OrdersTopic)
	if topic == "" {
		return nil, errNoTopic
	}
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
		topic: topic,
	}, nil
}

// Topic returns the destination topic.
func (p *Producer) Topic() string {
	return p.topic
}

// Publish writes one message and waits for the broker ack.
func (p *Producer) Publish(ctx context.Context, key, value []byte, headers map[string]string) error {
	if p == nil || p.w == nil {
		return errors.New("kafka producer not initialized")
	}
	msg := kafka.Message{
		Key:   key,
		Value: value,
		Time:  time.Now(),
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}
