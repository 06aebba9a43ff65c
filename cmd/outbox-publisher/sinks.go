package main

import (
	"context"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
)

// message is the sink-neutral form of one outbox row.
type message struct {
	Key        string
	Payload    []byte
	Attributes map[string]string
}

type sink interface {
	Name() string
	Publish(ctx context.Context, msg message) error
}

// nonRetryableError tells the publisher to park the row instead of retrying.
type nonRetryableError struct {
	err error
}

func (e nonRetryableError) Error() string {
	if e.err == nil {
		return "non-retryable error"
	}
	return e.err.Error()
}

func (e nonRetryableError) Unwrap() error { return e.err }

type pubsubPublisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) *gcppubsub.PublishResult
	ResumePublish(key string)
}

// pubsubSink keys messages by order id when ordering is on, so every
// subscriber sees one order's events in sequence.
type pubsubSink struct {
	pub     pubsubPublisher
	ordered bool
}

func newPubSubSink(pub *gcppubsub.Publisher, ordered bool) (sink, error) {
	if pub == nil {
		return nil, errors.New("pubsub publisher not configured")
	}
	return &pubsubSink{pub: pub, ordered: ordered}, nil
}

func (s *pubsubSink) Name() string { return "pubsub" }

func (s *pubsubSink) Publish(ctx context.Context, msg message) error {
	out := &gcppubsub.Message{Data: msg.Payload, Attributes: msg.Attributes}
	if s.ordered {
		out.OrderingKey = msg.Key
	}
	result := s.pub.Publish(ctx, out)
	if result == nil {
		return nonRetryableError{err: errors.New("publisher returned nil result")}
	}
	if _, err := result.Get(ctx); err != nil {
		if out.OrderingKey != "" {
			// a failed ordered publish pauses the key until resumed
			s.pub.ResumePublish(out.OrderingKey)
		}
		return err
	}
	return nil
}

type kafkaWriter interface {
	Publish(ctx context.Context, key, value []byte, headers map[string]string) error
}

type kafkaSink struct {
	w kafkaWriter
}

func (s *kafkaSink) Name() string { return "kafka" }

func (s *kafkaSink) Publish(ctx context.Context, msg message) error {
	return s.w.Publish(ctx, []byte(msg.Key), msg.Payload, msg.Attributes)
}

// logSink writes events to the structured log. Used in dev and when no broker is configured.
type logSink struct {
	logg *logger.Logger
}

func (s *logSink) Name() string { return "log" }

func (s *logSink) Publish(ctx context.Context, msg message) error {
	fields := make(map[string]any, len(msg.Attributes)+1)
	for k, v := range msg.Attributes {
		fields[k] = v
	}
	fields["payload"] = string(msg.Payload)
	s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event delivered to log sink")
	return nil
}

func unknownSink(name string) error {
	return fmt.Errorf("unknown outbox sink %q (want pubsub, kafka or log)", name)
}
