package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/metrics"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	Sink       sink
	Ping       func(context.Context) error
	Repository outboxRepository
	Metrics    *metrics.OutboxMetrics
}

// Service drains outbox_events into the configured sink. Rows are locked per
// batch, so several publishers can run side by side.
type Service struct {
	logg        *logger.Logger
	db          dbClient
	repo        outboxRepository
	sink        sink
	ping        func(context.Context) error
	metrics     *metrics.OutboxMetrics
	batchSize   int
	maxAttempts int
	interval    time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Sink == nil:
		return nil, errors.New("outbox sink is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	}
	cfg := params.Config.Outbox
	svc := &Service{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		sink:        params.Sink,
		ping:        params.Ping,
		metrics:     params.Metrics,
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
		interval:    defaultPollInterval,
	}
	if cfg.BatchSize > 0 {
		svc.batchSize = cfg.BatchSize
	}
	if cfg.MaxAttempts > 0 {
		svc.maxAttempts = cfg.MaxAttempts
	}
	if cfg.PollIntervalMS > 0 {
		svc.interval = time.Duration(cfg.PollIntervalMS) * time.Millisecond
	}
	return svc, nil
}

func (s *Service) checkDependencies(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if s.ping != nil {
		if err := s.ping(ctx); err != nil {
			return fmt.Errorf("%s ping: %w", s.sink.Name(), err)
		}
	}
	return nil
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// the next one; an empty batch waits one interval; a failed batch backs off.
func (s *Service) Run(ctx context.Context) error {
	if err := s.checkDependencies(ctx); err != nil {
		s.logg.Error(ctx, "outbox.dependency_check_failed", err)
		return err
	}
	backoff := s.interval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		processed, err := s.processBatch(ctx)
		wait := s.interval
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox.batch_failed", err)
			backoff = nextBackoff(backoff, s.interval, maxBackoff)
			wait = backoff
		case processed:
			backoff = s.interval
			continue
		default:
			backoff = s.interval
		}
		if err := sleep(ctx, withJitter(wait)); err != nil {
			return err
		}
	}
}

type outcome int

const (
	published outcome = iota
	retryLater
	parked
)

// processBatch reports whether any rows were claimed.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	started := time.Now()
	var claimed int
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch batch: %w", err)
		}
		claimed = len(events)
		for _, event := range events {
			if err := s.handle(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if claimed > 0 {
		s.metrics.ObserveBatch(s.sink.Name(), time.Since(started))
	}
	return claimed > 0, err
}

// handle delivers one row and records the outcome. Only bookkeeping failures
// are returned; delivery failures are recorded on the row.
func (s *Service) handle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	env, decodeErr := outbox.DecodeEnvelope(event.Payload)
	logCtx := s.logg.WithFields(ctx, s.eventFields(event, env))

	var (
		result outcome
		cause  error
		reason string
	)
	switch {
	case decodeErr != nil:
		result, cause, reason = parked, fmt.Errorf("decode envelope: %w", decodeErr), "undecodable"
	default:
		cause = s.publish(ctx, event, env)
		result, reason = s.classify(event, cause)
	}

	switch result {
	case published:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(s.sink.Name())
		s.logg.Debug(logCtx, "outbox.published")
	case retryLater:
		s.metrics.IncFailed(s.sink.Name())
		s.logg.WarnErr(s.logg.WithField(logCtx, "attempt_count", event.AttemptCount+1), "outbox.publish_failed", cause)
		if err := s.repo.MarkFailedTx(tx, event.ID, cause); err != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, err)
		}
	case parked:
		if decodeErr == nil {
			s.metrics.IncFailed(s.sink.Name())
		}
		s.metrics.IncParked(s.sink.Name(), reason)
		s.logg.WarnErr(s.logg.WithField(logCtx, "terminal_reason", reason), "outbox.parked", cause)
		if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", event.ID, err)
		}
	}
	return nil
}

func (s *Service) classify(event models.OutboxEvent, err error) (outcome, string) {
	if err == nil {
		return published, ""
	}
	var nonRetry nonRetryableError
	if errors.As(err, &nonRetry) {
		return parked, "rejected"
	}
	if event.AttemptCount+1 >= s.maxAttempts {
		return parked, "max_attempts"
	}
	return retryLater, ""
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, env outbox.PayloadEnvelope) error {
	aggregateID := strconv.FormatInt(event.AggregateID, 10)
	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	return s.sink.Publish(ctx, message{
		Key:     aggregateID,
		Payload: event.Payload,
		Attributes: map[string]string{
			"event_id":       env.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   aggregateID,
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	})
}

func (s *Service) eventFields(event models.OutboxEvent, env outbox.PayloadEnvelope) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"attempt_count":  event.AttemptCount,
		"sink":           s.sink.Name(),
	}
	if env.EventID != "" {
		fields["event_id"] = env.EventID
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, limit time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, limit)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
