package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/palletwine/palletwine-backend/pkg/config"
	"github.com/palletwine/palletwine-backend/pkg/db/models"
	"github.com/palletwine/palletwine-backend/pkg/logger"
	"github.com/palletwine/palletwine-backend/pkg/metrics"
	"github.com/palletwine/palletwine-backend/pkg/outbox"
	"github.com/palletwine/palletwine-backend/pkg/pubsub"
)

const (
	defaultBatchSize    = 50
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxAttempts  = 10
	publishTimeout      = 15 * time.Second
	maxBackoff          = 10 * time.Second
	jitterWindow        = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

// sink is the broker side of the publisher.
type sink interface {
	Ping(context.Context) error
	Publish(ctx context.Context, topic string, msg *gcppubsub.Message) pubsub.Delivery
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkExhaustedTx(tx *gorm.DB, id uuid.UUID, err error, maxAttempts int) error
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	Sink       sink
	Repository outboxRepository
	Metrics    *metrics.OutboxMetrics
}

// Service drains outbox_events into Pub/Sub. Each batch is claimed inside a
// transaction, published without waiting, and then settled row by row once
// the acks come back.
type Service struct {
	logg        *logger.Logger
	db          dbClient
	sink        sink
	repo        outboxRepository
	metrics     *metrics.OutboxMetrics
	topic       string
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
		return nil, errors.New("pubsub sink is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Config.PubSub.PalletEventsTopic == "":
		return nil, errors.New("pallet events topic is required")
	}

	cfg := params.Config.Outbox
	s := &Service{
		logg:        params.Logger,
		db:          params.DB,
		sink:        params.Sink,
		repo:        params.Repository,
		metrics:     params.Metrics,
		topic:       params.Config.PubSub.PalletEventsTopic,
		batchSize:   orDefault(cfg.BatchSize, defaultBatchSize),
		maxAttempts: orDefault(cfg.MaxAttempts, defaultMaxAttempts),
		interval:    defaultPollInterval,
	}
	if cfg.PollIntervalMS > 0 {
		s.interval = time.Duration(cfg.PollIntervalMS) * time.Millisecond
	}
	return s, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Run polls until ctx ends. A full batch is followed immediately by the
// next one; an empty batch waits one interval; a failing batch backs off
// exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := s.sink.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	wait := s.interval
	for ctx.Err() == nil {
		n, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(s.logg.WithField(ctx, "backoff", wait.String()), "outbox.batch_failed", err)
			wait = nextBackoff(wait, s.interval, maxBackoff)
		case n >= s.batchSize:
			wait = s.interval
			continue
		default:
			wait = s.interval
		}
		if err := sleep(ctx, withJitter(wait)); err != nil {
			break
		}
	}
	return ctx.Err()
}

type inflight struct {
	event    models.OutboxEvent
	delivery pubsub.Delivery
	err      error
}

// processBatch returns how many rows it claimed. Only bookkeeping failures
// are returned as errors; publish failures are recorded on the rows.
func (s *Service) processBatch(ctx context.Context) (int, error) {
	var claimed int
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		claimed = len(events)

		publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		pending := make([]inflight, 0, len(events))
		for _, event := range events {
			pending = append(pending, s.send(publishCtx, event))
		}
		for _, p := range pending {
			if p.err == nil {
				_, p.err = p.delivery.Get(publishCtx)
			}
			if err := s.settle(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

// send queues event on the topic, keyed by its aggregate so per-pallet and
// per-reservation ordering survives redelivery.
func (s *Service) send(ctx context.Context, event models.OutboxEvent) inflight {
	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return inflight{event: event, err: permanent(fmt.Errorf("decode envelope: %w", err))}
	}
	msg := &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: event.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":       envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"occurred_at":    envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}
	return inflight{event: event, delivery: s.sink.Publish(ctx, s.topic, msg)}
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, p inflight) error {
	event := p.event
	eventType := string(event.EventType)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    eventType,
		"aggregate_id":  event.AggregateID.String(),
		"attempt_count": event.AttemptCount + 1,
	})

	if p.err == nil {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(eventType)
		s.logg.Debug(ctx, "outbox.published")
		return nil
	}

	ctx = s.logg.WithField(ctx, "error", p.err.Error())
	if isPermanent(p.err) || event.AttemptCount+1 >= s.maxAttempts {
		s.metrics.IncFailed(eventType, true)
		s.logg.Warn(ctx, "outbox.exhausted")
		if err := s.repo.MarkExhaustedTx(tx, event.ID, p.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark exhausted %s: %w", event.ID, err)
		}
		return nil
	}

	s.metrics.IncFailed(eventType, false)
	s.logg.Warn(ctx, "outbox.publish_failed")
	if err := s.repo.MarkFailedTx(tx, event.ID, p.err); err != nil {
		return fmt.Errorf("mark failed %s: %w", event.ID, err)
	}
	return nil
}

// permanentError marks failures a retry cannot fix.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return permanentError{err: err} }

func isPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

func sleep(ctx context.Context, d time.Duration) error {
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
	if current < base {
		current = base
	}
	return min(current*2, limit)
}

func withJitter(d time.Duration) time.Duration {
	return d + rand.N(jitterWindow)
}
