package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/pkg/logger"
	"github.com/jwalitptl/vetclinic-api/pkg/messaging"
	"github.com/jwalitptl/vetclinic-api/pkg/metrics"
	"github.com/jwalitptl/vetclinic-api/pkg/repository"
)

const (
	publishAttempts     = 3
	publishInitialDelay = 50 * time.Millisecond
	publishMaxDelay     = 500 * time.Millisecond
)

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// Lease is how long a claimed event stays invisible to other relays
	Lease time.Duration
}

// OutboxProcessor relays pending outbox rows to the message broker
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) (*OutboxProcessor, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than 0")
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		return nil, fmt.Errorf("retry attempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		return nil, fmt.Errorf("retry delay must be greater than 0")
	}
	if config.Lease <= 0 {
		config.Lease = 30 * time.Second
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  log.WithFields(map[string]interface{}{"component": "outbox_processor"}),
		metrics: m,
		now:     time.Now,
	}, nil
}

// Start polls until ctx is done
func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("starting outbox processor",
		"batch_size", p.config.BatchSize,
		"poll_interval", p.config.PollInterval.String())

	for {
		if _, err := p.ProcessBatch(ctx); err != nil {
			p.logger.Error(err, "failed to process outbox batch")
		}

		select {
		case <-ctx.Done():
			p.logger.Info("shutting down outbox processor")
			return
		case <-ticker.C:
		}
	}
}

// ProcessBatch relays one batch of due events and returns how many were published
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.ClaimDue(ctx, p.config.BatchSize, p.config.Lease)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("claim_outbox_events", "error").Inc()
		return 0, fmt.Errorf("failed to claim outbox events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("claim_outbox_events", "success").Inc()

	published := 0
	for _, evt := range events {
		if ctx.Err() != nil {
			break
		}
		if err := p.processEvent(ctx, evt); err != nil {
			p.logger.Error(err, "failed to relay outbox event",
				"event_id", evt.ID.String(),
				"event_type", evt.EventType,
				"retry_count", evt.RetryCount)
			continue
		}
		published++
	}
	return published, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, evt *model.OutboxEvent) error {
	err := p.publish(ctx, evt)
	if err == nil {
		p.metrics.OutboxEventsProcessed.Inc()
		if err := p.repo.MarkProcessed(ctx, evt.ID); err != nil {
			return fmt.Errorf("failed to mark event processed: %w", err)
		}
		return nil
	}

	p.metrics.OutboxEventsFailed.Inc()
	msg := err.Error()

	if evt.RetryCount+1 >= p.config.RetryAttempts {
		p.metrics.OutboxDeadLettered.Inc()
		if dlErr := p.repo.MoveToDeadLetter(ctx, evt, msg); dlErr != nil {
			return fmt.Errorf("failed to dead-letter event after %v: %w", err, dlErr)
		}
		p.logger.Warn("outbox event moved to dead letter",
			"event_id", evt.ID.String(),
			"event_type", evt.EventType)
		return err
	}

	retryAt := p.now().Add(p.config.RetryDelay * time.Duration(evt.RetryCount+1))
	if retryErr := p.repo.MarkRetry(ctx, evt.ID, msg, retryAt); retryErr != nil {
		return fmt.Errorf("failed to schedule retry after %v: %w", err, retryErr)
	}
	return err
}

func (p *OutboxProcessor) publish(ctx context.Context, evt *model.OutboxEvent) error {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(publishInitialDelay),
		backoff.WithMaxInterval(publishMaxDelay),
	)
	policy := backoff.WithContext(backoff.WithMaxRetries(b, publishAttempts-1), ctx)

	channel := messaging.ChannelFor(evt.EventType)
	return backoff.RetryNotify(func() error {
		return p.broker.Publish(ctx, channel, evt.Payload)
	}, policy, func(error, time.Duration) {
		p.metrics.OutboxRetries.WithLabelValues(evt.EventType).Inc()
	})
}
