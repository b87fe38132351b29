package services

import (
	"context"
	"time"

	"reservation-service/models"
	aws_pkg "reservation-service/pkg/aws"
	"reservation-service/repository"

	"go.uber.org/zap"
)

// OutboxRelay publishes committed outbox rows to SNS. Delivery is at-least-once:
// a crash between publish and commit republishes the batch.
type OutboxRelay struct {
	store       repository.Store
	publisher   aws_pkg.SNSPublisher
	topicArn    string
	metrics     MetricsRecorder
	logger      *zap.Logger
	batchSize   int
	maxAttempts int
	interval    time.Duration
	now         func() time.Time
}

// NewOutboxRelay creates a new OutboxRelay.
func NewOutboxRelay(
	store repository.Store,
	publisher aws_pkg.SNSPublisher,
	topicArn string,
	interval time.Duration,
	metrics MetricsRecorder,
	logger *zap.Logger,
) *OutboxRelay {
	if interval <= 0 {
		interval = time.Second
	}
	return &OutboxRelay{
		store:       store,
		publisher:   publisher,
		topicArn:    topicArn,
		metrics:     metricsOrNoop(metrics),
		logger:      logger,
		batchSize:   50,
		maxAttempts: 10,
		interval:    interval,
		now:         time.Now,
	}
}

// Start polls until ctx is cancelled.
func (r *OutboxRelay) Start(ctx context.Context) {
	if r.publisher == nil || r.topicArn == "" {
		r.logger.Warn("Outbox relay disabled: no SNS publisher or topic configured")
		return
	}
	r.logger.Info("Starting outbox relay", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopping")
			return
		case <-ticker.C:
			if _, err := r.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("Error processing outbox batch", zap.Error(err))
			}
		}
	}
}

// ProcessBatch publishes one batch and returns how many events went out.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	published := 0
	err := r.store.WithinTransaction(ctx, func(tx repository.Store) error {
		events, err := tx.Outbox().FetchUnpublished(ctx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		for i := range events {
			ok, err := r.publish(ctx, tx, &events[i])
			if err != nil {
				r.logger.Warn("SNS circuit open, deferring the rest of the batch", zap.Int("remaining", len(events)-i))
				return nil
			}
			if ok {
				published++
			}
		}
		return nil
	})
	return published, err
}

// publish sends one event. The error is non-nil only when the publisher's circuit is open,
// in which case the event is left untouched so it does not burn an attempt.
func (r *OutboxRelay) publish(ctx context.Context, tx repository.Store, ev *models.OutboxEvent) (bool, error) {
	log := r.logger.With(zap.Uint("event_id", ev.ID), zap.String("event_type", ev.EventType))

	if err := r.publisher.Publish(ctx, r.topicArn, ev.EventType, ev.Payload); err != nil {
		if aws_pkg.IsCircuitOpen(err) {
			return false, err
		}
		log.Warn("Failed to publish outbox event", zap.Int("attempts", ev.Attempts+1), zap.Error(err))
		count(r.metrics, r.logger, aws_pkg.MetricOutboxFailed, map[string]string{"EventType": ev.EventType})
		if merr := tx.Outbox().MarkFailed(ctx, ev.ID, err.Error()); merr != nil {
			log.Error("Failed to record outbox failure", zap.Error(merr))
		}
		return false, nil
	}

	if err := tx.Outbox().MarkPublished(ctx, ev.ID, r.now()); err != nil {
		log.Error("Failed to mark outbox event published", zap.Error(err))
		return false, nil
	}
	count(r.metrics, r.logger, aws_pkg.MetricOutboxPublished, map[string]string{"EventType": ev.EventType})
	log.Debug("Outbox event published")
	return true, nil
}
