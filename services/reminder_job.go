package services

import (
	"context"
	"time"

	"reservation-service/models"
	"reservation-service/repository"

	"go.uber.org/zap"
)

// ReminderJob queues a reservation_ending_soon event for every active reservation
// entering its last window. Each reservation is reminded once.
type ReminderJob struct {
	store    repository.Store
	window   time.Duration
	interval time.Duration
	batch    int
	now      func() time.Time
	logger   *zap.Logger
}

// NewReminderJob creates a job that scans every interval for reservations ending within window.
func NewReminderJob(store repository.Store, window, interval time.Duration, logger *zap.Logger) *ReminderJob {
	if window <= 0 {
		window = 24 * time.Hour
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &ReminderJob{
		store:    store,
		window:   window,
		interval: interval,
		batch:    100,
		now:      time.Now,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled.
func (j *ReminderJob) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		if _, err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
			j.logger.Warn("Reminder scan failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			j.logger.Info("Reminder job stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce reminds one batch and returns how many reservations were handled.
func (j *ReminderJob) RunOnce(ctx context.Context) (int, error) {
	now := j.now()
	sent := 0

	err := j.store.WithinTransaction(ctx, func(tx repository.Store) error {
		due, err := tx.Reservations().FindEndingBetween(ctx, now, now.Add(j.window), j.batch)
		if err != nil {
			return err
		}
		for _, r := range due {
			end := r.EndTime
			if err := writeEvent(ctx, tx, models.ReservationEvent{
				EventType:        models.EventReservationEndingSoon,
				BookID:           r.BookID,
				CustomerID:       r.CustomerID,
				ReservationID:    r.ID.String(),
				EndOfReservation: &end,
				Timestamp:        now,
			}); err != nil {
				return err
			}
			if err := tx.Reservations().MarkReminderSent(ctx, r.ID, now); err != nil {
				return err
			}
			sent++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if sent > 0 {
		j.logger.Info("Reservation reminders queued", zap.Int("count", sent))
	}
	return sent, nil
}
