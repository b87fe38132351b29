package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reservation-service/apperrors"
	"reservation-service/logger"
	"reservation-service/models"
	aws_pkg "reservation-service/pkg/aws"
	"reservation-service/policy"
	"reservation-service/repository"
	"reservation-service/waitlist"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errBookNotFound = &apperrors.Error{Kind: apperrors.KindNotFound, Reason: "book_not_found"}

// ReservationService reserves books, cancels reservations and promotes waiters.
type ReservationService interface {
	Reserve(ctx context.Context, userID string, bookID uint, days int) (*models.ReserveResult, error)
	Cancel(ctx context.Context, userID string, reservationID uuid.UUID) (*models.CancelResult, error)
	// ProcessQueue promotes at most one waiter. days is used for entries queued without a duration.
	ProcessQueue(ctx context.Context, bookID uint, days int) (*models.QueueResult, error)
	ListReservations(ctx context.Context, userID string, page, limit int) (*models.ListReservationsResponse, error)
	QueuePosition(ctx context.Context, userID string, bookID uint) (*models.QueuePositionResponse, error)
	LeaveQueue(ctx context.Context, userID string, bookID uint) error
}

// ReservationConfig tunes the orchestrator.
type ReservationConfig struct {
	// ConflictRetries is how many extra attempts an instant reserve gets after a lock conflict.
	ConflictRetries  int
	DefaultQueueDays int
	Clock            func() time.Time
}

type reservationServiceImpl struct {
	store   repository.Store
	queue   waitlist.Queue
	engine  *policy.Engine
	metrics MetricsRecorder
	cfg     ReservationConfig
	now     func() time.Time
	logger  *zap.Logger
}

// NewReservationService creates a new ReservationService.
func NewReservationService(
	store repository.Store,
	queue waitlist.Queue,
	engine *policy.Engine,
	metrics MetricsRecorder,
	cfg ReservationConfig,
	logger *zap.Logger,
) ReservationService {
	if cfg.ConflictRetries < 0 {
		cfg.ConflictRetries = 0
	}
	if cfg.DefaultQueueDays <= 0 {
		cfg.DefaultQueueDays = 7
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &reservationServiceImpl{
		store:   store,
		queue:   queue,
		engine:  engine,
		metrics: metricsOrNoop(metrics),
		cfg:     cfg,
		now:     now,
		logger:  logger,
	}
}

func (s *reservationServiceImpl) Reserve(ctx context.Context, userID string, bookID uint, days int) (*models.ReserveResult, error) {
	log := logger.With(ctx, s.logger).With(zap.String("user_id", userID), zap.Uint("book_id", bookID))

	if days <= 0 {
		return nil, apperrors.PolicyDenied(apperrors.ReasonInvalidDuration,
			"reservation must last at least one day",
			map[string]int64{"requested_days": int64(days)})
	}

	customer, err := s.store.Customers().FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	book, err := s.store.Books().FindByID(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if book.Available() > 0 {
		r, quote, err := s.instantWithRetry(ctx, customer.ID, bookID, days)
		if err == nil {
			log.Info("Reservation created",
				zap.String("reservation_id", r.ID.String()),
				zap.Int64("price", quote.Cost),
				zap.Bool("waived", quote.Waived),
				zap.Bool("discounted", quote.Discounted))
			count(s.metrics, s.logger, aws_pkg.MetricReservationsInstant, map[string]string{"Tier": string(customer.SubscriptionTier)})
			return &models.ReserveResult{Outcome: models.OutcomeInstant, Reservation: r, BookID: bookID}, nil
		}
		if !errors.Is(err, apperrors.ErrExhausted) {
			if errors.Is(err, apperrors.ErrPolicyDenied) || errors.Is(err, apperrors.ErrInsufficientFunds) {
				count(s.metrics, s.logger, aws_pkg.MetricReservationsDenied, nil)
			}
			return nil, err
		}
		log.Info("Lost the race for the last unit, falling back to the waitlist")
	}

	return s.queueReserve(ctx, log, customer, bookID, days)
}

func (s *reservationServiceImpl) instantWithRetry(ctx context.Context, customerID, bookID uint, days int) (*models.Reservation, policy.Quote, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.ConflictRetries; attempt++ {
		r, q, err := s.instantReserve(ctx, customerID, bookID, days, models.EventReservationCreated)
		if err == nil || !errors.Is(err, apperrors.ErrConflict) {
			return r, q, err
		}
		lastErr = err
		count(s.metrics, s.logger, aws_pkg.MetricReservationConflicts, nil)
		s.logger.Warn("Reservation conflict, retrying",
			zap.Uint("customer_id", customerID),
			zap.Uint("book_id", bookID),
			zap.Int("attempt", attempt+1))
	}
	return nil, policy.Quote{}, lastErr
}

// instantReserve runs the whole validate, charge, reserve, persist sequence in one transaction.
// Row locks are taken customer first, then book.
func (s *reservationServiceImpl) instantReserve(ctx context.Context, customerID, bookID uint, days int, eventType string) (*models.Reservation, policy.Quote, error) {
	var reservation *models.Reservation
	var quote policy.Quote

	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		customer, err := tx.Customers().LockByID(ctx, customerID)
		if err != nil {
			return err
		}

		now := s.now()
		snap, err := s.snapshot(ctx, tx, customer, now)
		if err != nil {
			return err
		}
		quote, err = s.engine.Evaluate(snap, days)
		if err != nil {
			return err
		}

		if quote.Cost > 0 {
			if err := tx.Customers().Deduct(ctx, customer.ID, quote.Cost); err != nil {
				return err
			}
		}
		if _, err := tx.Books().ReserveUnit(ctx, bookID); err != nil {
			return err
		}

		reservation, err = models.NewReservation(customer.ID, bookID, now, days, quote.Cost)
		if err != nil {
			return err
		}
		if err := tx.Reservations().Create(ctx, reservation); err != nil {
			return err
		}

		end := reservation.EndTime
		return writeEvent(ctx, tx, models.ReservationEvent{
			EventType:        eventType,
			BookID:           bookID,
			CustomerID:       customer.ID,
			ReservationID:    reservation.ID.String(),
			Price:            quote.Cost,
			EndOfReservation: &end,
			Timestamp:        now,
		})
	})
	if err != nil {
		return nil, policy.Quote{}, err
	}
	return reservation, quote, nil
}

func (s *reservationServiceImpl) snapshot(ctx context.Context, tx repository.Store, c *models.Customer, now time.Time) (policy.Snapshot, error) {
	snap := policy.Snapshot{Tier: c.EffectiveTier(now), WalletBalance: c.WalletBalance}
	if snap.Tier == models.TierFree {
		return snap, nil
	}

	rules := s.engine.Rules()
	reservations := tx.Reservations()

	var err error
	if snap.ActiveCount, err = reservations.CountActive(ctx, c.ID); err != nil {
		return snap, err
	}
	if snap.PaidInWaiverWindow, err = reservations.SumPaidCompletedSince(ctx, c.ID, now.AddDate(0, 0, -rules.WaiverWindowDays)); err != nil {
		return snap, err
	}
	if snap.CompletedInWindow, err = reservations.CountCompletedSince(ctx, c.ID, now.AddDate(0, 0, -rules.LoyaltyWindowDays)); err != nil {
		return snap, err
	}
	return snap, nil
}

func (s *reservationServiceImpl) queueReserve(ctx context.Context, log *zap.Logger, customer *models.Customer, bookID uint, days int) (*models.ReserveResult, error) {
	tier := customer.EffectiveTier(s.now())
	if tier == models.TierFree {
		count(s.metrics, s.logger, aws_pkg.MetricReservationsDenied, nil)
		return nil, apperrors.PolicyDenied(apperrors.ReasonTierIneligible,
			"free tier customers cannot join the waitlist", nil)
	}

	pos, err := s.queue.Enqueue(ctx, bookID, customer.ID, tier, days)
	if err != nil {
		return nil, apperrors.Internal("failed to join waitlist", err)
	}

	log.Info("Customer queued", zap.Int64("position", pos), zap.String("tier", string(tier)))
	count(s.metrics, s.logger, aws_pkg.MetricReservationsQueued, map[string]string{"Tier": string(tier)})
	return &models.ReserveResult{Outcome: models.OutcomeQueued, Position: pos, BookID: bookID}, nil
}

func (s *reservationServiceImpl) Cancel(ctx context.Context, userID string, reservationID uuid.UUID) (*models.CancelResult, error) {
	log := logger.With(ctx, s.logger).With(zap.String("user_id", userID), zap.String("reservation_id", reservationID.String()))

	customer, err := s.store.Customers().FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &models.CancelResult{ReservationID: reservationID.String()}
	var bookID uint

	err = s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		if _, err := tx.Customers().LockByID(ctx, customer.ID); err != nil {
			return err
		}
		r, err := tx.Reservations().FindByIDForCustomer(ctx, reservationID, customer.ID)
		if err != nil {
			return err
		}
		bookID = r.BookID

		result.Refund = s.engine.Refund(r)
		if result.Refund > 0 {
			if err := tx.Customers().Credit(ctx, customer.ID, result.Refund); err != nil {
				return err
			}
		}
		if err := tx.Books().ReleaseUnit(ctx, r.BookID); err != nil {
			return err
		}
		if err := tx.Reservations().Delete(ctx, r.ID); err != nil {
			return err
		}
		return writeEvent(ctx, tx, models.ReservationEvent{
			EventType:     models.EventReservationCancelled,
			BookID:        r.BookID,
			CustomerID:    customer.ID,
			ReservationID: r.ID.String(),
			Refund:        result.Refund,
			Timestamp:     s.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info("Reservation cancelled", zap.Int64("refund", result.Refund), zap.Uint("book_id", bookID))
	count(s.metrics, s.logger, aws_pkg.MetricReservationsCancelled, nil)

	// The cancellation is committed. A failed promotion here is retried by the cancellation event consumer.
	promotion, err := s.ProcessQueue(ctx, bookID, 0)
	if err != nil {
		log.Warn("Waitlist promotion after cancel failed", zap.Error(err))
		return result, nil
	}
	result.Promotion = promotion
	return result, nil
}

func (s *reservationServiceImpl) ProcessQueue(ctx context.Context, bookID uint, days int) (*models.QueueResult, error) {
	log := logger.With(ctx, s.logger).With(zap.Uint("book_id", bookID))
	if days <= 0 {
		days = s.cfg.DefaultQueueDays
	}
	result := &models.QueueResult{Outcome: models.QueueNoOp, BookID: bookID}

	book, err := s.store.Books().FindByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	n, err := s.queue.Len(ctx, bookID)
	if err != nil {
		return nil, apperrors.Internal("failed to read waitlist", err)
	}
	if n == 0 {
		return result, nil
	}
	if book.Available() == 0 {
		result.Outcome = models.QueueWaiting
		return result, nil
	}

	for i := int64(0); i < n; i++ {
		entry, err := s.queue.DequeueHead(ctx, bookID)
		if errors.Is(err, waitlist.ErrEmpty) {
			return result, nil
		}
		if err != nil {
			return nil, apperrors.Internal("failed to read waitlist", err)
		}

		entryDays := entry.Days
		if entryDays <= 0 {
			entryDays = days
		}
		r, _, err := s.instantReserve(ctx, entry.CustomerID, bookID, entryDays, models.EventReservationPromoted)
		switch {
		case err == nil:
			log.Info("Waitlist entry promoted",
				zap.Uint("customer_id", entry.CustomerID),
				zap.String("reservation_id", r.ID.String()))
			count(s.metrics, s.logger, aws_pkg.MetricReservationsPromoted, nil)
			result.Outcome = models.QueuePromoted
			result.Reservation = r
			return result, nil

		case errors.Is(err, apperrors.ErrExhausted), errors.Is(err, apperrors.ErrConflict):
			if rerr := s.queue.Restore(ctx, *entry); rerr != nil {
				log.Error("Failed to restore waitlist entry", zap.Uint("customer_id", entry.CustomerID), zap.Error(rerr))
				return nil, apperrors.Internal("failed to restore waitlist entry", rerr)
			}
			log.Info("Promotion lost the race, candidate stays queued", zap.Uint("customer_id", entry.CustomerID), zap.Error(err))
			result.Outcome = models.QueueWaiting
			return result, nil

		case errors.Is(err, errBookNotFound):
			return nil, err

		case errors.Is(err, apperrors.ErrPolicyDenied),
			errors.Is(err, apperrors.ErrInsufficientFunds),
			errors.Is(err, apperrors.ErrNotFound):
			log.Info("Dropping waitlist candidate", zap.Uint("customer_id", entry.CustomerID), zap.Error(err))
			result.Dropped = append(result.Dropped, entry.CustomerID)

		default:
			if rerr := s.queue.Restore(ctx, *entry); rerr != nil {
				log.Error("Failed to restore waitlist entry", zap.Uint("customer_id", entry.CustomerID), zap.Error(rerr))
			}
			return nil, fmt.Errorf("promote customer %d: %w", entry.CustomerID, err)
		}
	}
	return result, nil
}

func (s *reservationServiceImpl) ListReservations(ctx context.Context, userID string, page, limit int) (*models.ListReservationsResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	customer, err := s.store.Customers().FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	list, total, err := s.store.Reservations().ListByCustomer(ctx, customer.ID, page, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Reservation{}
	}
	return &models.ListReservationsResponse{Reservations: list, Total: total, Page: page, Limit: limit}, nil
}

func (s *reservationServiceImpl) QueuePosition(ctx context.Context, userID string, bookID uint) (*models.QueuePositionResponse, error) {
	customer, err := s.store.Customers().FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	pos, err := s.queue.Position(ctx, bookID, customer.ID)
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, apperrors.Internal("failed to read waitlist", err)
	}
	n, err := s.queue.Len(ctx, bookID)
	if err != nil {
		return nil, apperrors.Internal("failed to read waitlist", err)
	}
	return &models.QueuePositionResponse{BookID: bookID, Position: pos, Length: n}, nil
}

func (s *reservationServiceImpl) LeaveQueue(ctx context.Context, userID string, bookID uint) error {
	customer, err := s.store.Customers().FindByUserID(ctx, userID)
	if err != nil {
		return err
	}
	removed, err := s.queue.Remove(ctx, bookID, customer.ID)
	if err != nil {
		return apperrors.Internal("failed to leave waitlist", err)
	}
	if !removed {
		return apperrors.NotFound("queue entry")
	}
	return nil
}
