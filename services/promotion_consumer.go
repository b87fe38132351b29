package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"reservation-service/apperrors"
	"reservation-service/models"

	"go.uber.org/zap"
)

// snsEnvelope unwraps the SNS to SQS message wrapper.
type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// PromotionConsumer re-runs waitlist promotion for every reservation_cancelled event.
// ProcessQueue is idempotent, so a duplicate or late event at most promotes nobody.
type PromotionConsumer struct {
	reservations ReservationService
	logger       *zap.Logger
}

func NewPromotionConsumer(reservations ReservationService, logger *zap.Logger) *PromotionConsumer {
	return &PromotionConsumer{reservations: reservations, logger: logger}
}

// HandleMessage matches aws.MessageHandler. Unparseable messages are acknowledged and dropped.
func (c *PromotionConsumer) HandleMessage(ctx context.Context, body string) error {
	payload := []byte(body)

	var env snsEnvelope
	if err := json.Unmarshal(payload, &env); err == nil && env.Type == "Notification" && env.Message != "" {
		payload = []byte(env.Message)
	}

	var ev models.ReservationEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		c.logger.Warn("Dropping malformed reservation event", zap.Error(err))
		return nil
	}
	if ev.EventType != models.EventReservationCancelled {
		return nil
	}
	if ev.BookID == 0 {
		c.logger.Warn("Dropping cancellation event without book_id")
		return nil
	}

	result, err := c.reservations.ProcessQueue(ctx, ev.BookID, 0)
	if errors.Is(err, apperrors.ErrNotFound) {
		c.logger.Warn("Dropping cancellation event for unknown book", zap.Uint("book_id", ev.BookID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("process queue for book %d: %w", ev.BookID, err)
	}
	c.logger.Info("Processed waitlist from cancellation event",
		zap.Uint("book_id", ev.BookID),
		zap.String("outcome", string(result.Outcome)))
	return nil
}
