package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"reservation-service/models"
	"reservation-service/repository"
)

// writeEvent stores ev in the outbox of tx so it commits or rolls back with the state change.
func writeEvent(ctx context.Context, tx repository.Store, ev models.ReservationEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.EventType, err)
	}
	return tx.Outbox().Add(ctx, &models.OutboxEvent{
		AggregateID: strconv.FormatUint(uint64(ev.BookID), 10),
		EventType:   ev.EventType,
		Payload:     payload,
	})
}
