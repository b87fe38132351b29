// Package waitlist keeps the per-book priority queue of customers waiting for a unit.
package waitlist

import (
	"context"
	"errors"

	"reservation-service/models"
)

// ErrEmpty is returned by DequeueHead when nobody is waiting.
var ErrEmpty = errors.New("waitlist: empty")

// bandWidth separates priority bands in the score so that seq never crosses into the next band.
const bandWidth = 1_000_000_000_000

// Queue orders waiters by (priority, enqueue order).
type Queue interface {
	// Enqueue adds the customer and returns their 1-based position. A customer already
	// queued keeps their place unless their priority band changed.
	Enqueue(ctx context.Context, bookID, customerID uint, tier models.Tier, days int) (int64, error)
	// DequeueHead atomically pops the lowest-score entry.
	DequeueHead(ctx context.Context, bookID uint) (*models.WaitlistEntry, error)
	// Restore puts a popped entry back with its original score.
	Restore(ctx context.Context, entry models.WaitlistEntry) error
	Remove(ctx context.Context, bookID, customerID uint) (bool, error)
	// Position returns the 1-based position, or a not-found error.
	Position(ctx context.Context, bookID, customerID uint) (int64, error)
	Len(ctx context.Context, bookID uint) (int64, error)
}

func score(priority int, seq int64) float64 {
	return float64(int64(priority)*bandWidth + seq)
}

func splitScore(s float64) (priority int, seq int64) {
	v := int64(s)
	return int(v / bandWidth), v % bandWidth
}

func tierFor(priority int) models.Tier {
	switch priority {
	case 0:
		return models.TierPremium
	case 1:
		return models.TierPlus
	default:
		return models.TierFree
	}
}
