package repository

import (
	"context"
	"time"

	"reservation-service/models"

	"github.com/google/uuid"
)

// BookRepository is the inventory ledger.
type BookRepository interface {
	Create(ctx context.Context, book *models.Book) error
	FindByID(ctx context.Context, id uint) (*models.Book, error)
	// ReserveUnit locks the book row for the rest of the transaction and takes one unit.
	ReserveUnit(ctx context.Context, id uint) (*models.Book, error)
	// ReleaseUnit gives one unit back, floored at zero.
	ReleaseUnit(ctx context.Context, id uint) error
}

// CustomerRepository owns customer profiles and wallets.
type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	FindByID(ctx context.Context, id uint) (*models.Customer, error)
	FindByUserID(ctx context.Context, userID string) (*models.Customer, error)
	// LockByID reads the customer with FOR UPDATE.
	LockByID(ctx context.Context, id uint) (*models.Customer, error)
	Deduct(ctx context.Context, id uint, amount int64) error
	Credit(ctx context.Context, id uint, amount int64) error
	UpdateSubscription(ctx context.Context, id uint, tier models.Tier, end *time.Time) error
}

// ReservationRepository stores reservations and answers the history questions the policy needs.
type ReservationRepository interface {
	Create(ctx context.Context, reservation *models.Reservation) error
	FindByIDForCustomer(ctx context.Context, id uuid.UUID, customerID uint) (*models.Reservation, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCustomer(ctx context.Context, customerID uint, page, limit int) ([]models.Reservation, int64, error)
	CountActive(ctx context.Context, customerID uint) (int64, error)
	SumPaidCompletedSince(ctx context.Context, customerID uint, since time.Time) (int64, error)
	CountCompletedSince(ctx context.Context, customerID uint, since time.Time) (int64, error)
	FindEndingBetween(ctx context.Context, from, to time.Time, limit int) ([]models.Reservation, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

// OutboxRepository persists events alongside the state change they describe.
type OutboxRepository interface {
	Add(ctx context.Context, event *models.OutboxEvent) error
	// FetchUnpublished claims up to limit pending rows. Rows locked by another relay are skipped.
	FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(ctx context.Context, id uint, at time.Time) error
	MarkFailed(ctx context.Context, id uint, reason string) error
}

// Store groups the repositories that share one unit of work.
type Store interface {
	Books() BookRepository
	Customers() CustomerRepository
	Reservations() ReservationRepository
	Outbox() OutboxRepository
	// WithinTransaction runs fn against a transactional Store. A nested call joins the outer transaction.
	WithinTransaction(ctx context.Context, fn func(tx Store) error) error
}
