package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// GormStore implements Store on Postgres.
type GormStore struct {
	db          *gorm.DB
	lockTimeout time.Duration
	inTx        bool
}

// NewGormStore creates a new GormStore. lockTimeout bounds every row lock taken inside a transaction.
func NewGormStore(db *gorm.DB, lockTimeout time.Duration) *GormStore {
	return &GormStore{db: db, lockTimeout: lockTimeout}
}

func (s *GormStore) Books() BookRepository               { return NewGormBookRepository(s.db) }
func (s *GormStore) Customers() CustomerRepository       { return NewGormCustomerRepository(s.db) }
func (s *GormStore) Reservations() ReservationRepository { return NewGormReservationRepository(s.db) }
func (s *GormStore) Outbox() OutboxRepository            { return NewGormOutboxRepository(s.db) }

// WithinTransaction opens a transaction, sets the lock timeout and runs fn.
func (s *GormStore) WithinTransaction(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.lockTimeout > 0 {
			// SET does not accept bind parameters.
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(&GormStore{db: tx, lockTimeout: s.lockTimeout, inTx: true})
	})
	return translate(err, "record")
}
