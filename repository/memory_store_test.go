package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reservation-service/apperrors"
	"reservation-service/models"
	"reservation-service/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBook(t *testing.T, s *repository.MemoryStore, total int) *models.Book {
	t.Helper()
	b, err := models.NewBook("Dune", total, 0)
	require.NoError(t, err)
	require.NoError(t, s.Books().Create(context.Background(), b))
	return b
}

func TestMemoryStore_TransactionCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := repository.NewMemoryStore()
	b := seedBook(t, s, 2)

	err := s.WithinTransaction(ctx, func(tx repository.Store) error {
		_, err := tx.Books().ReserveUnit(ctx, b.ID)
		return err
	})
	require.NoError(t, err)

	got, err := s.Books().FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ReservedUnits)
}

func TestMemoryStore_TransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := repository.NewMemoryStore()
	b := seedBook(t, s, 1)
	c, err := models.NewCustomer("u1", models.TierPlus, 1000, nil)
	require.NoError(t, err)
	require.NoError(t, s.Customers().Create(ctx, c))

	err = s.WithinTransaction(ctx, func(tx repository.Store) error {
		if err := tx.Customers().Deduct(ctx, c.ID, 500); err != nil {
			return err
		}
		if _, err := tx.Books().ReserveUnit(ctx, b.ID); err != nil {
			return err
		}
		_, err := tx.Books().ReserveUnit(ctx, b.ID)
		return err
	})
	assert.True(t, errors.Is(err, apperrors.ErrExhausted))

	gotC, _ := s.Customers().FindByID(ctx, c.ID)
	gotB, _ := s.Books().FindByID(ctx, b.ID)
	assert.Equal(t, int64(1000), gotC.WalletBalance)
	assert.Equal(t, 0, gotB.ReservedUnits)
}

func TestMemoryStore_NestedTransactionJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := repository.NewMemoryStore()
	b := seedBook(t, s, 3)

	err := s.WithinTransaction(ctx, func(tx repository.Store) error {
		return tx.WithinTransaction(ctx, func(inner repository.Store) error {
			_, err := inner.Books().ReserveUnit(ctx, b.ID)
			return err
		})
	})
	require.NoError(t, err)

	got, _ := s.Books().FindByID(ctx, b.ID)
	assert.Equal(t, 1, got.ReservedUnits)
}

func TestMemoryStore_ConcurrentReserveNeverOversells(t *testing.T) {
	ctx := context.Background()
	s := repository.NewMemoryStore()
	b := seedBook(t, s, 3)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithinTransaction(ctx, func(tx repository.Store) error {
				_, err := tx.Books().ReserveUnit(ctx, b.ID)
				return err
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, _ := s.Books().FindByID(ctx, b.ID)
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 3, got.ReservedUnits)
}

func TestMemoryStore_HistoryWindows(t *testing.T) {
	ctx := context.Background()
	s := repository.NewMemoryStore()
	now := time.Now()

	old, _ := models.NewReservation(1, 1, now.AddDate(0, 0, -90), 3, 200000)
	old.Status = models.StatusCompleted
	recent, _ := models.NewReservation(1, 1, now.AddDate(0, 0, -10), 3, 150000)
	recent.Status = models.StatusCompleted
	active, _ := models.NewReservation(1, 2, now, 3, 3000)
	for _, r := range []*models.Reservation{old, recent, active} {
		require.NoError(t, s.Reservations().Create(ctx, r))
	}

	n, _ := s.Reservations().CountActive(ctx, 1)
	assert.Equal(t, int64(1), n)

	sum, _ := s.Reservations().SumPaidCompletedSince(ctx, 1, now.AddDate(0, 0, -60))
	assert.Equal(t, int64(150000), sum)

	completed, _ := s.Reservations().CountCompletedSince(ctx, 1, now.AddDate(0, 0, -30))
	assert.Equal(t, int64(1), completed)

	list, total, err := s.Reservations().ListByCustomer(ctx, 1, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, list, 2)
	assert.Equal(t, active.ID, list[0].ID)
}

func TestMemoryStore_OutboxLifecycle(t *testing.T) {
	ctx := context.Background()
	s := repository.NewMemoryStore()

	ev := &models.OutboxEvent{AggregateID: "1", EventType: models.EventReservationCreated, Payload: []byte(`{}`)}
	require.NoError(t, s.Outbox().Add(ctx, ev))

	pending, _ := s.Outbox().FetchUnpublished(ctx, 10, 2)
	require.Len(t, pending, 1)

	require.NoError(t, s.Outbox().MarkFailed(ctx, ev.ID, "boom"))
	require.NoError(t, s.Outbox().MarkFailed(ctx, ev.ID, "boom"))
	pending, _ = s.Outbox().FetchUnpublished(ctx, 10, 2)
	assert.Empty(t, pending)

	pending, _ = s.Outbox().FetchUnpublished(ctx, 10, 3)
	require.Len(t, pending, 1)
	require.NoError(t, s.Outbox().MarkPublished(ctx, ev.ID, time.Now()))
	pending, _ = s.Outbox().FetchUnpublished(ctx, 10, 3)
	assert.Empty(t, pending)
}
