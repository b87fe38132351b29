package services_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"reservation-service/models"
	"reservation-service/policy"
	"reservation-service/repository"
	"reservation-service/services"
	"reservation-service/waitlist"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	store *repository.MemoryStore
	queue *waitlist.MemoryQueue
	svc   services.ReservationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	return newTestEnvWith(t, store, store)
}

// newTestEnvWith lets a test wrap the store the service sees while seeding through the raw one.
func newTestEnvWith(t *testing.T, raw *repository.MemoryStore, seen repository.Store) *testEnv {
	t.Helper()
	queue := waitlist.NewMemoryQueue()
	svc := services.NewReservationService(
		seen,
		queue,
		policy.NewEngine(policy.DefaultRules()),
		nil,
		services.ReservationConfig{ConflictRetries: 1, DefaultQueueDays: 7, Clock: func() time.Time { return fixedNow }},
		zap.NewNop(),
	)
	return &testEnv{store: raw, queue: queue, svc: svc}
}

func (e *testEnv) book(t *testing.T, total, reserved int) *models.Book {
	t.Helper()
	b, err := models.NewBook("The Left Hand of Darkness", total, reserved)
	require.NoError(t, err)
	require.NoError(t, e.store.Books().Create(context.Background(), b))
	return b
}

func (e *testEnv) customer(t *testing.T, userID string, tier models.Tier, balance int64) *models.Customer {
	t.Helper()
	end := fixedNow.Add(20 * 24 * time.Hour)
	var endPtr *time.Time
	if tier != models.TierFree {
		endPtr = &end
	}
	c, err := models.NewCustomer(userID, tier, balance, endPtr)
	require.NoError(t, err)
	require.NoError(t, e.store.Customers().Create(context.Background(), c))
	return c
}

func (e *testEnv) wallet(t *testing.T, id uint) int64 {
	t.Helper()
	c, err := e.store.Customers().FindByID(context.Background(), id)
	require.NoError(t, err)
	return c.WalletBalance
}

func (e *testEnv) reserved(t *testing.T, id uint) int {
	t.Helper()
	b, err := e.store.Books().FindByID(context.Background(), id)
	require.NoError(t, err)
	return b.ReservedUnits
}

func (e *testEnv) eventTypes() []string {
	var out []string
	for _, ev := range e.store.OutboxEvents() {
		out = append(out, ev.EventType)
	}
	return out
}

func decodeEvent(t *testing.T, ev models.OutboxEvent) models.ReservationEvent {
	t.Helper()
	var out models.ReservationEvent
	require.NoError(t, json.Unmarshal(ev.Payload, &out))
	return out
}

// faultyStore makes every ReserveUnit inside a transaction fail with err.
type faultyStore struct {
	repository.Store
	err   error
	calls int
}

func (f *faultyStore) WithinTransaction(ctx context.Context, fn func(tx repository.Store) error) error {
	return f.Store.WithinTransaction(ctx, func(tx repository.Store) error {
		return fn(&faultyTx{Store: tx, parent: f})
	})
}

type faultyTx struct {
	repository.Store
	parent *faultyStore
}

func (t *faultyTx) Books() repository.BookRepository {
	return &faultyBooks{BookRepository: t.Store.Books(), parent: t.parent}
}

type faultyBooks struct {
	repository.BookRepository
	parent *faultyStore
}

func (b *faultyBooks) ReserveUnit(context.Context, uint) (*models.Book, error) {
	b.parent.calls++
	return nil, b.parent.err
}
