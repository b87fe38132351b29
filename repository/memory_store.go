package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"reservation-service/apperrors"
	"reservation-service/models"

	"github.com/google/uuid"
)

type memoryData struct {
	books          map[uint]models.Book
	customers      map[uint]models.Customer
	reservations   map[uuid.UUID]models.Reservation
	outbox         []models.OutboxEvent
	nextBookID     uint
	nextCustomerID uint
	nextOutboxID   uint
}

func newMemoryData() *memoryData {
	return &memoryData{
		books:        make(map[uint]models.Book),
		customers:    make(map[uint]models.Customer),
		reservations: make(map[uuid.UUID]models.Reservation),
	}
}

func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		books:          make(map[uint]models.Book, len(d.books)),
		customers:      make(map[uint]models.Customer, len(d.customers)),
		reservations:   make(map[uuid.UUID]models.Reservation, len(d.reservations)),
		outbox:         make([]models.OutboxEvent, len(d.outbox)),
		nextBookID:     d.nextBookID,
		nextCustomerID: d.nextCustomerID,
		nextOutboxID:   d.nextOutboxID,
	}
	for k, v := range d.books {
		c.books[k] = v
	}
	for k, v := range d.customers {
		c.customers[k] = v
	}
	for k, v := range d.reservations {
		c.reservations[k] = v
	}
	copy(c.outbox, d.outbox)
	return c
}

type memoryRoot struct {
	mu   sync.Mutex
	data *memoryData
}

// MemoryStore is an in-process Store. Transactions are serialized and work on a copy
// that replaces the committed state only when fn succeeds.
type MemoryStore struct {
	root *memoryRoot
	view *memoryData
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{root: &memoryRoot{data: newMemoryData()}}
}

func (s *MemoryStore) Books() BookRepository               { return &memoryBooks{s} }
func (s *MemoryStore) Customers() CustomerRepository       { return &memoryCustomers{s} }
func (s *MemoryStore) Reservations() ReservationRepository { return &memoryReservations{s} }
func (s *MemoryStore) Outbox() OutboxRepository            { return &memoryOutbox{s} }

func (s *MemoryStore) WithinTransaction(ctx context.Context, fn func(tx Store) error) error {
	if s.view != nil {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.root.mu.Lock()
	defer s.root.mu.Unlock()

	work := s.root.data.clone()
	if err := fn(&MemoryStore{root: s.root, view: work}); err != nil {
		return err
	}
	s.root.data = work
	return nil
}

// OutboxEvents returns a copy of every stored event.
func (s *MemoryStore) OutboxEvents() []models.OutboxEvent {
	var out []models.OutboxEvent
	_ = s.do(func(d *memoryData) error {
		out = append(out, d.outbox...)
		return nil
	})
	return out
}

func (s *MemoryStore) do(fn func(d *memoryData) error) error {
	if s.view != nil {
		return fn(s.view)
	}
	s.root.mu.Lock()
	defer s.root.mu.Unlock()
	return fn(s.root.data)
}

type memoryBooks struct{ s *MemoryStore }

func (r *memoryBooks) Create(_ context.Context, book *models.Book) error {
	return r.s.do(func(d *memoryData) error {
		if book.ID == 0 {
			d.nextBookID++
			book.ID = d.nextBookID
		} else if book.ID > d.nextBookID {
			d.nextBookID = book.ID
		}
		d.books[book.ID] = *book
		return nil
	})
}

func (r *memoryBooks) FindByID(_ context.Context, id uint) (*models.Book, error) {
	var out *models.Book
	err := r.s.do(func(d *memoryData) error {
		b, ok := d.books[id]
		if !ok {
			return apperrors.NotFound("book")
		}
		out = &b
		return nil
	})
	return out, err
}

func (r *memoryBooks) ReserveUnit(_ context.Context, id uint) (*models.Book, error) {
	var out *models.Book
	err := r.s.do(func(d *memoryData) error {
		b, ok := d.books[id]
		if !ok {
			return apperrors.NotFound("book")
		}
		if err := b.Reserve(); err != nil {
			return err
		}
		d.books[id] = b
		out = &b
		return nil
	})
	return out, err
}

func (r *memoryBooks) ReleaseUnit(_ context.Context, id uint) error {
	return r.s.do(func(d *memoryData) error {
		b, ok := d.books[id]
		if !ok {
			return apperrors.NotFound("book")
		}
		b.Release()
		d.books[id] = b
		return nil
	})
}

type memoryCustomers struct{ s *MemoryStore }

func (r *memoryCustomers) Create(_ context.Context, c *models.Customer) error {
	return r.s.do(func(d *memoryData) error {
		for _, existing := range d.customers {
			if existing.UserID == c.UserID {
				return apperrors.New(apperrors.KindConflict, "customer already exists", nil)
			}
		}
		if c.ID == 0 {
			d.nextCustomerID++
			c.ID = d.nextCustomerID
		} else if c.ID > d.nextCustomerID {
			d.nextCustomerID = c.ID
		}
		d.customers[c.ID] = *c
		return nil
	})
}

func (r *memoryCustomers) FindByID(_ context.Context, id uint) (*models.Customer, error) {
	var out *models.Customer
	err := r.s.do(func(d *memoryData) error {
		c, ok := d.customers[id]
		if !ok {
			return apperrors.NotFound("customer")
		}
		out = &c
		return nil
	})
	return out, err
}

func (r *memoryCustomers) FindByUserID(_ context.Context, userID string) (*models.Customer, error) {
	var out *models.Customer
	err := r.s.do(func(d *memoryData) error {
		for _, c := range d.customers {
			if c.UserID == userID {
				out = &c
				return nil
			}
		}
		return apperrors.NotFound("customer")
	})
	return out, err
}

func (r *memoryCustomers) LockByID(ctx context.Context, id uint) (*models.Customer, error) {
	return r.FindByID(ctx, id)
}

func (r *memoryCustomers) Deduct(_ context.Context, id uint, amount int64) error {
	return r.s.do(func(d *memoryData) error {
		c, ok := d.customers[id]
		if !ok {
			return apperrors.NotFound("customer")
		}
		if err := c.Deduct(amount); err != nil {
			return err
		}
		d.customers[id] = c
		return nil
	})
}

func (r *memoryCustomers) Credit(_ context.Context, id uint, amount int64) error {
	return r.s.do(func(d *memoryData) error {
		c, ok := d.customers[id]
		if !ok {
			return apperrors.NotFound("customer")
		}
		if err := c.Credit(amount); err != nil {
			return err
		}
		d.customers[id] = c
		return nil
	})
}

func (r *memoryCustomers) UpdateSubscription(_ context.Context, id uint, tier models.Tier, end *time.Time) error {
	if !tier.Valid() {
		return apperrors.InvalidInput("unknown subscription tier", nil)
	}
	return r.s.do(func(d *memoryData) error {
		c, ok := d.customers[id]
		if !ok {
			return apperrors.NotFound("customer")
		}
		c.SubscriptionTier = tier
		c.SubscriptionEndTime = end
		d.customers[id] = c
		return nil
	})
}

type memoryReservations struct{ s *MemoryStore }

func (r *memoryReservations) Create(_ context.Context, res *models.Reservation) error {
	return r.s.do(func(d *memoryData) error {
		if res.ID == uuid.Nil {
			res.ID = uuid.New()
		}
		d.reservations[res.ID] = *res
		return nil
	})
}

func (r *memoryReservations) FindByIDForCustomer(_ context.Context, id uuid.UUID, customerID uint) (*models.Reservation, error) {
	var out *models.Reservation
	err := r.s.do(func(d *memoryData) error {
		res, ok := d.reservations[id]
		if !ok || res.CustomerID != customerID {
			return apperrors.NotFound("reservation")
		}
		out = &res
		return nil
	})
	return out, err
}

func (r *memoryReservations) Delete(_ context.Context, id uuid.UUID) error {
	return r.s.do(func(d *memoryData) error {
		if _, ok := d.reservations[id]; !ok {
			return apperrors.NotFound("reservation")
		}
		delete(d.reservations, id)
		return nil
	})
}

func (r *memoryReservations) ListByCustomer(_ context.Context, customerID uint, page, limit int) ([]models.Reservation, int64, error) {
	var all []models.Reservation
	_ = r.s.do(func(d *memoryData) error {
		for _, res := range d.reservations {
			if res.CustomerID == customerID {
				all = append(all, res)
			}
		}
		return nil
	})
	sort.Slice(all, func(i, j int) bool { return all[i].StartTime.After(all[j].StartTime) })

	total := int64(len(all))
	offset := (page - 1) * limit
	if offset < 0 || offset >= len(all) {
		return []models.Reservation{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *memoryReservations) count(customerID uint, match func(models.Reservation) bool) (n, sum int64) {
	_ = r.s.do(func(d *memoryData) error {
		for _, res := range d.reservations {
			if res.CustomerID == customerID && match(res) {
				n++
				sum += res.Price
			}
		}
		return nil
	})
	return n, sum
}

func (r *memoryReservations) CountActive(_ context.Context, customerID uint) (int64, error) {
	n, _ := r.count(customerID, func(res models.Reservation) bool { return res.Status == models.StatusActive })
	return n, nil
}

func completedSince(since time.Time) func(models.Reservation) bool {
	return func(res models.Reservation) bool {
		return res.Status == models.StatusCompleted && !res.StartTime.Before(since)
	}
}

func (r *memoryReservations) SumPaidCompletedSince(_ context.Context, customerID uint, since time.Time) (int64, error) {
	_, sum := r.count(customerID, completedSince(since))
	return sum, nil
}

func (r *memoryReservations) CountCompletedSince(_ context.Context, customerID uint, since time.Time) (int64, error) {
	n, _ := r.count(customerID, completedSince(since))
	return n, nil
}

func (r *memoryReservations) FindEndingBetween(_ context.Context, from, to time.Time, limit int) ([]models.Reservation, error) {
	var out []models.Reservation
	_ = r.s.do(func(d *memoryData) error {
		for _, res := range d.reservations {
			if res.Status != models.StatusActive || res.ReminderSentAt != nil {
				continue
			}
			if res.EndTime.Before(from) || res.EndTime.After(to) {
				continue
			}
			out = append(out, res)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryReservations) MarkReminderSent(_ context.Context, id uuid.UUID, at time.Time) error {
	return r.s.do(func(d *memoryData) error {
		res, ok := d.reservations[id]
		if !ok {
			return apperrors.NotFound("reservation")
		}
		res.ReminderSentAt = &at
		d.reservations[id] = res
		return nil
	})
}

type memoryOutbox struct{ s *MemoryStore }

func (r *memoryOutbox) Add(_ context.Context, ev *models.OutboxEvent) error {
	return r.s.do(func(d *memoryData) error {
		d.nextOutboxID++
		ev.ID = d.nextOutboxID
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = time.Now()
		}
		d.outbox = append(d.outbox, *ev)
		return nil
	})
}

func (r *memoryOutbox) FetchUnpublished(_ context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	var out []models.OutboxEvent
	_ = r.s.do(func(d *memoryData) error {
		for _, ev := range d.outbox {
			if ev.PublishedAt == nil && ev.Attempts < maxAttempts {
				out = append(out, ev)
				if len(out) == limit {
					break
				}
			}
		}
		return nil
	})
	return out, nil
}

func (r *memoryOutbox) update(id uint, fn func(ev *models.OutboxEvent)) error {
	return r.s.do(func(d *memoryData) error {
		for i := range d.outbox {
			if d.outbox[i].ID == id {
				fn(&d.outbox[i])
				return nil
			}
		}
		return apperrors.NotFound("outbox event")
	})
}

func (r *memoryOutbox) MarkPublished(_ context.Context, id uint, at time.Time) error {
	return r.update(id, func(ev *models.OutboxEvent) { ev.PublishedAt = &at })
}

func (r *memoryOutbox) MarkFailed(_ context.Context, id uint, reason string) error {
	return r.update(id, func(ev *models.OutboxEvent) {
		ev.Attempts++
		ev.LastError = reason
	})
}
