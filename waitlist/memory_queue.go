package waitlist

import (
	"context"
	"sort"
	"sync"

	"reservation-service/apperrors"
	"reservation-service/models"
)

// MemoryQueue is an in-process Queue with the same ordering rules as RedisQueue.
type MemoryQueue struct {
	mu      sync.Mutex
	entries map[uint][]models.WaitlistEntry
	seq     map[uint]int64
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		entries: make(map[uint][]models.WaitlistEntry),
		seq:     make(map[uint]int64),
	}
}

func (q *MemoryQueue) sortLocked(bookID uint) {
	list := q.entries[bookID]
	sort.SliceStable(list, func(i, j int) bool {
		return score(list[i].Priority, list[i].Seq) < score(list[j].Priority, list[j].Seq)
	})
}

func (q *MemoryQueue) indexLocked(bookID, customerID uint) int {
	for i, e := range q.entries[bookID] {
		if e.CustomerID == customerID {
			return i
		}
	}
	return -1
}

func (q *MemoryQueue) Enqueue(_ context.Context, bookID, customerID uint, tier models.Tier, days int) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	priority := models.PriorityFor(tier)
	if i := q.indexLocked(bookID, customerID); i >= 0 {
		if q.entries[bookID][i].Priority == priority {
			q.entries[bookID][i].Days = days
			return int64(i) + 1, nil
		}
		q.entries[bookID] = append(q.entries[bookID][:i], q.entries[bookID][i+1:]...)
	}

	q.seq[bookID]++
	q.entries[bookID] = append(q.entries[bookID], models.WaitlistEntry{
		BookID:     bookID,
		CustomerID: customerID,
		Tier:       tierFor(priority),
		Priority:   priority,
		Days:       days,
		Seq:        q.seq[bookID],
	})
	q.sortLocked(bookID)
	return int64(q.indexLocked(bookID, customerID)) + 1, nil
}

func (q *MemoryQueue) DequeueHead(_ context.Context, bookID uint) (*models.WaitlistEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	list := q.entries[bookID]
	if len(list) == 0 {
		return nil, ErrEmpty
	}
	head := list[0]
	q.entries[bookID] = list[1:]
	return &head, nil
}

func (q *MemoryQueue) Restore(_ context.Context, entry models.WaitlistEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i := q.indexLocked(entry.BookID, entry.CustomerID); i >= 0 {
		q.entries[entry.BookID][i] = entry
	} else {
		q.entries[entry.BookID] = append(q.entries[entry.BookID], entry)
	}
	q.sortLocked(entry.BookID)
	return nil
}

func (q *MemoryQueue) Remove(_ context.Context, bookID, customerID uint) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(bookID, customerID)
	if i < 0 {
		return false, nil
	}
	q.entries[bookID] = append(q.entries[bookID][:i], q.entries[bookID][i+1:]...)
	return true, nil
}

func (q *MemoryQueue) Position(_ context.Context, bookID, customerID uint) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(bookID, customerID)
	if i < 0 {
		return 0, apperrors.NotFound("queue entry")
	}
	return int64(i) + 1, nil
}

func (q *MemoryQueue) Len(_ context.Context, bookID uint) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.entries[bookID])), nil
}
