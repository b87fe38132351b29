package waitlist

import (
	"context"
	"errors"
	"sync"
	"testing"

	"reservation-service/apperrors"
	"reservation-service/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisQueue(client), mr
}

func forEachQueue(t *testing.T, fn func(t *testing.T, q Queue)) {
	t.Run("redis", func(t *testing.T) {
		q, _ := newRedisQueue(t)
		fn(t, q)
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryQueue())
	})
}

func TestQueue_PremiumJumpsAheadOfPlus(t *testing.T) {
	forEachQueue(t, func(t *testing.T, q Queue) {
		ctx := context.Background()

		p1, err := q.Enqueue(ctx, 1, 10, models.TierPlus, 3)
		require.NoError(t, err)
		p2, err := q.Enqueue(ctx, 1, 11, models.TierPlus, 3)
		require.NoError(t, err)
		p3, err := q.Enqueue(ctx, 1, 12, models.TierPremium, 5)
		require.NoError(t, err)

		assert.Equal(t, int64(1), p1)
		assert.Equal(t, int64(2), p2)
		assert.Equal(t, int64(1), p3)

		pos, err := q.Position(ctx, 1, 11)
		require.NoError(t, err)
		assert.Equal(t, int64(3), pos)
	})
}

func TestQueue_DequeueOrderAndDays(t *testing.T) {
	forEachQueue(t, func(t *testing.T, q Queue) {
		ctx := context.Background()
		_, _ = q.Enqueue(ctx, 1, 10, models.TierPlus, 3)
		_, _ = q.Enqueue(ctx, 1, 11, models.TierFree, 2)
		_, _ = q.Enqueue(ctx, 1, 12, models.TierPremium, 9)
		_, _ = q.Enqueue(ctx, 1, 13, models.TierPlus, 4)

		var order []uint
		for {
			e, err := q.DequeueHead(ctx, 1)
			if errors.Is(err, ErrEmpty) {
				break
			}
			require.NoError(t, err)
			order = append(order, e.CustomerID)
			if e.CustomerID == 12 {
				assert.Equal(t, 9, e.Days)
				assert.Equal(t, models.TierPremium, e.Tier)
			}
		}
		assert.Equal(t, []uint{12, 10, 13, 11}, order)
	})
}

func TestQueue_ReenqueueKeepsPlaceUnlessBandChanges(t *testing.T) {
	forEachQueue(t, func(t *testing.T, q Queue) {
		ctx := context.Background()
		_, _ = q.Enqueue(ctx, 1, 10, models.TierPlus, 3)
		_, _ = q.Enqueue(ctx, 1, 11, models.TierPlus, 3)

		pos, err := q.Enqueue(ctx, 1, 10, models.TierPlus, 6)
		require.NoError(t, err)
		assert.Equal(t, int64(1), pos)

		pos, err = q.Enqueue(ctx, 1, 11, models.TierPremium, 6)
		require.NoError(t, err)
		assert.Equal(t, int64(1), pos)

		n, _ := q.Len(ctx, 1)
		assert.Equal(t, int64(2), n)

		head, err := q.DequeueHead(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, uint(11), head.CustomerID)
		next, err := q.DequeueHead(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 6, next.Days)
	})
}

func TestQueue_RestoreKeepsOriginalPlace(t *testing.T) {
	forEachQueue(t, func(t *testing.T, q Queue) {
		ctx := context.Background()
		_, _ = q.Enqueue(ctx, 1, 10, models.TierPlus, 3)
		_, _ = q.Enqueue(ctx, 1, 11, models.TierPlus, 3)

		head, err := q.DequeueHead(ctx, 1)
		require.NoError(t, err)
		_, _ = q.Enqueue(ctx, 1, 12, models.TierPlus, 3)

		require.NoError(t, q.Restore(ctx, *head))

		pos, err := q.Position(ctx, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), pos)

		again, err := q.DequeueHead(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, again.Days)
	})
}

func TestQueue_RemoveAndPositionNotFound(t *testing.T) {
	forEachQueue(t, func(t *testing.T, q Queue) {
		ctx := context.Background()
		_, _ = q.Enqueue(ctx, 1, 10, models.TierPlus, 3)

		removed, err := q.Remove(ctx, 1, 10)
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = q.Remove(ctx, 1, 10)
		require.NoError(t, err)
		assert.False(t, removed)

		_, err = q.Position(ctx, 1, 10)
		assert.True(t, errors.Is(err, apperrors.ErrNotFound))

		_, err = q.DequeueHead(ctx, 1)
		assert.ErrorIs(t, err, ErrEmpty)
	})
}

func TestQueue_ConcurrentDequeueIsExclusive(t *testing.T) {
	forEachQueue(t, func(t *testing.T, q Queue) {
		ctx := context.Background()
		for i := uint(1); i <= 20; i++ {
			_, err := q.Enqueue(ctx, 5, i, models.TierPlus, 1)
			require.NoError(t, err)
		}

		var mu sync.Mutex
		seen := make(map[uint]int)
		var wg sync.WaitGroup
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					e, err := q.DequeueHead(ctx, 5)
					if err != nil {
						return
					}
					mu.Lock()
					seen[e.CustomerID]++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Len(t, seen, 20)
		for id, n := range seen {
			assert.Equal(t, 1, n, "customer %d popped more than once", id)
		}
	})
}

func TestRedisQueue_DequeueClearsDaysAndToleratesBadValue(t *testing.T) {
	q, mr := newRedisQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, 3, 10, models.TierPlus, 4)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, 3, 11, models.TierPlus, 6)
	require.NoError(t, err)
	mr.HSet("reservation_queue:3:days", "11", "soon")

	head, err := q.DequeueHead(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, uint(10), head.CustomerID)
	assert.Equal(t, 4, head.Days)
	assert.Equal(t, "", mr.HGet("reservation_queue:3:days", "10"))

	next, err := q.DequeueHead(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, uint(11), next.CustomerID)
	assert.Equal(t, 0, next.Days)
	assert.Equal(t, models.TierPlus, next.Tier)

	_, err = q.DequeueHead(ctx, 3)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestRedisQueue_KeyLayout(t *testing.T) {
	q, mr := newRedisQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, 7, 42, models.TierPlus, 4)
	require.NoError(t, err)

	assert.True(t, mr.Exists("reservation_queue:7"))
	seq, err := mr.Get("reservation_queue:7:seq")
	require.NoError(t, err)
	assert.Equal(t, "1", seq)
	assert.Equal(t, "4", mr.HGet("reservation_queue:7:days", "42"))

	s, err := mr.ZScore("reservation_queue:7", "42")
	require.NoError(t, err)
	assert.Equal(t, float64(1_000_000_000_001), s)
}
