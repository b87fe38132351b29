package waitlist

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"reservation-service/apperrors"
	"reservation-service/models"

	"github.com/redis/go-redis/v9"
)

// RedisQueue stores one sorted set per book plus a seq counter and a days hash.
type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) key(bookID uint) string {
	return fmt.Sprintf("reservation_queue:%d", bookID)
}

func (q *RedisQueue) seqKey(bookID uint) string {
	return q.key(bookID) + ":seq"
}

func (q *RedisQueue) daysKey(bookID uint) string {
	return q.key(bookID) + ":days"
}

func member(customerID uint) string {
	return strconv.FormatUint(uint64(customerID), 10)
}

func (q *RedisQueue) Enqueue(ctx context.Context, bookID, customerID uint, tier models.Tier, days int) (int64, error) {
	key := q.key(bookID)
	m := member(customerID)
	priority := models.PriorityFor(tier)

	current, err := q.client.ZScore(ctx, key, m).Result()
	switch {
	case err == nil:
		if p, _ := splitScore(current); p == priority {
			if err := q.client.HSet(ctx, q.daysKey(bookID), m, days).Err(); err != nil {
				return 0, fmt.Errorf("update queued days: %w", err)
			}
			return q.Position(ctx, bookID, customerID)
		}
	case errors.Is(err, redis.Nil):
	default:
		return 0, fmt.Errorf("read queue score: %w", err)
	}

	seq, err := q.client.Incr(ctx, q.seqKey(bookID)).Result()
	if err != nil {
		return 0, fmt.Errorf("next queue seq: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: score(priority, seq), Member: m})
		pipe.HSet(ctx, q.daysKey(bookID), m, days)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("enqueue: %w", err)
	}
	return q.Position(ctx, bookID, customerID)
}

// popHead removes the lowest-scored member and its stored days in one step,
// so a failed lookup can never drop a waiter.
var popHead = redis.NewScript(`
local popped = redis.call('ZPOPMIN', KEYS[1])
if #popped == 0 then
	return false
end
local days = redis.call('HGET', KEYS[2], popped[1])
redis.call('HDEL', KEYS[2], popped[1])
return {popped[1], popped[2], days or ''}
`)

func (q *RedisQueue) DequeueHead(ctx context.Context, bookID uint) (*models.WaitlistEntry, error) {
	res, err := popHead.Run(ctx, q.client, []string{q.key(bookID), q.daysKey(bookID)}).StringSlice()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("pop queue head: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("unexpected pop reply %v", res)
	}

	customerID, err := strconv.ParseUint(res[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse queue member %q: %w", res[0], err)
	}
	s, err := strconv.ParseFloat(res[1], 64)
	if err != nil {
		return nil, fmt.Errorf("parse queue score %q: %w", res[1], err)
	}
	// unreadable days fall back to the caller's default
	days, _ := strconv.Atoi(res[2])

	priority, seq := splitScore(s)
	return &models.WaitlistEntry{
		BookID:     bookID,
		CustomerID: uint(customerID),
		Tier:       tierFor(priority),
		Priority:   priority,
		Days:       days,
		Seq:        seq,
	}, nil
}

func (q *RedisQueue) Restore(ctx context.Context, entry models.WaitlistEntry) error {
	m := member(entry.CustomerID)
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, q.key(entry.BookID), redis.Z{Score: score(entry.Priority, entry.Seq), Member: m})
		if entry.Days > 0 {
			pipe.HSet(ctx, q.daysKey(entry.BookID), m, entry.Days)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("restore queue entry: %w", err)
	}
	return nil
}

func (q *RedisQueue) Remove(ctx context.Context, bookID, customerID uint) (bool, error) {
	m := member(customerID)
	var zrem *redis.IntCmd
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		zrem = pipe.ZRem(ctx, q.key(bookID), m)
		pipe.HDel(ctx, q.daysKey(bookID), m)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("remove queue entry: %w", err)
	}
	return zrem.Val() > 0, nil
}

func (q *RedisQueue) Position(ctx context.Context, bookID, customerID uint) (int64, error) {
	rank, err := q.client.ZRank(ctx, q.key(bookID), member(customerID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, apperrors.NotFound("queue entry")
	}
	if err != nil {
		return 0, fmt.Errorf("queue rank: %w", err)
	}
	return rank + 1, nil
}

func (q *RedisQueue) Len(ctx context.Context, bookID uint) (int64, error) {
	n, err := q.client.ZCard(ctx, q.key(bookID)).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}
