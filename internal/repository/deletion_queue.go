package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DeletionQueue holds closed tickets awaiting deferred deletion, keyed by ticket id.
type DeletionQueue interface {
	// Schedule enqueues (or reschedules) the ticket for deletion at dueAt.
	Schedule(ctx context.Context, ticketID int64, dueAt time.Time) error
	// Cancel drops a pending deletion; cancelling an unknown id is not an error.
	Cancel(ctx context.Context, ticketID int64) error
	// Due returns up to limit ticket ids whose due time is at or before now.
	Due(ctx context.Context, now time.Time, limit int) ([]int64, error)
	// Claim removes the id from the queue and reports whether this caller won it.
	Claim(ctx context.Context, ticketID int64) (bool, error)
}

type redisDeletionQueue struct {
	client *redis.Client
	key    string
}

// NewRedisDeletionQueue stores the queue as a sorted set scored by due time in unix millis,
// so pending deletions survive process restarts.
func NewRedisDeletionQueue(client *redis.Client, key string) DeletionQueue {
	return &redisDeletionQueue{client: client, key: key}
}

func (q *redisDeletionQueue) Schedule(ctx context.Context, ticketID int64, dueAt time.Time) error {
	return q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(dueAt.UnixMilli()),
		Member: strconv.FormatInt(ticketID, 10),
	}).Err()
}

func (q *redisDeletionQueue) Cancel(ctx context.Context, ticketID int64) error {
	return q.client.ZRem(ctx, q.key, strconv.FormatInt(ticketID, 10)).Err()
}

func (q *redisDeletionQueue) Due(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	members, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			// foreign member; drop it so it does not block the head of the queue
			q.client.ZRem(ctx, q.key, m)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (q *redisDeletionQueue) Claim(ctx context.Context, ticketID int64) (bool, error) {
	removed, err := q.client.ZRem(ctx, q.key, strconv.FormatInt(ticketID, 10)).Result()
	if err != nil {
		return false, err
	}
	return removed == 1, nil
}
