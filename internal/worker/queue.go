// Package worker implements the autosave pipeline: navigation enqueues the
// current answer, and a background worker delivers each payload to the exam
// API at least once.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// autosaveQueueKey is the Redis list shared by producers and the worker.
const autosaveQueueKey = "portal:autosave:queue"

// ErrEmpty is returned by Dequeue when no payload arrives within the timeout.
var ErrEmpty = errors.New("worker: queue empty")

// Queue buffers autosave payloads between navigation and delivery.
type Queue interface {
	Enqueue(ctx context.Context, payload []byte) error
	// Dequeue blocks up to timeout for the next payload, returning ErrEmpty
	// on expiry.
	Dequeue(ctx context.Context, timeout time.Duration) ([]byte, error)
	// Requeue puts a payload back after a failed delivery.
	Requeue(ctx context.Context, payload []byte) error
}

// RedisQueue is the production Queue, a Redis list drained with BLPOP.
type RedisQueue struct {
	rdb *redis.Client
}

// NewRedisQueue creates a Redis-backed queue.
func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

func (q *RedisQueue) Enqueue(ctx context.Context, payload []byte) error {
	return q.rdb.RPush(ctx, autosaveQueueKey, payload).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) ([]byte, error) {
	result, err := q.rdb.BLPop(ctx, timeout, autosaveQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, ErrEmpty
	}
	return []byte(result[1]), nil
}

func (q *RedisQueue) Requeue(ctx context.Context, payload []byte) error {
	return q.rdb.RPush(ctx, autosaveQueueKey, payload).Err()
}

// MemoryQueue is a channel-backed Queue for tests and redis-less runs.
type MemoryQueue struct {
	ch chan []byte
}

// NewMemoryQueue creates a queue buffering up to 1024 payloads.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{ch: make(chan []byte, 1024)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, payload []byte) error {
	select {
	case q.ch <- payload:
		return nil
	default:
		return errors.New("worker: memory queue full")
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case payload := <-q.ch:
		return payload, nil
	case <-timer.C:
		return nil, ErrEmpty
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Requeue(ctx context.Context, payload []byte) error {
	return q.Enqueue(ctx, payload)
}
