package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisQueue pushes events onto a Redis list for out-of-process consumers.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

// Enqueue LPUSHes the JSON encoded event.
func (q *RedisQueue) Enqueue(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

// Consume pops events in FIFO order and publishes them to dispatcher until ctx
// is done.
func (q *RedisQueue) Consume(ctx context.Context, dispatcher Dispatcher, logger *zap.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}
		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("event queue pop failed", zap.String("queue", q.key), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		// res is [key, value].
		q.deliver(ctx, []byte(res[1]), dispatcher, logger)
	}
}

func (q *RedisQueue) deliver(ctx context.Context, raw []byte, dispatcher Dispatcher, logger *zap.Logger) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		logger.Warn("dropping undecodable event", zap.String("queue", q.key), zap.Error(err))
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event publish failed",
			zap.String("queue", q.key),
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}
