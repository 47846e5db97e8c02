package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore claims request ids with SET NX so concurrent first arrivals on
// different replicas race on one key.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "idem"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(scope, requestID string) string {
	return r.prefix + ":" + scope + ":" + requestID
}

func (r *RedisStore) Claim(ctx context.Context, scope, requestID, requestHash string, ttl time.Duration) (bool, *Record, error) {
	payload, err := json.Marshal(Record{RequestHash: requestHash})
	if err != nil {
		return false, nil, err
	}
	key := r.key(scope, requestID)
	ok, err := r.client.SetNX(ctx, key, payload, ttl).Result()
	if err != nil {
		return false, nil, fmt.Errorf("redis setnx: %w", err)
	}
	if ok {
		return true, nil, nil
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired or released between SETNX and GET; treat as still owned.
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("redis get: %w", err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return false, nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return false, &record, nil
}

func (r *RedisStore) Complete(ctx context.Context, scope, requestID string, result json.RawMessage) error {
	key := r.key(scope, requestID)
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis get: %w", err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return fmt.Errorf("decode idempotency record: %w", err)
	}
	record.Result = result
	record.Completed = true
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	err = r.client.SetArgs(ctx, key, payload, redis.SetArgs{KeepTTL: true, Mode: "XX"}).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (r *RedisStore) Release(ctx context.Context, scope, requestID string) error {
	return r.client.Del(ctx, r.key(scope, requestID)).Err()
}
