// Package idempotency remembers caller-supplied request ids so a retried
// mutation is applied at most once and replays return the first outcome.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrInFlight is returned when the request id was claimed by a request
	// that has not finished yet.
	ErrInFlight = errors.New("request already in flight")
	// ErrKeyReused is returned when a request id is replayed with a different
	// payload.
	ErrKeyReused = errors.New("idempotency key reused with a different request")
)

// Record is what a backend remembers for one request id.
type Record struct {
	RequestHash string          `json:"request_hash"`
	Result      json.RawMessage `json:"result,omitempty"`
	Completed   bool            `json:"completed"`
}

// Store is a backend. Claim must be atomic under concurrent first arrival:
// for one (scope, requestID) exactly one caller observes claimed == true.
type Store interface {
	Claim(ctx context.Context, scope, requestID, requestHash string, ttl time.Duration) (claimed bool, existing *Record, err error)
	Complete(ctx context.Context, scope, requestID string, result json.RawMessage) error
	Release(ctx context.Context, scope, requestID string) error
}

// Guard deduplicates mutations by request id within a scope, such as one
// entity's status stream.
type Guard struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewGuard builds a guard over store. Request ids are forgotten after ttl.
func NewGuard(store Store, ttl time.Duration, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{store: store, ttl: ttl, logger: logger}
}

// IsIdempotent records requestID on first sight and returns false; every
// later call with the same id in the same scope returns true.
func (g *Guard) IsIdempotent(ctx context.Context, scope, requestID string) (bool, error) {
	claimed, _, err := g.store.Claim(ctx, scope, requestID, "", g.ttl)
	if err != nil {
		return false, err
	}
	return !claimed, nil
}

// RequestHash fingerprints a request payload.
func RequestHash(payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("hash request: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Do runs fn at most once per (scope, requestID). A replay decodes and
// returns the cached result with replayed == true. An empty requestID
// disables deduplication. When fn fails the claim is released so the caller
// may retry with the same id.
func Do[T any](ctx context.Context, g *Guard, scope, requestID string, request any, fn func(ctx context.Context) (T, error)) (result T, replayed bool, err error) {
	if g == nil || requestID == "" {
		result, err = fn(ctx)
		return result, false, err
	}

	hash, err := RequestHash(request)
	if err != nil {
		return result, false, err
	}
	claimed, existing, err := g.store.Claim(ctx, scope, requestID, hash, g.ttl)
	if err != nil {
		return result, false, fmt.Errorf("claim request id: %w", err)
	}
	if !claimed {
		return replay[T](existing, hash)
	}

	result, err = fn(ctx)
	if err != nil {
		if releaseErr := g.store.Release(ctx, scope, requestID); releaseErr != nil {
			g.logger.Warn("release idempotency claim failed",
				zap.String("scope", scope), zap.String("request_id", requestID), zap.Error(releaseErr))
		}
		return result, false, err
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		g.logger.Error("encode idempotent result failed", zap.String("scope", scope), zap.Error(err))
		return result, false, nil
	}
	if err := g.store.Complete(ctx, scope, requestID, encoded); err != nil {
		// The mutation is committed; a retry will hit the version check.
		g.logger.Error("record idempotent result failed",
			zap.String("scope", scope), zap.String("request_id", requestID), zap.Error(err))
	}
	return result, false, nil
}

func replay[T any](existing *Record, hash string) (result T, replayed bool, err error) {
	if existing == nil {
		return result, false, ErrInFlight
	}
	if existing.RequestHash != "" && existing.RequestHash != hash {
		return result, false, ErrKeyReused
	}
	if !existing.Completed {
		return result, false, ErrInFlight
	}
	if err := json.Unmarshal(existing.Result, &result); err != nil {
		return result, false, fmt.Errorf("decode cached result: %w", err)
	}
	return result, true, nil
}
