package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps request ids in the idempotency_keys table. The primary
// key on (scope, request_id) arbitrates concurrent first arrivals.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Claim(ctx context.Context, scope, requestID, requestHash string, ttl time.Duration) (bool, *Record, error) {
	if _, err := s.db.Exec(ctx, `
    DELETE FROM idempotency_keys
    WHERE scope = $1 AND request_id = $2 AND expires_at < now()
  `, scope, requestID); err != nil {
		return false, nil, fmt.Errorf("expire idempotency key: %w", err)
	}

	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (scope, request_id, request_hash, expires_at)
    VALUES ($1, $2, $3, $4)
    ON CONFLICT (scope, request_id) DO NOTHING
  `, scope, requestID, requestHash, time.Now().Add(ttl))
	if err != nil {
		return false, nil, fmt.Errorf("claim idempotency key: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil, nil
	}

	var (
		record Record
		result []byte
	)
	err = s.db.QueryRow(ctx, `
    SELECT request_hash, result
    FROM idempotency_keys
    WHERE scope = $1 AND request_id = $2
  `, scope, requestID).Scan(&record.RequestHash, &result)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	if result != nil {
		record.Result = result
		record.Completed = true
	}
	return false, &record, nil
}

func (s *PostgresStore) Complete(ctx context.Context, scope, requestID string, result json.RawMessage) error {
	_, err := s.db.Exec(ctx, `
    UPDATE idempotency_keys SET result = $3
    WHERE scope = $1 AND request_id = $2
  `, scope, requestID, []byte(result))
	return err
}

func (s *PostgresStore) Release(ctx context.Context, scope, requestID string) error {
	_, err := s.db.Exec(ctx, `
    DELETE FROM idempotency_keys WHERE scope = $1 AND request_id = $2 AND result IS NULL
  `, scope, requestID)
	return err
}
