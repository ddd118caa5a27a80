package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type IdempotencyCacheEntry struct {
	Key          string    `json:"key"`
	ActorID      string    `json:"actor_id"`
	RequestHash  string    `json:"request_hash"`
	StatusCode   int       `json:"status_code"`
	ResponseBody []byte    `json:"response_body"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type IdempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Get(ctx context.Context, key, actorID string) (*IdempotencyCacheEntry, error) {
	var e IdempotencyCacheEntry
	err := r.db.QueryRowContext(ctx,
		`SELECT idempotency_key, actor_id, request_hash, status_code, response_body, created_at, expires_at
		FROM idempotency_cache
		WHERE idempotency_key = $1 AND actor_id = $2 AND expires_at > now()`,
		key, actorID,
	).Scan(&e.Key, &e.ActorID, &e.RequestHash, &e.StatusCode, &e.ResponseBody, &e.CreatedAt, &e.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &e, nil
}

// Pending reports whether the entry is a reservation with no stored response yet.
func (e *IdempotencyCacheEntry) Pending() bool {
	return e.StatusCode == 0
}

// Reserve claims the key for one in-flight request. It returns false when a
// live entry already holds the key; an expired entry is taken over.
func (r *IdempotencyRepository) Reserve(ctx context.Context, entry *IdempotencyCacheEntry) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO idempotency_cache (idempotency_key, actor_id, request_hash, status_code, response_body, created_at, expires_at)
		VALUES ($1, $2, $3, 0, ''::bytea, $4, $5)
		ON CONFLICT (idempotency_key, actor_id) DO UPDATE
		SET request_hash = EXCLUDED.request_hash,
			status_code = 0,
			response_body = ''::bytea,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
		WHERE idempotency_cache.expires_at <= now()`,
		entry.Key, entry.ActorID, entry.RequestHash, entry.CreatedAt, entry.ExpiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("Reserve: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Reserve: rows affected: %w", err)
	}
	return n == 1, nil
}

// Complete stores the response for a reservation made by Reserve.
func (r *IdempotencyRepository) Complete(ctx context.Context, entry *IdempotencyCacheEntry) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE idempotency_cache
		SET status_code = $3, response_body = $4, expires_at = $5
		WHERE idempotency_key = $1 AND actor_id = $2 AND request_hash = $6`,
		entry.Key, entry.ActorID, entry.StatusCode, entry.ResponseBody, entry.ExpiresAt, entry.RequestHash,
	)
	if err != nil {
		return fmt.Errorf("Complete: %w", err)
	}
	return nil
}

// Release drops a pending reservation so the key can be retried.
func (r *IdempotencyRepository) Release(ctx context.Context, key, actorID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_cache
		WHERE idempotency_key = $1 AND actor_id = $2 AND status_code = 0`,
		key, actorID,
	)
	if err != nil {
		return fmt.Errorf("Release: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) CleanExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_cache WHERE expires_at < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("CleanExpired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("CleanExpired: rows affected: %w", err)
	}
	return n, nil
}
