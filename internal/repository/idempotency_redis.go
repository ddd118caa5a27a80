package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisIdempotencyPrefix = "retainer:idempotency:"

// RedisIdempotencyStore keeps idempotency entries in Redis, letting several
// API replicas share replay state without a Postgres round trip.
type RedisIdempotencyStore struct {
	client *redis.Client
}

func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

func redisIdempotencyKey(key, actorID string) string {
	return redisIdempotencyPrefix + actorID + ":" + key
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key, actorID string) (*IdempotencyCacheEntry, error) {
	raw, err := s.client.Get(ctx, redisIdempotencyKey(key, actorID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	var e IdempotencyCacheEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("Get: decode: %w", err)
	}
	return &e, nil
}

// Reserve claims the key with SETNX, so only one request per key runs.
func (s *RedisIdempotencyStore) Reserve(ctx context.Context, entry *IdempotencyCacheEntry) (bool, error) {
	pending := *entry
	pending.StatusCode = 0
	pending.ResponseBody = nil

	raw, ttl, err := encodeEntry(&pending)
	if err != nil {
		return false, fmt.Errorf("Reserve: %w", err)
	}

	ok, err := s.client.SetNX(ctx, redisIdempotencyKey(entry.Key, entry.ActorID), raw, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("Reserve: %w", err)
	}
	return ok, nil
}

// Complete overwrites the reservation with the stored response, only while
// the reservation still exists.
func (s *RedisIdempotencyStore) Complete(ctx context.Context, entry *IdempotencyCacheEntry) error {
	raw, ttl, err := encodeEntry(entry)
	if err != nil {
		return fmt.Errorf("Complete: %w", err)
	}

	if err := s.client.SetXX(ctx, redisIdempotencyKey(entry.Key, entry.ActorID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("Complete: %w", err)
	}
	return nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key, actorID string) error {
	if err := s.client.Del(ctx, redisIdempotencyKey(key, actorID)).Err(); err != nil {
		return fmt.Errorf("Release: %w", err)
	}
	return nil
}

func encodeEntry(entry *IdempotencyCacheEntry) (string, time.Duration, error) {
	ttl := entry.ExpiresAt.Sub(entry.CreatedAt)
	if ttl <= 0 {
		return "", 0, fmt.Errorf("entry %q already expired", entry.Key)
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return "", 0, fmt.Errorf("encode: %w", err)
	}
	return string(raw), ttl, nil
}

func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("NewRedisClient: parse url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("NewRedisClient: ping: %w", err)
	}
	return client, nil
}
