package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry() *IdempotencyCacheEntry {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &IdempotencyCacheEntry{
		Key:          "key-1",
		ActorID:      "actor-1",
		RequestHash:  "abc123",
		StatusCode:   201,
		ResponseBody: []byte(`{"success":true}`),
		CreatedAt:    created,
		ExpiresAt:    created.Add(24 * time.Hour),
	}
}

func TestRedisIdempotencyStore_Get(t *testing.T) {
	ctx := context.Background()
	entry := sampleEntry()
	raw, err := json.Marshal(entry)
	require.NoError(t, err)

	t.Run("hit", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectGet("retainer:idempotency:actor-1:key-1").SetVal(string(raw))

		got, err := NewRedisIdempotencyStore(client).Get(ctx, "key-1", "actor-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, entry.RequestHash, got.RequestHash)
		assert.Equal(t, entry.ResponseBody, got.ResponseBody)
		assert.True(t, entry.ExpiresAt.Equal(got.ExpiresAt))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectGet("retainer:idempotency:actor-1:key-1").RedisNil()

		got, err := NewRedisIdempotencyStore(client).Get(ctx, "key-1", "actor-1")
		require.NoError(t, err)
		assert.Nil(t, got)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectGet("retainer:idempotency:actor-1:key-1").SetErr(errors.New("connection refused"))

		_, err := NewRedisIdempotencyStore(client).Get(ctx, "key-1", "actor-1")
		require.Error(t, err)
	})

	t.Run("actors are isolated", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectGet("retainer:idempotency:actor-2:key-1").RedisNil()

		got, err := NewRedisIdempotencyStore(client).Get(ctx, "key-1", "actor-2")
		require.NoError(t, err)
		assert.Nil(t, got)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRedisIdempotencyStore_Reserve(t *testing.T) {
	ctx := context.Background()
	entry := sampleEntry()
	pending := *entry
	pending.StatusCode = 0
	pending.ResponseBody = nil
	raw, err := json.Marshal(&pending)
	require.NoError(t, err)

	for _, won := range []bool{true, false} {
		client, mock := redismock.NewClientMock()
		mock.ExpectSetNX("retainer:idempotency:actor-1:key-1", string(raw), 24*time.Hour).SetVal(won)

		got, err := NewRedisIdempotencyStore(client).Reserve(ctx, entry)
		require.NoError(t, err)
		assert.Equal(t, won, got)
		require.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestRedisIdempotencyStore_Complete(t *testing.T) {
	ctx := context.Background()
	entry := sampleEntry()
	raw, err := json.Marshal(entry)
	require.NoError(t, err)

	client, mock := redismock.NewClientMock()
	mock.ExpectSetXX("retainer:idempotency:actor-1:key-1", string(raw), 24*time.Hour).SetVal(true)

	require.NoError(t, NewRedisIdempotencyStore(client).Complete(ctx, entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisIdempotencyStore_Release(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectDel("retainer:idempotency:actor-1:key-1").SetVal(1)

	require.NoError(t, NewRedisIdempotencyStore(client).Release(context.Background(), "key-1", "actor-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisIdempotencyStore_ReserveRejectsExpired(t *testing.T) {
	entry := sampleEntry()
	entry.ExpiresAt = entry.CreatedAt

	client, mock := redismock.NewClientMock()
	_, err := NewRedisIdempotencyStore(client).Reserve(context.Background(), entry)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
