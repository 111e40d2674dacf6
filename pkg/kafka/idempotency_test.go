package kafka

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	s := NewMemoryIdempotencyStore(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := s.Contains(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Add(ctx, "e1"))
	ok, _ = s.Contains(ctx, "e1")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = s.Contains(ctx, "e1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestRedisIdempotencyStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisIdempotencyStore(client, "catalog:events:", time.Hour)
	ctx := context.Background()

	ok, err := s.Contains(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Add(ctx, "e1"))
	ok, err = s.Contains(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("catalog:events:e1"))

	mr.FastForward(2 * time.Hour)
	ok, err = s.Contains(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisIdempotencyStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	s := NewRedisIdempotencyStore(client, "p:", time.Hour)
	_, err := s.Contains(context.Background(), "e1")
	assert.Error(t, err)
}

type failingStore struct{}

func (failingStore) Contains(context.Context, string) (bool, error) { return false, errors.New("down") }
func (failingStore) Add(context.Context, string) error              { return errors.New("down") }

func TestIdempotentHandler(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Hour)
	calls := 0
	h := IdempotentHandler(store, func(ctx context.Context, ev *Event) error {
		calls++
		return nil
	}, slog.Default())

	ev := &Event{EventID: "e1", EventType: "item.ingest"}
	require.NoError(t, h(context.Background(), ev))
	require.NoError(t, h(context.Background(), ev))
	assert.Equal(t, 1, calls)

	require.NoError(t, h(context.Background(), &Event{EventType: "item.ingest"}))
	require.NoError(t, h(context.Background(), &Event{EventType: "item.ingest"}))
	assert.Equal(t, 3, calls)
}

func TestIdempotentHandler_FailedHandlerNotRecorded(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Hour)
	h := IdempotentHandler(store, func(ctx context.Context, ev *Event) error {
		return errors.New("boom")
	}, slog.Default())

	assert.Error(t, h(context.Background(), &Event{EventID: "e1", EventType: "x"}))
	assert.Equal(t, 0, store.Len())
}

func TestIdempotentHandler_StoreFailureProcesses(t *testing.T) {
	calls := 0
	h := IdempotentHandler(failingStore{}, func(ctx context.Context, ev *Event) error {
		calls++
		return nil
	}, slog.Default())

	require.NoError(t, h(context.Background(), &Event{EventID: "e1", EventType: "x"}))
	assert.Equal(t, 1, calls)
}
