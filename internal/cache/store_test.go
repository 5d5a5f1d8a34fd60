package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client), mr
}

func TestRedisStore_SetGetDelete(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", payload{Name: "ann", Count: 2}, time.Minute))

	var got payload
	found, err := store.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, payload{Name: "ann", Count: 2}, got)

	require.NoError(t, store.Delete(ctx, "k"))
	found, err = store.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_TTLExpires(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("k"))

	mr.FastForward(time.Minute + time.Second)

	var got string
	found, err := store.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_PingFailsWhenDown(t *testing.T) {
	store, mr := newRedisStore(t)
	require.NoError(t, store.Ping(context.Background()))

	mr.Close()
	assert.ErrorIs(t, store.Ping(context.Background()), ErrUnavailable)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0", time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = Connect(context.Background(), "not a url", time.Second)
	assert.Error(t, err)
}

func TestMemoryStore_TTL(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", payload{Name: "x"}, time.Hour))

	var got payload
	found, err := store.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)

	now = now.Add(time.Hour)
	found, err = store.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_EmptyKey(t *testing.T) {
	stores := map[string]Store{
		"memory": NewMemoryStore(),
	}
	rs, _ := newRedisStore(t)
	stores["redis"] = rs

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			var v string
			_, err := store.Get(context.Background(), "", &v)
			assert.ErrorIs(t, err, ErrEmptyKey)
			assert.ErrorIs(t, store.Set(context.Background(), "", "v", 0), ErrEmptyKey)
			assert.ErrorIs(t, store.Delete(context.Background(), ""), ErrEmptyKey)
		})
	}
}
