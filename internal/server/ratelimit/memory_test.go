package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend_IncrThenExpire(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := NewMemoryBackend(clock.Now)

	for want := int64(1); want <= 5; want++ {
		n, err := m.Incr(ctx, "ratelimit:login:a@b.c", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	ttl, err := m.TTL(ctx, "ratelimit:login:a@b.c")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	clock.Advance(time.Minute)

	_, ok, err := m.Get(ctx, "ratelimit:login:a@b.c")
	require.NoError(t, err)
	assert.False(t, ok, "key must be gone after its ttl")

	n, err := m.Incr(ctx, "ratelimit:login:a@b.c", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "counting restarts after expiry")
}

func TestMemoryBackend_IncrSlidesWindow(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := NewMemoryBackend(clock.Now)

	_, _ = m.Incr(ctx, "k", time.Minute)
	clock.Advance(50 * time.Second)
	_, _ = m.Incr(ctx, "k", time.Minute)
	clock.Advance(50 * time.Second)

	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", v)
}

func TestMemoryBackend_Decr(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := NewMemoryBackend(clock.Now)

	n, err := m.Decr(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, n, "missing key")
	ok, err := m.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "decrementing a missing key must not create it")

	_, _ = m.Incr(ctx, "k", time.Minute)
	_, _ = m.Incr(ctx, "k", time.Minute)
	clock.Advance(20 * time.Second)

	n, err = m.Decr(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	ttl, err := m.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 40*time.Second, ttl, "expiry is left alone")

	n, err = m.Decr(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, n)
	ok, err = m.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "zero counters are removed")

	require.NoError(t, m.Set(ctx, "word", "abc", 0))
	_, err = m.Decr(ctx, "word")
	assert.ErrorIs(t, err, ErrNotInteger)

	require.NoError(t, m.HSet(ctx, "h", "f", "v"))
	_, err = m.Decr(ctx, "h")
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestMemoryBackend_IncrWithoutTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := NewMemoryBackend(clock.Now)

	_, _ = m.Incr(ctx, "k", 0)
	clock.Advance(24 * time.Hour)

	ok, err := m.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := m.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, ttl)
}

func TestMemoryBackend_SetGetDel(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := NewMemoryBackend(clock.Now)

	require.NoError(t, m.Set(ctx, "k", "v", 10*time.Second))
	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	_, err = m.Incr(ctx, "k", 0)
	assert.ErrorIs(t, err, ErrNotInteger)

	require.NoError(t, m.Del(ctx, "k", "missing"))
	ok, err = m.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryBackend_Hash(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend(nil)

	require.NoError(t, m.HSet(ctx, "h", "a", "1"))
	require.NoError(t, m.HSet(ctx, "h", "b", "2"))

	v, ok, err := m.HGet(ctx, "h", "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok, err = m.HGet(ctx, "h", "zzz")
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := m.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, all)

	require.NoError(t, m.HDel(ctx, "h", "a", "b"))
	exists, err := m.Exists(ctx, "h")
	require.NoError(t, err)
	assert.False(t, exists, "empty hash is removed")

	require.NoError(t, m.Set(ctx, "s", "v", 0))
	assert.ErrorIs(t, m.HSet(ctx, "s", "f", "v"), ErrWrongType)
	require.NoError(t, m.HSet(ctx, "h2", "f", "v"))
	_, _, err = m.Get(ctx, "h2")
	assert.ErrorIs(t, err, ErrWrongType)
}
