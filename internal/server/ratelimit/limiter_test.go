package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/profolio/profolio/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryLimiter(t *testing.T, policy FailurePolicy) (*Limiter, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	store := NewStore(NewMemoryBackend(clock.Now), logging.Discard())
	return NewLimiter(store, LimiterOptions{Threshold: 5, Window: 15 * time.Minute, Policy: policy}, logging.Discard()), clock
}

func TestKey(t *testing.T) {
	assert.Equal(t, "ratelimit:login:ada@example.com", Key("login", "ada@example.com"))
}

func TestParseFailurePolicy(t *testing.T) {
	p, err := ParseFailurePolicy("fail_closed")
	require.NoError(t, err)
	assert.Equal(t, FailClosed, p)

	_, err = ParseFailurePolicy("failOpen")
	require.Error(t, err)
}

func TestNewLimiter_Defaults(t *testing.T) {
	l := NewLimiter(NewStore(NewMemoryBackend(nil), logging.Discard()), LimiterOptions{}, logging.Discard())
	assert.Equal(t, DefaultThreshold, l.threshold)
	assert.Equal(t, DefaultWindow, l.window)
	assert.Equal(t, FailOpen, l.policy)
}

func TestLimiter_LocksOutAfterThreshold(t *testing.T) {
	ctx := context.Background()
	l, clock := newMemoryLimiter(t, FailOpen)

	for i := 1; i <= 5; i++ {
		require.True(t, l.Allow(ctx, "login", "ada").Allowed)
		d := l.Attempt(ctx, "login", "ada")
		assert.True(t, d.Allowed, "attempt %d", i)
		assert.Equal(t, 5-i, d.Remaining)
	}

	d := l.Allow(ctx, "login", "ada")
	assert.False(t, d.Allowed, "five counted attempts engage the lockout")
	assert.Equal(t, 15*time.Minute, d.RetryAfter)

	d = l.Attempt(ctx, "login", "ada")
	assert.False(t, d.Allowed)
	assert.Equal(t, 15*time.Minute, d.RetryAfter)
	l.Refund(ctx, "login", "ada")

	clock.Advance(5 * time.Minute)
	d = l.Allow(ctx, "login", "ada")
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(5), d.Count)
	assert.Equal(t, 10*time.Minute, d.RetryAfter)

	// other identifiers are unaffected
	assert.True(t, l.Allow(ctx, "login", "bob").Allowed)

	clock.Advance(10 * time.Minute)
	assert.True(t, l.Allow(ctx, "login", "ada").Allowed, "lockout lifts when the window passes")
}

func TestLimiter_ResetClearsFailures(t *testing.T) {
	ctx := context.Background()
	l, _ := newMemoryLimiter(t, FailOpen)

	for i := 0; i < 4; i++ {
		l.Attempt(ctx, "login", "ada")
	}
	l.Reset(ctx, "login", "ada")

	d := l.Allow(ctx, "login", "ada")
	assert.True(t, d.Allowed)
	assert.Zero(t, d.Count)
	assert.Equal(t, 5, d.Remaining)
}

func TestLimiter_StoreFailurePolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("Given fail_open When the store is down Then attempts are allowed", func(t *testing.T) {
		l := NewLimiter(NewStore(brokenBackend{}, logging.Discard()), LimiterOptions{Policy: FailOpen}, logging.Discard())

		d := l.Allow(ctx, "login", "ada")
		assert.True(t, d.Allowed)
		assert.True(t, d.StoreFailed)

		d = l.Attempt(ctx, "login", "ada")
		assert.True(t, d.Allowed)
		assert.True(t, d.StoreFailed)

		l.Refund(ctx, "login", "ada")
	})

	t.Run("Given fail_closed When the store is down Then attempts are rejected", func(t *testing.T) {
		l := NewLimiter(NewStore(brokenBackend{}, logging.Discard()), LimiterOptions{Policy: FailClosed, Window: time.Minute}, logging.Discard())

		d := l.Allow(ctx, "login", "ada")
		assert.False(t, d.Allowed)
		assert.True(t, d.StoreFailed)
		assert.Equal(t, time.Minute, d.RetryAfter)

		d = l.Attempt(ctx, "login", "ada")
		assert.False(t, d.Allowed)
	})
}

func TestLimiter_Redis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	b, err := NewRedisBackend(Options{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	l := NewLimiter(NewStore(b, logging.Discard()), LimiterOptions{Threshold: 3, Window: time.Minute}, logging.Discard())

	for i := 0; i < 3; i++ {
		l.Attempt(ctx, "login-ip", "10.0.0.1")
	}
	mr.CheckGet(t, "ratelimit:login-ip:10.0.0.1", "3")

	l.Refund(ctx, "login-ip", "10.0.0.1")
	mr.CheckGet(t, "ratelimit:login-ip:10.0.0.1", "2")
	l.Attempt(ctx, "login-ip", "10.0.0.1")

	d := l.Allow(ctx, "login-ip", "10.0.0.1")
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)

	mr.FastForward(time.Minute)
	assert.True(t, l.Allow(ctx, "login-ip", "10.0.0.1").Allowed)
}

func TestLimiter_RefundReturnsAttempt(t *testing.T) {
	ctx := context.Background()
	l, _ := newMemoryLimiter(t, FailOpen)

	for i := 0; i < 5; i++ {
		require.True(t, l.Attempt(ctx, "login", "ada").Allowed)
		l.Refund(ctx, "login", "ada")
	}

	d := l.Allow(ctx, "login", "ada")
	assert.True(t, d.Allowed)
	assert.Zero(t, d.Count)

	// refunding with nothing counted does not go negative
	l.Refund(ctx, "login", "ada")
	assert.Equal(t, 5, l.Allow(ctx, "login", "ada").Remaining)
}

func TestLimiter_ConcurrentAttemptsHonorThreshold(t *testing.T) {
	ctx := context.Background()
	l, _ := newMemoryLimiter(t, FailOpen)

	const workers = 40
	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
		start   = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if !l.Allow(ctx, "login", "ada").Allowed {
				return
			}
			if l.Attempt(ctx, "login", "ada").Allowed {
				allowed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(5), allowed.Load())
	assert.False(t, l.Allow(ctx, "login", "ada").Allowed)
}
