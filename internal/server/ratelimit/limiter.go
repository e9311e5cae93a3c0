package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/profolio/profolio/internal/logging"
)

// FailurePolicy decides what the Limiter answers when the store is down.
type FailurePolicy string

const (
	// FailOpen lets requests through while the store is unavailable.
	FailOpen FailurePolicy = "fail_open"
	// FailClosed rejects requests while the store is unavailable.
	FailClosed FailurePolicy = "fail_closed"
)

// ParseFailurePolicy accepts "fail_open" or "fail_closed".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case FailOpen, FailClosed:
		return FailurePolicy(s), nil
	default:
		return "", fmt.Errorf("unknown store failure policy %q", s)
	}
}

const (
	DefaultThreshold = 5
	DefaultWindow    = 15 * time.Minute
)

// Decision is the outcome of a limiter check.
type Decision struct {
	Allowed    bool
	Count      int64
	Remaining  int
	RetryAfter time.Duration
	// StoreFailed is set when the answer came from the failure policy.
	StoreFailed bool
}

// Limiter locks an identifier out of an endpoint once Threshold attempts
// have been counted within Window. Every attempt re-arms the window.
type Limiter struct {
	store     *Store
	threshold int
	window    time.Duration
	policy    FailurePolicy
	logger    logging.Logger
}

type LimiterOptions struct {
	Threshold int
	Window    time.Duration
	Policy    FailurePolicy
}

func NewLimiter(store *Store, opts LimiterOptions, logger logging.Logger) *Limiter {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Policy == "" {
		opts.Policy = FailOpen
	}
	return &Limiter{
		store:     store,
		threshold: opts.Threshold,
		window:    opts.Window,
		policy:    opts.Policy,
		logger:    logger.With("module", "ratelimit"),
	}
}

// Key builds the counter key for endpoint and identifier.
func Key(endpoint, identifier string) string {
	return "ratelimit:" + endpoint + ":" + identifier
}

// Allow reports whether identifier may attempt endpoint now.
func (l *Limiter) Allow(ctx context.Context, endpoint, identifier string) Decision {
	key := Key(endpoint, identifier)

	n, ok := l.store.Count(ctx, key)
	if !ok {
		return l.onStoreFailure(ctx, endpoint)
	}

	if n >= int64(l.threshold) {
		return Decision{Count: n, RetryAfter: l.retryAfter(ctx, key)}
	}
	return Decision{Allowed: true, Count: n, Remaining: l.threshold - int(n)}
}

// Attempt counts an attempt before it is evaluated and reports whether it
// may go ahead. Counting first keeps concurrent attempts from slipping past
// the threshold together; attempts that turn out not to count are handed
// back with Refund.
func (l *Limiter) Attempt(ctx context.Context, endpoint, identifier string) Decision {
	key := Key(endpoint, identifier)

	n, ok := l.store.Incr(ctx, key, l.window)
	if !ok {
		return l.onStoreFailure(ctx, endpoint)
	}

	if n > int64(l.threshold) {
		return Decision{Count: n, RetryAfter: l.window}
	}
	if n == int64(l.threshold) {
		l.logger.Warn(ctx, "lockout engaged", "endpoint", endpoint, "attempts", n)
	}
	return Decision{Allowed: true, Count: n, Remaining: l.threshold - int(n)}
}

// Refund takes back an attempt counted by Attempt.
func (l *Limiter) Refund(ctx context.Context, endpoint, identifier string) {
	l.store.Decr(ctx, Key(endpoint, identifier))
}

// Reset clears the failure count, typically after a successful attempt.
func (l *Limiter) Reset(ctx context.Context, endpoint, identifier string) {
	l.store.Del(ctx, Key(endpoint, identifier))
}

func (l *Limiter) retryAfter(ctx context.Context, key string) time.Duration {
	if d, ok := l.store.TTL(ctx, key); ok {
		return d
	}
	return l.window
}

func (l *Limiter) onStoreFailure(ctx context.Context, endpoint string) Decision {
	if l.policy == FailClosed {
		l.logger.Error(ctx, "counter store unavailable, rejecting", "endpoint", endpoint)
		return Decision{RetryAfter: l.window, StoreFailed: true}
	}
	l.logger.Warn(ctx, "counter store unavailable, allowing", "endpoint", endpoint)
	return Decision{Allowed: true, Remaining: l.threshold, StoreFailed: true}
}
