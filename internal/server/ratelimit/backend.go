// Package ratelimit holds the counter store used to throttle login attempts
// and the lockout policy built on top of it.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrNotInteger is returned by Incr when the stored value is not a number.
var ErrNotInteger = errors.New("value is not an integer")

// ErrWrongType is returned when a string operation meets a hash or vice versa.
var ErrWrongType = errors.New("operation against a key holding the wrong kind of value")

// Backend is a remote or in-process key-value store. Every method reports
// store failures as errors; Store turns those into neutral values.
type Backend interface {
	// Get returns the value at key; ok is false if the key does not exist.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value. A non-positive ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Incr increments key by one and, for a positive ttl, (re)arms its expiry.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Decr takes one off a counter without touching its expiry. The key is
	// removed once it reaches zero; a missing key stays missing and yields 0.
	Decr(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	// TTL returns the remaining lifetime, or zero if the key is missing or never expires.
	TTL(ctx context.Context, key string) (time.Duration, error)
	HSet(ctx context.Context, key, field, value string) error
	HGet(ctx context.Context, key, field string) (value string, ok bool, err error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	Ping(ctx context.Context) error
	Close() error
}
