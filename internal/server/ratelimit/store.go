package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/profolio/profolio/internal/logging"
)

// Store maps one-to-one onto a Backend but never returns errors: each
// failure is logged and the call yields its neutral value.
type Store struct {
	backend Backend
	logger  logging.Logger
}

func NewStore(backend Backend, logger logging.Logger) *Store {
	return &Store{backend: backend, logger: logger.With("module", "ratelimit")}
}

func (s *Store) fail(ctx context.Context, op, key string, err error) {
	s.logger.Warn(ctx, "counter store error", "op", op, "key", key, "error", err)
}

// Get returns "", false when the key is missing or the store failed.
func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	v, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.fail(ctx, "get", key, err)
		return "", false
	}
	return v, ok
}

// Set reports whether the value was stored.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) bool {
	if err := s.backend.Set(ctx, key, value, ttl); err != nil {
		s.fail(ctx, "set", key, err)
		return false
	}
	return true
}

// Incr returns the new count, or 0, false if the store failed.
func (s *Store) Incr(ctx context.Context, key string, ttl time.Duration) (int64, bool) {
	n, err := s.backend.Incr(ctx, key, ttl)
	if err != nil {
		s.fail(ctx, "incr", key, err)
		return 0, false
	}
	return n, true
}

// Decr returns the decremented count, or 0, false if the store failed.
func (s *Store) Decr(ctx context.Context, key string) (int64, bool) {
	n, err := s.backend.Decr(ctx, key)
	if err != nil {
		s.fail(ctx, "decr", key, err)
		return 0, false
	}
	return n, true
}

// Count reads a counter. A missing key counts as zero; ok is false only when
// the store failed or the value is not a number.
func (s *Store) Count(ctx context.Context, key string) (int64, bool) {
	v, found, err := s.backend.Get(ctx, key)
	if err != nil {
		s.fail(ctx, "get", key, err)
		return 0, false
	}
	if !found {
		return 0, true
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		s.fail(ctx, "get", key, ErrNotInteger)
		return 0, false
	}
	return n, true
}

func (s *Store) Del(ctx context.Context, keys ...string) bool {
	if err := s.backend.Del(ctx, keys...); err != nil {
		s.fail(ctx, "del", firstKey(keys), err)
		return false
	}
	return true
}

// Exists is false for missing keys and for store failures alike.
func (s *Store) Exists(ctx context.Context, key string) bool {
	ok, err := s.backend.Exists(ctx, key)
	if err != nil {
		s.fail(ctx, "exists", key, err)
		return false
	}
	return ok
}

// TTL returns the remaining lifetime; ok is false if the key has none or the store failed.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, bool) {
	d, err := s.backend.TTL(ctx, key)
	if err != nil {
		s.fail(ctx, "ttl", key, err)
		return 0, false
	}
	return d, d > 0
}

func (s *Store) HSet(ctx context.Context, key, field, value string) bool {
	if err := s.backend.HSet(ctx, key, field, value); err != nil {
		s.fail(ctx, "hset", key, err)
		return false
	}
	return true
}

func (s *Store) HGet(ctx context.Context, key, field string) (string, bool) {
	v, ok, err := s.backend.HGet(ctx, key, field)
	if err != nil {
		s.fail(ctx, "hget", key, err)
		return "", false
	}
	return v, ok
}

// HGetAll returns nil when the store failed.
func (s *Store) HGetAll(ctx context.Context, key string) map[string]string {
	m, err := s.backend.HGetAll(ctx, key)
	if err != nil {
		s.fail(ctx, "hgetall", key, err)
		return nil
	}
	return m
}

func (s *Store) HDel(ctx context.Context, key string, fields ...string) bool {
	if err := s.backend.HDel(ctx, key, fields...); err != nil {
		s.fail(ctx, "hdel", key, err)
		return false
	}
	return true
}

func firstKey(keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}
