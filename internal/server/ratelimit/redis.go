package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// MemoryURL selects the in-process backend instead of Redis.
const MemoryURL = "memory://"

// Options describe how to reach the counter store. URL wins over the
// discrete host/port/password/db fields when set.
type Options struct {
	URL         string
	Host        string
	Port        int
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
}

// Open returns the backend named by opts: a MemoryBackend for memory://,
// otherwise a RedisBackend.
func Open(opts Options) (Backend, error) {
	if strings.HasPrefix(opts.URL, MemoryURL) {
		return NewMemoryBackend(nil), nil
	}
	return NewRedisBackend(opts)
}

// RedisBackend implements Backend on go-redis.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend builds a client without connecting; call Ping to check
// reachability.
func NewRedisBackend(opts Options) (*RedisBackend, error) {
	var ro *redis.Options

	if opts.URL != "" {
		parsed, err := redis.ParseURL(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		ro = parsed
	} else {
		host := opts.Host
		if host == "" {
			host = "localhost"
		}
		port := opts.Port
		if port == 0 {
			port = 6379
		}
		ro = &redis.Options{
			Addr:     net.JoinHostPort(host, strconv.Itoa(port)),
			Password: opts.Password,
			DB:       opts.DB,
		}
	}

	if opts.MaxRetries > 0 {
		ro.MaxRetries = opts.MaxRetries
	}
	if opts.DialTimeout > 0 {
		ro.DialTimeout = opts.DialTimeout
	}

	return &RedisBackend{client: redis.NewClient(ro)}, nil
}

// NewRedisBackendFromClient wraps an existing client.
func NewRedisBackendFromClient(c *redis.Client) *RedisBackend {
	return &RedisBackend{client: c}
}

func (r *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Incr runs INCR and EXPIRE in one MULTI/EXEC round trip.
func (r *RedisBackend) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return r.client.Incr(ctx, key).Result()
	}

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

var decrScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
local n = redis.call("DECR", KEYS[1])
if n <= 0 then
  redis.call("DEL", KEYS[1])
  return 0
end
return n
`)

// Decr runs as a script so the zero check and the delete are atomic.
func (r *RedisBackend) Decr(ctx context.Context, key string) (int64, error) {
	return decrScript.Run(ctx, r.client, []string{key}).Int64()
}

func (r *RedisBackend) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisBackend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisBackend) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// -1 (no expiry) and -2 (missing) come back as negative durations
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (r *RedisBackend) HSet(ctx context.Context, key, field, value string) error {
	return r.client.HSet(ctx, key, field, value).Err()
}

func (r *RedisBackend) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := r.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisBackend) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.client.HGetAll(ctx, key).Result()
}

func (r *RedisBackend) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return r.client.HDel(ctx, key, fields...).Err()
}

func (r *RedisBackend) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	return nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}
