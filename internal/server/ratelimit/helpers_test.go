package ratelimit

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/profolio/profolio/internal/logging"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errStoreDown = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

// brokenBackend fails every call.
type brokenBackend struct{}

func (brokenBackend) Get(context.Context, string) (string, bool, error) {
	return "x", true, errStoreDown
}
func (brokenBackend) Set(context.Context, string, string, time.Duration) error {
	return errStoreDown
}
func (brokenBackend) Incr(context.Context, string, time.Duration) (int64, error) {
	return 7, errStoreDown
}
func (brokenBackend) Decr(context.Context, string) (int64, error)  { return 3, errStoreDown }
func (brokenBackend) Del(context.Context, ...string) error         { return errStoreDown }
func (brokenBackend) Exists(context.Context, string) (bool, error) { return true, errStoreDown }
func (brokenBackend) TTL(context.Context, string) (time.Duration, error) {
	return time.Minute, errStoreDown
}
func (brokenBackend) HSet(context.Context, string, string, string) error { return errStoreDown }
func (brokenBackend) HGet(context.Context, string, string) (string, bool, error) {
	return "x", true, errStoreDown
}
func (brokenBackend) HGetAll(context.Context, string) (map[string]string, error) {
	return map[string]string{"a": "b"}, errStoreDown
}
func (brokenBackend) HDel(context.Context, string, ...string) error { return errStoreDown }
func (brokenBackend) Ping(context.Context) error                    { return errStoreDown }
func (brokenBackend) Close() error                                  { return nil }

func bufferLogger() (*bytes.Buffer, logging.Logger) {
	var buf bytes.Buffer
	return &buf, logging.New(logging.Options{Level: "debug", Format: "json", Output: &buf})
}
