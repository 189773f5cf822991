// Package cache provides the fast expiring tier for analysis results: a
// Redis client handle with an explicit availability state, plus the
// owner-scoped key builder. The durable store stays authoritative; every
// operation here is a best-effort optimization.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps a Redis connection. A client constructed against an
// unreachable or unconfigured Redis is explicitly unavailable: reads miss,
// writes are dropped, and callers never see an error from it.
type Client struct {
	rdb       *redis.Client
	available bool
	log       *slog.Logger
}

// NewClient connects to Redis at addr. An empty addr, or a failed ping,
// yields an unavailable client rather than an error.
func NewClient(addr, password string, db int, log *slog.Logger) *Client {
	c := &Client{log: log}
	if addr == "" {
		log.Info("cache disabled: no redis address configured")
		return c
	}
	c.rdb = redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		log.Warn("cache unavailable: redis ping failed", "addr", addr, "error", err)
		return c
	}
	c.available = true
	log.Info("cache connection established", "addr", addr)
	return c
}

// Available reports whether the fast tier is usable.
func (c *Client) Available() bool {
	return c.available
}

// Key builds an owner-scoped cache key.
func Key(userID, key string) string {
	return fmt.Sprintf("user:%s:%s", userID, key)
}

// Get returns the value for key, or ok=false on miss, expiry, or
// unavailability.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool) {
	if !c.available {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Error("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

// Set stores value under key with the given expiry. Failures are logged and
// absorbed.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if !c.available {
		return
	}
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.Error("cache set failed", "key", key, "error", err)
	}
}

// Delete removes key. Failures are logged and absorbed.
func (c *Client) Delete(ctx context.Context, key string) {
	if !c.available {
		return
	}
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		c.log.Error("cache delete failed", "key", key, "error", err)
	}
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
