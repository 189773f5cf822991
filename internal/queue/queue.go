// Package queue provides the Redis list-backed task queue feeding the
// background reconciler. Like the cache tier, an unreachable Redis yields an
// explicitly unavailable queue, not errors at every call site.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Task types understood by the reconciler.
const (
	TaskValidateKubeconfigs = "validate_kubeconfigs"
	TaskCleanup             = "cleanup"
)

// Message is one queued task.
type Message struct {
	Type string `json:"type"`
}

// Queue is a Redis list used as a FIFO task queue (LPUSH/BRPOP).
type Queue struct {
	rdb       *redis.Client
	name      string
	available bool
	log       *slog.Logger
}

// New connects to Redis at addr. An empty addr or failed ping yields an
// unavailable queue.
func New(addr, password string, db int, name string, log *slog.Logger) *Queue {
	q := &Queue{name: name, log: log}
	if addr == "" {
		log.Info("task queue disabled: no redis address configured")
		return q
	}
	q.rdb = redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := q.rdb.Ping(ctx).Err(); err != nil {
		log.Warn("task queue unavailable: redis ping failed", "addr", addr, "error", err)
		return q
	}
	q.available = true
	log.Info("task queue connection established", "addr", addr, "queue", name)
	return q
}

// Available reports whether the queue is usable.
func (q *Queue) Available() bool {
	return q.available
}

// Publish pushes a message onto the queue.
func (q *Queue) Publish(ctx context.Context, msg Message) error {
	if !q.available {
		return fmt.Errorf("task queue unavailable")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	q.log.Debug("message published", "queue", q.name, "type", msg.Type)
	return nil
}

// Consume blocks up to timeout for one message. Returns (nil, nil) when the
// queue is empty or unavailable.
func (q *Queue) Consume(ctx context.Context, timeout time.Duration) (*Message, error) {
	if !q.available {
		return nil, nil
	}
	res, err := q.rdb.BRPop(ctx, timeout, q.name).Result()
	if err != nil {
		if err == redis.Nil || ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to consume message: %w", err)
	}
	// BRPOP returns [queue, value]
	if len(res) != 2 {
		return nil, nil
	}
	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	q.log.Debug("message consumed", "queue", q.name, "type", msg.Type)
	return &msg, nil
}

// Close releases the underlying connection.
func (q *Queue) Close() error {
	if q.rdb == nil {
		return nil
	}
	return q.rdb.Close()
}
