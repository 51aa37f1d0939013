package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/imamik/daas/internal/model"
)

// DefaultStream is the Redis stream events are appended to.
const DefaultStream = "daas:status"

// RedisStreamPublisher appends events to a Redis stream with XADD. Each
// entry carries the JSON encoded event under "data", plus the event kind and
// a unix timestamp for consumers that filter without decoding.
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// RedisOption configures a RedisStreamPublisher.
type RedisOption func(*RedisStreamPublisher)

// WithStream overrides the target stream.
func WithStream(stream string) RedisOption {
	return func(p *RedisStreamPublisher) {
		p.stream = stream
	}
}

// WithMaxLen caps the stream length approximately. Zero leaves it unbounded.
func WithMaxLen(n int64) RedisOption {
	return func(p *RedisStreamPublisher) {
		p.maxLen = n
	}
}

// NewRedisStreamPublisher creates a publisher on an existing client.
func NewRedisStreamPublisher(client *redis.Client, opts ...RedisOption) *RedisStreamPublisher {
	p := &RedisStreamPublisher{client: client, stream: DefaultStream}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, ev model.StatusChanged) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":      string(data),
			"kind":      string(ev.EntityKind),
			"timestamp": time.Now().Unix(),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}
