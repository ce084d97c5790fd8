package fallback

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis persists last-good payloads across agent restarts.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(addr, password string, ttl time.Duration, logger *slog.Logger) *Redis {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &Redis{client: c, prefix: "agent:lastgood:", ttl: ttl, logger: logger}
}

func (r *Redis) Get(ctx context.Context, op string) ([]byte, bool) {
	b, err := r.client.Get(ctx, r.prefix+op).Bytes()
	if err != nil {
		if err != redis.Nil && r.logger != nil {
			r.logger.Warn("fallback read failed", "op", op, "error", err)
		}
		return nil, false
	}
	return b, true
}

func (r *Redis) Put(ctx context.Context, op string, payload []byte) {
	if err := r.client.Set(ctx, r.prefix+op, payload, r.ttl).Err(); err != nil && r.logger != nil {
		r.logger.Warn("fallback write failed", "op", op, "error", err)
	}
}

func (r *Redis) Close() error { return r.client.Close() }
