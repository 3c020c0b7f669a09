package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/blog-service/internal/domain"
)

// IssueLimiter throttles how often credential tokens are issued for one email.
type IssueLimiter interface {
	Allow(ctx context.Context, kind domain.TokenKind, email string) (bool, error)
}

// NoopIssueLimiter allows every request.
type NoopIssueLimiter struct{}

// Allow always reports true.
func (NoopIssueLimiter) Allow(context.Context, domain.TokenKind, string) (bool, error) {
	return true, nil
}

// RedisIssueLimiter counts requests per kind and email in a fixed window.
type RedisIssueLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedisIssueLimiter returns a limiter allowing limit requests per window.
func NewRedisIssueLimiter(client *redis.Client, limit int, window time.Duration) *RedisIssueLimiter {
	return &RedisIssueLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "blog:issue",
	}
}

// Allow increments the window counter and reports whether it is still
// within the limit. The window starts with the first request. The counter is
// created with its expiry and incremented in one MULTI, so a key can never
// outlive its window.
func (l *RedisIssueLimiter) Allow(ctx context.Context, kind domain.TokenKind, email string) (bool, error) {
	key := fmt.Sprintf("%s:%s:%s", l.prefix, kind, strings.ToLower(strings.TrimSpace(email)))

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, l.window)
		incr = pipe.Incr(ctx, key)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("issue limiter: %w", err)
	}
	return incr.Val() <= int64(l.limit), nil
}
