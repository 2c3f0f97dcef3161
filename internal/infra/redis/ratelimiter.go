package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/newsletter-dispatch/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "newsletter:ratelimit"
	backoffStep   = 20 * time.Millisecond
	backoffMax    = 100 * time.Millisecond
	windowSeconds = 1
)

// INCR + EXPIRE in one round trip; the first hit of a window sets its TTL.
var fixedWindowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*ProviderRateLimiter)(nil)

// ProviderRateLimiter is a fixed one-second window shared by every instance
// that talks to the same email provider account.
type ProviderRateLimiter struct {
	client      *goredis.Client
	limitPerSec int64
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewProviderRateLimiter(client *goredis.Client, limitPerSec int) (*ProviderRateLimiter, error) {
	return newProviderRateLimiter(client, int64(limitPerSec), time.Now, sleepWithContext)
}

func newProviderRateLimiter(
	client *goredis.Client,
	limitPerSec int64,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*ProviderRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limitPerSec <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", limitPerSec)
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &ProviderRateLimiter{
		client:      client,
		limitPerSec: limitPerSec,
		now:         nowFn,
		sleep:       sleepFn,
	}, nil
}

func (r *ProviderRateLimiter) Limit() int64 {
	return r.limitPerSec
}

func (r *ProviderRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r == nil || r.client == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	normalized := strings.ToLower(strings.TrimSpace(key))
	if normalized == "" {
		return false, fmt.Errorf("rate limit key is required")
	}

	windowKey := fmt.Sprintf("%s:%s:%d", keyPrefix, normalized, r.now().UTC().Unix())
	result, err := fixedWindowScript.Run(ctx, r.client, []string{windowKey}, r.limitPerSec, windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	return result == 1, nil
}

// Wait blocks until a slot in the current window is free or ctx ends.
func (r *ProviderRateLimiter) Wait(ctx context.Context, key string) error {
	backoff := backoffStep
	for {
		allowed, err := r.Allow(ctx, key)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := r.sleep(ctx, backoff); err != nil {
			return err
		}

		backoff = min(backoff+backoffStep, backoffMax)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
