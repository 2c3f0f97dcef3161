package ratelimit

import "context"

// RateLimiter caps outbound provider calls per key across all instances.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Wait(ctx context.Context, key string) error
}
