package provider

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"github.com/kursadbilgin/newsletter-dispatch/internal/ratelimit"
)

const rateLimitKey = "email"

// RateLimitedProvider waits for a shared rate limit slot before each send,
// so several service instances stay under the provider's account quota.
type RateLimitedProvider struct {
	next    Provider
	limiter ratelimit.RateLimiter
}

func NewRateLimitedProvider(next Provider, limiter ratelimit.RateLimiter) (*RateLimitedProvider, error) {
	if next == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	return &RateLimitedProvider{next: next, limiter: limiter}, nil
}

func (p *RateLimitedProvider) Send(ctx context.Context, email domain.Email) (*SendResult, error) {
	if err := p.limiter.Wait(ctx, rateLimitKey); err != nil {
		return nil, &ProviderError{
			Message:   "rate limiter wait failed",
			Transient: true,
			Cause:     err,
		}
	}
	return p.next.Send(ctx, email)
}
