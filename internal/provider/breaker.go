package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig controls when the provider circuit opens.
type BreakerConfig struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ConsecutiveFailures: 10,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    1,
	}
}

// BreakerProvider stops calling a provider that keeps failing with transient
// errors. Permanent rejections (bad address, 4xx) do not trip it.
type BreakerProvider struct {
	next    Provider
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerProvider(next Provider, cfg BreakerConfig, logger *zap.Logger) (*BreakerProvider, error) {
	if next == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultBreakerConfig()
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = defaults.ConsecutiveFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaults.OpenTimeout
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = defaults.HalfOpenRequests
	}

	settings := gobreaker.Settings{
		Name:        "email-provider",
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("email provider circuit state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &BreakerProvider{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}, nil
}

func (p *BreakerProvider) Send(ctx context.Context, email domain.Email) (*SendResult, error) {
	out, err := p.breaker.Execute(func() (interface{}, error) {
		return p.next.Send(ctx, email)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &ProviderError{
				Message:   "circuit open",
				Transient: true,
				Cause:     err,
			}
		}
		return nil, err
	}

	result, _ := out.(*SendResult)
	return result, nil
}

func (p *BreakerProvider) State() gobreaker.State {
	return p.breaker.State()
}
