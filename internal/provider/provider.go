package provider

import (
	"context"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
)

// Provider is the outbound email delivery port. One call is one attempted message.
type Provider interface {
	Send(ctx context.Context, email domain.Email) (*SendResult, error)
}

// SendResult stores provider call metadata for audit and persistence.
type SendResult struct {
	StatusCode int
	MessageID  string
}
