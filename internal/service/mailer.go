package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"github.com/kursadbilgin/newsletter-dispatch/internal/observability"
	"github.com/kursadbilgin/newsletter-dispatch/internal/provider"
)

// mailer wraps a provider call with timing and outcome metrics.
type mailer struct {
	provider provider.Provider
	metrics  *observability.Metrics
	now      func() time.Time
}

func newMailer(p provider.Provider) mailer {
	return mailer{provider: p, now: time.Now}
}

// send returns the provider message id.
func (m *mailer) send(ctx context.Context, kind string, email domain.Email) (string, error) {
	start := m.now()
	result, err := m.provider.Send(ctx, email)
	m.metrics.ObserveEmailSendDuration(kind, m.now().Sub(start))

	if err != nil {
		m.metrics.IncEmailFailed(kind, failureReason(err))
		return "", err
	}

	m.metrics.IncEmailSent(kind)
	if result == nil {
		return "", nil
	}
	return strings.TrimSpace(result.MessageID), nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case provider.IsTransient(err):
		return "transient"
	default:
		return "permanent"
	}
}
