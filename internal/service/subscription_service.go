package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"github.com/kursadbilgin/newsletter-dispatch/internal/mailtmpl"
	"github.com/kursadbilgin/newsletter-dispatch/internal/observability"
	"github.com/kursadbilgin/newsletter-dispatch/internal/provider"
	"github.com/kursadbilgin/newsletter-dispatch/internal/repository"
	"github.com/kursadbilgin/newsletter-dispatch/internal/token"
	"go.uber.org/zap"
)

type SubscribeRequest struct {
	Email     string
	FirstName *string
	LastName  *string
}

type WelcomeRequest struct {
	Email     string
	FirstName *string
	// Token is the subscriber's unsubscribe token when known.
	Token string
}

type SubscriptionService struct {
	subscribers repository.SubscriberRepository
	tokens      token.Issuer
	renderer    *mailtmpl.Renderer
	mailer      mailer
	from        string
	logger      *zap.Logger
	tasks       backgroundTasks
}

func NewSubscriptionService(
	subscribers repository.SubscriberRepository,
	tokens token.Issuer,
	emailProvider provider.Provider,
	renderer *mailtmpl.Renderer,
	from string,
	logger *zap.Logger,
) (*SubscriptionService, error) {
	if subscribers == nil {
		return nil, fmt.Errorf("subscriber repository is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if emailProvider == nil {
		return nil, fmt.Errorf("email provider is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if err := domain.ValidateEmail(domain.NormalizeEmail(from)); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SubscriptionService{
		subscribers: subscribers,
		tokens:      tokens,
		renderer:    renderer,
		mailer:      newMailer(emailProvider),
		from:        from,
		logger:      logger,
	}, nil
}

func (s *SubscriptionService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.mailer.metrics = metrics
}

// Subscribe stores a new active subscriber and queues the welcome email.
// An address that is already stored, in any case or spacing, yields
// domain.ErrConflict and leaves the existing row untouched.
func (s *SubscriptionService) Subscribe(ctx context.Context, req SubscribeRequest) (*domain.Subscriber, error) {
	email := domain.NormalizeEmail(req.Email)
	if err := domain.ValidateEmail(email); err != nil {
		return nil, err
	}

	unsubscribeToken, err := s.tokens.Issue()
	if err != nil {
		return nil, fmt.Errorf("failed to issue unsubscribe token: %w", err)
	}

	subscriber := &domain.Subscriber{
		Email:            email,
		FirstName:        domain.NormalizeOptionalString(req.FirstName),
		LastName:         domain.NormalizeOptionalString(req.LastName),
		UnsubscribeToken: unsubscribeToken,
		IsActive:         true,
	}
	if err := subscriber.Validate(); err != nil {
		return nil, err
	}

	logger := observability.WithContextLogger(s.logger, ctx)

	if err := s.subscribers.Create(ctx, subscriber); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to store subscriber: %w", err)
	}

	logger.Info("subscriber created", zap.String("subscriberId", subscriber.ID))

	welcome := WelcomeRequest{
		Email:     subscriber.Email,
		FirstName: subscriber.FirstName,
		Token:     subscriber.UnsubscribeToken,
	}
	bgCtx := context.WithoutCancel(ctx)
	s.tasks.Go(func() {
		if _, err := s.SendWelcome(bgCtx, welcome); err != nil {
			logger.Warn("failed to send welcome email",
				zap.String("subscriberId", subscriber.ID),
				zap.Error(err),
			)
		}
	})

	return subscriber, nil
}

// Unsubscribe deactivates the subscriber owning token and returns its email.
// Repeating it for an already inactive subscriber succeeds.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, unsubscribeToken string) (string, error) {
	unsubscribeToken = strings.TrimSpace(unsubscribeToken)
	if unsubscribeToken == "" {
		return "", fmt.Errorf("%w: token is required", domain.ErrValidation)
	}

	email, err := s.subscribers.DeactivateByToken(ctx, unsubscribeToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("%w: invalid unsubscribe token", domain.ErrNotFound)
		}
		return "", fmt.Errorf("failed to deactivate subscriber: %w", err)
	}

	observability.WithContextLogger(s.logger, ctx).Info("subscriber unsubscribed")
	return email, nil
}

// SendWelcome sends the welcome email and returns the provider message id.
func (s *SubscriptionService) SendWelcome(ctx context.Context, req WelcomeRequest) (string, error) {
	email := domain.NormalizeEmail(req.Email)
	if err := domain.ValidateEmail(email); err != nil {
		return "", err
	}

	unsubscribeToken := strings.TrimSpace(req.Token)
	if unsubscribeToken == "" {
		unsubscribeToken = s.lookupToken(ctx, email)
	}

	msg, err := s.renderer.Welcome(domain.NormalizeOptionalString(req.FirstName), unsubscribeToken)
	if err != nil {
		return "", fmt.Errorf("failed to render welcome email: %w", err)
	}

	messageID, err := s.mailer.send(ctx, observability.KindWelcome, domain.Email{
		From:    s.from,
		To:      []string{email},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return "", fmt.Errorf("failed to send welcome email: %w", err)
	}

	return messageID, nil
}

// lookupToken finds the stored unsubscribe token for email. An unknown
// address or a failed lookup yields "", which renders the welcome without an
// unsubscribe link.
func (s *SubscriptionService) lookupToken(ctx context.Context, email string) string {
	subscriber, err := s.subscribers.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			observability.WithContextLogger(s.logger, ctx).Warn("unsubscribe token lookup failed", zap.Error(err))
		}
		return ""
	}
	return subscriber.UnsubscribeToken
}

// Wait blocks until queued welcome emails are sent or ctx ends.
func (s *SubscriptionService) Wait(ctx context.Context) error {
	return s.tasks.Wait(ctx)
}
