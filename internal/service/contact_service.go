package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"github.com/kursadbilgin/newsletter-dispatch/internal/mailtmpl"
	"github.com/kursadbilgin/newsletter-dispatch/internal/observability"
	"github.com/kursadbilgin/newsletter-dispatch/internal/provider"
	"github.com/kursadbilgin/newsletter-dispatch/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type ContactConfig struct {
	From       string
	AdminEmail string
}

// ContactService stores contact form submissions and relays them by email:
// a confirmation to the visitor and a notification to the site owner.
type ContactService struct {
	contacts repository.ContactRepository
	renderer *mailtmpl.Renderer
	mailer   mailer
	cfg      ContactConfig
	logger   *zap.Logger
}

func NewContactService(
	contacts repository.ContactRepository,
	emailProvider provider.Provider,
	renderer *mailtmpl.Renderer,
	cfg ContactConfig,
	logger *zap.Logger,
) (*ContactService, error) {
	if contacts == nil {
		return nil, fmt.Errorf("contact repository is required")
	}
	if emailProvider == nil {
		return nil, fmt.Errorf("email provider is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if err := domain.ValidateEmail(domain.NormalizeEmail(cfg.From)); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := domain.ValidateEmail(domain.NormalizeEmail(cfg.AdminEmail)); err != nil {
		return nil, fmt.Errorf("invalid admin address: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ContactService{
		contacts: contacts,
		renderer: renderer,
		mailer:   newMailer(emailProvider),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

func (s *ContactService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.mailer.metrics = metrics
}

// Submit returns how many of the two emails the provider accepted. The
// submission is stored before any email is sent.
func (s *ContactService) Submit(ctx context.Context, submission domain.ContactSubmission) (int, error) {
	submission.Normalize()
	if err := submission.Validate(); err != nil {
		return 0, err
	}

	if err := s.contacts.Create(ctx, &submission); err != nil {
		return 0, fmt.Errorf("failed to store contact submission: %w", err)
	}

	confirmation, err := s.renderer.ContactConfirmation(submission)
	if err != nil {
		return 0, fmt.Errorf("failed to render confirmation email: %w", err)
	}
	notification, err := s.renderer.ContactNotification(submission)
	if err != nil {
		return 0, fmt.Errorf("failed to render notification email: %w", err)
	}

	emails := []struct {
		kind  string
		email domain.Email
	}{
		{
			kind: observability.KindContactConfirmation,
			email: domain.Email{
				From:    s.cfg.From,
				To:      []string{submission.Email},
				Subject: confirmation.Subject,
				HTML:    confirmation.HTML,
			},
		},
		{
			kind: observability.KindContactNotification,
			email: domain.Email{
				From:    s.cfg.From,
				To:      []string{s.cfg.AdminEmail},
				ReplyTo: submission.Email,
				Subject: notification.Subject,
				HTML:    notification.HTML,
			},
		},
	}

	var (
		mu     sync.Mutex
		sent   int
		result *multierror.Error
		g      errgroup.Group
	)
	for _, e := range emails {
		e := e
		g.Go(func() error {
			_, sendErr := s.mailer.send(ctx, e.kind, e.email)

			mu.Lock()
			defer mu.Unlock()
			if sendErr != nil {
				result = multierror.Append(result, fmt.Errorf("%s: %w", e.kind, sendErr))
				return nil
			}
			sent++
			return nil
		})
	}
	_ = g.Wait()

	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("submissionId", submission.ID))
	if err := result.ErrorOrNil(); err != nil {
		logger.Warn("contact relay incomplete", zap.Int("sent", sent), zap.Error(err))
		return sent, fmt.Errorf("%w: %d of %d contact emails failed: %w", domain.ErrDelivery, len(emails)-sent, len(emails), err)
	}

	logger.Info("contact submission relayed", zap.String("projectType", submission.ProjectType))
	return sent, nil
}
