package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"github.com/kursadbilgin/newsletter-dispatch/internal/mailtmpl"
	"github.com/kursadbilgin/newsletter-dispatch/internal/observability"
	"github.com/kursadbilgin/newsletter-dispatch/internal/provider"
	"github.com/kursadbilgin/newsletter-dispatch/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBatchSize  = 50
	DefaultBatchDelay = time.Second
)

// ResultSink receives the per-recipient outcomes of a dispatch. It must not
// block the caller on persistence.
type ResultSink interface {
	Record(ctx context.Context, campaignSlug string, attempts []domain.DeliveryAttempt)
}

type DispatcherConfig struct {
	From       string
	BatchSize  int
	BatchDelay time.Duration
}

// CampaignDispatcher sends one campaign to every active subscriber in
// fixed-size groups. Sends inside a group run concurrently; groups run in
// order with a pause between them.
type CampaignDispatcher struct {
	subscribers repository.SubscriberRepository
	renderer    *mailtmpl.Renderer
	results     ResultSink
	mailer      mailer
	cfg         DispatcherConfig
	logger      *zap.Logger
	pause       func(ctx context.Context, d time.Duration) error
}

func NewCampaignDispatcher(
	subscribers repository.SubscriberRepository,
	emailProvider provider.Provider,
	renderer *mailtmpl.Renderer,
	results ResultSink,
	cfg DispatcherConfig,
	logger *zap.Logger,
) (*CampaignDispatcher, error) {
	if subscribers == nil {
		return nil, fmt.Errorf("subscriber repository is required")
	}
	if emailProvider == nil {
		return nil, fmt.Errorf("email provider is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if results == nil {
		return nil, fmt.Errorf("result sink is required")
	}
	if err := domain.ValidateEmail(domain.NormalizeEmail(cfg.From)); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = DefaultBatchDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CampaignDispatcher{
		subscribers: subscribers,
		renderer:    renderer,
		results:     results,
		mailer:      newMailer(emailProvider),
		cfg:         cfg,
		logger:      logger,
		pause:       sleepWithContext,
	}, nil
}

func (d *CampaignDispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.mailer.metrics = metrics
}

// Dispatch sends the campaign and returns the tally once every group has
// settled. If ctx ends between groups, the remaining recipients are counted
// as skipped and the partial summary is returned with ctx's error.
func (d *CampaignDispatcher) Dispatch(ctx context.Context, campaign domain.Campaign) (domain.DispatchSummary, error) {
	campaign.Normalize()
	if err := campaign.Validate(); err != nil {
		return domain.DispatchSummary{}, err
	}

	logger := observability.WithContextLogger(d.logger, ctx).With(zap.String("campaignSlug", campaign.Slug))

	recipients, err := d.subscribers.ListActive(ctx)
	if err != nil {
		return domain.DispatchSummary{}, fmt.Errorf("failed to list active subscribers: %w", err)
	}

	summary := domain.DispatchSummary{Total: len(recipients)}
	if len(recipients) == 0 {
		logger.Info("no active subscribers, nothing to send")
		return summary, nil
	}

	groups := chunk(recipients, d.cfg.BatchSize)
	attempts := make([]domain.DeliveryAttempt, 0, len(recipients))

	var stopErr error
	for i, group := range groups {
		if i > 0 {
			if err := d.pause(ctx, d.cfg.BatchDelay); err != nil {
				stopErr = err
				break
			}
		}
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}

		attempts = append(attempts, d.sendGroup(ctx, campaign, group)...)
		d.mailer.metrics.IncCampaignBatch()

		logger.Debug("campaign group settled",
			zap.Int("group", i+1),
			zap.Int("groups", len(groups)),
			zap.Int("size", len(group)),
		)
	}

	for _, a := range attempts {
		if a.Success {
			summary.Sent++
		} else {
			summary.Failed++
		}
	}
	summary.Skipped = summary.Total - len(attempts)

	if len(attempts) > 0 {
		d.results.Record(ctx, campaign.Slug, attempts)
	}

	fields := []zap.Field{
		zap.Int("total", summary.Total),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	}
	if stopErr != nil {
		logger.Warn("campaign dispatch interrupted", append(fields, zap.Error(stopErr))...)
		return summary, fmt.Errorf("campaign dispatch interrupted: %w", stopErr)
	}

	logger.Info("campaign dispatched", fields...)
	return summary, nil
}

func (d *CampaignDispatcher) sendGroup(ctx context.Context, campaign domain.Campaign, group []domain.Subscriber) []domain.DeliveryAttempt {
	results := make([]domain.DeliveryAttempt, len(group))

	// A failed send never cancels its siblings, so no errgroup context.
	var g errgroup.Group
	for i, subscriber := range group {
		i, subscriber := i, subscriber
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("recovered panic while sending campaign email",
						zap.String("campaignSlug", campaign.Slug),
						zap.String("subscriberId", subscriber.ID),
						zap.Any("panic", r),
						zap.Stack("stack"),
					)
					results[i] = domain.NewDeliveryAttempt(campaign.Slug, subscriber, "", fmt.Errorf("panic while sending: %v", r))
					results[i].CreatedAt = d.mailer.now().UTC()
				}
			}()
			results[i] = d.sendOne(ctx, campaign, subscriber)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (d *CampaignDispatcher) sendOne(ctx context.Context, campaign domain.Campaign, subscriber domain.Subscriber) domain.DeliveryAttempt {
	var attempt domain.DeliveryAttempt

	msg, err := d.renderer.Campaign(campaign, subscriber)
	if err != nil {
		attempt = domain.NewDeliveryAttempt(campaign.Slug, subscriber, "", fmt.Errorf("failed to render message: %w", err))
	} else {
		messageID, sendErr := d.mailer.send(ctx, observability.KindCampaign, domain.Email{
			From:    d.cfg.From,
			To:      []string{subscriber.Email},
			Subject: msg.Subject,
			HTML:    msg.HTML,
		})
		attempt = domain.NewDeliveryAttempt(campaign.Slug, subscriber, messageID, sendErr)
	}

	attempt.CreatedAt = d.mailer.now().UTC()
	return attempt
}
