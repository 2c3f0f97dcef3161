package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"github.com/kursadbilgin/newsletter-dispatch/internal/observability"
	"github.com/kursadbilgin/newsletter-dispatch/internal/queue"
	"github.com/kursadbilgin/newsletter-dispatch/internal/repository"
	"go.uber.org/zap"
)

const DefaultResultChunkSize = 100

var _ ResultSink = (*ResultRecorder)(nil)

// ResultRecorder persists dispatch outcomes off the request path. Chunks go
// to the results queue when a publisher is set; a chunk that cannot be
// published is written to the store directly instead.
type ResultRecorder struct {
	publisher queue.Publisher
	attempts  repository.DeliveryAttemptRepository
	chunkSize int
	logger    *zap.Logger
	metrics   *observability.Metrics
	tasks     backgroundTasks
	newID     func() string
}

func NewResultRecorder(
	publisher queue.Publisher,
	attempts repository.DeliveryAttemptRepository,
	chunkSize int,
	logger *zap.Logger,
) (*ResultRecorder, error) {
	if attempts == nil {
		return nil, fmt.Errorf("delivery attempt repository is required")
	}
	if chunkSize < 1 {
		chunkSize = DefaultResultChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ResultRecorder{
		publisher: publisher,
		attempts:  attempts,
		chunkSize: chunkSize,
		logger:    logger,
		newID:     uuid.NewString,
	}, nil
}

func (r *ResultRecorder) SetMetrics(metrics *observability.Metrics) {
	if r == nil {
		return
	}
	r.metrics = metrics
}

// Record returns immediately. Persistence errors are logged, never returned.
func (r *ResultRecorder) Record(ctx context.Context, campaignSlug string, attempts []domain.DeliveryAttempt) {
	if len(attempts) == 0 {
		return
	}

	owned := make([]domain.DeliveryAttempt, len(attempts))
	copy(owned, attempts)
	for i := range owned {
		if owned[i].ID == "" {
			owned[i].ID = r.newID()
		}
	}

	bgCtx := context.WithoutCancel(ctx)
	r.tasks.Go(func() {
		r.persist(bgCtx, campaignSlug, owned)
	})
}

// Wait blocks until every pending Record has finished or ctx ends.
func (r *ResultRecorder) Wait(ctx context.Context) error {
	return r.tasks.Wait(ctx)
}

func (r *ResultRecorder) persist(ctx context.Context, campaignSlug string, attempts []domain.DeliveryAttempt) {
	logger := observability.WithContextLogger(r.logger, ctx).With(zap.String("campaignSlug", campaignSlug))
	correlationID, _ := observability.CorrelationIDFromContext(ctx)

	for i, part := range chunk(attempts, r.chunkSize) {
		if r.publisher != nil {
			msg := queue.NewDeliveryResultMessage(r.newID(), correlationID, campaignSlug, part)
			err := r.publisher.Publish(ctx, queue.DeliveryResultsQueue, msg)
			r.metrics.IncResultChunk(observability.SinkQueue, err == nil)
			if err == nil {
				continue
			}
			logger.Warn("failed to publish delivery results, writing directly",
				zap.Int("chunk", i+1),
				zap.Int("size", len(part)),
				zap.Error(err),
			)
		}

		err := r.attempts.CreateBatch(ctx, part)
		r.metrics.IncResultChunk(observability.SinkDatabase, err == nil)
		if err != nil {
			logger.Error("failed to persist delivery results",
				zap.Int("chunk", i+1),
				zap.Int("size", len(part)),
				zap.Error(err),
			)
		}
	}
}
