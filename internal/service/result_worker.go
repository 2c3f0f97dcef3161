package service

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/newsletter-dispatch/internal/observability"
	"github.com/kursadbilgin/newsletter-dispatch/internal/queue"
	"github.com/kursadbilgin/newsletter-dispatch/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// ResultWorker drains the results queue into the delivery attempt store.
type ResultWorker struct {
	consumer    queue.Consumer
	attempts    repository.DeliveryAttemptRepository
	concurrency int
	logger      *zap.Logger
	metrics     *observability.Metrics
}

func NewResultWorker(
	consumer queue.Consumer,
	attempts repository.DeliveryAttemptRepository,
	concurrency int,
	logger *zap.Logger,
) (*ResultWorker, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("delivery attempt repository is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ResultWorker{
		consumer:    consumer,
		attempts:    attempts,
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

func (w *ResultWorker) SetMetrics(metrics *observability.Metrics) {
	if w == nil {
		return
	}
	w.metrics = metrics
}

// Start runs the consumers until ctx is canceled.
func (w *ResultWorker) Start(ctx context.Context) error {
	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			w.logger.Info("result worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.DeliveryResultsQueue),
			)

			if err := w.consumer.Consume(groupCtx, queue.DeliveryResultsQueue, w.handle); err != nil {
				w.logger.Error("result worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			w.logger.Info("result worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (w *ResultWorker) handle(ctx context.Context, msg queue.DeliveryResultMessage) error {
	if msg.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	}

	err := w.attempts.CreateBatch(ctx, msg.DomainAttempts())
	w.metrics.IncResultChunk(observability.SinkDatabase, err == nil)
	if err != nil {
		observability.WithContextLogger(w.logger, ctx).Error("failed to store delivery results",
			zap.String("chunkId", msg.ChunkID),
			zap.String("campaignSlug", msg.CampaignSlug),
			zap.Error(err),
		)
		return fmt.Errorf("failed to store delivery results: %w", err)
	}
	return nil
}
