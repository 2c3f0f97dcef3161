package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const defaultRequeueDelay = time.Second

// settlement is what the consumer tells the broker about one delivery.
type settlement int

const (
	settleAck settlement = iota
	// settleRetry puts the delivery back on the queue once.
	settleRetry
	// settleDeadLetter routes a delivery that already failed a retry to the DLQ.
	settleDeadLetter
	// settleDiscard routes an unreadable delivery to the DLQ without retrying.
	settleDiscard
)

func (s settlement) String() string {
	switch s {
	case settleAck:
		return "ack"
	case settleRetry:
		return "retry"
	case settleDeadLetter:
		return "dead_letter"
	case settleDiscard:
		return "discard"
	default:
		return "unknown"
	}
}

// RabbitMQConsumer drains a work queue. A chunk whose handler fails is
// retried once after requeueDelay; if the redelivery fails too it is
// dead-lettered instead of spinning on the queue.
type RabbitMQConsumer struct {
	broker       *Broker
	prefetch     int
	requeueDelay time.Duration
	logger       *zap.Logger
}

func NewRabbitMQConsumer(broker *Broker, prefetch int, logger *zap.Logger) *RabbitMQConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		broker:       broker,
		prefetch:     max(prefetch, 1),
		requeueDelay: defaultRequeueDelay,
		logger:       logger,
	}
}

func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler MessageHandler) error {
	if c == nil || c.broker == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	wait := reconnectBackoff
	for {
		err := c.consumeOnce(ctx, queue, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			wait = reconnectBackoff
			continue
		}

		c.logger.Warn("consumer stopped, resubscribing",
			zap.Error(err),
			zap.String("queue", queue),
			zap.Duration("retryIn", wait),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		wait = nextBackoff(wait)
	}
}

func (c *RabbitMQConsumer) consumeOnce(ctx context.Context, queue string, handler MessageHandler) error {
	ch, err := c.broker.openChannel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck // best-effort channel close

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos on %q: %w", queue, err)
	}

	const (
		autoAck   = false
		exclusive = false
		noLocal   = false
		noWait    = false
	)
	deliveries, err := ch.Consume(queue, "", autoAck, exclusive, noLocal, noWait, nil)
	if err != nil {
		return fmt.Errorf("subscribe to %q: %w", queue, err)
	}
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			return nil
		case amqpErr := <-closed:
			if amqpErr != nil {
				return fmt.Errorf("channel closed: %w", amqpErr)
			}
			return fmt.Errorf("channel closed")
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery stream for %q ended", queue)
			}
			if err := c.handleDelivery(ctx, d, handler); err != nil {
				return err
			}
		}
	}
}

func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, d amqp.Delivery, handler MessageHandler) error {
	outcome := c.process(ctx, d, handler)

	if outcome == settleRetry && c.requeueDelay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(c.requeueDelay):
		}
	}

	if err := settle(d, outcome); err != nil {
		return fmt.Errorf("settle delivery %d as %s: %w", d.DeliveryTag, outcome, err)
	}
	return nil
}

func (c *RabbitMQConsumer) process(ctx context.Context, d amqp.Delivery, handler MessageHandler) settlement {
	logger := c.logger.With(
		zap.String("messageId", d.MessageId),
		zap.Bool("redelivered", d.Redelivered),
	)

	var msg DeliveryResultMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		logger.Warn("discarding unreadable delivery result", zap.Error(err))
		return settleDiscard
	}
	if err := msg.Validate(); err != nil {
		logger.Warn("discarding invalid delivery result",
			zap.Error(err),
			zap.String("chunkId", msg.ChunkID),
			zap.String("campaignSlug", msg.CampaignSlug),
		)
		return settleDiscard
	}

	if err := handler(ctx, msg); err != nil {
		if d.Redelivered {
			logger.Error("delivery result failed again, dead-lettering",
				zap.Error(err),
				zap.String("chunkId", msg.ChunkID),
				zap.String("dlq", DLQName(d.RoutingKey)),
			)
			return settleDeadLetter
		}
		logger.Warn("delivery result failed, retrying once",
			zap.Error(err),
			zap.String("chunkId", msg.ChunkID),
		)
		return settleRetry
	}

	return settleAck
}

func settle(d amqp.Delivery, outcome settlement) error {
	switch outcome {
	case settleAck:
		return d.Ack(false)
	case settleRetry:
		return d.Nack(false, true)
	case settleDeadLetter:
		return d.Nack(false, false)
	default:
		return d.Reject(false)
	}
}

// Close is a no-op; the broker connection is closed by its owner.
func (c *RabbitMQConsumer) Close() error {
	return nil
}
