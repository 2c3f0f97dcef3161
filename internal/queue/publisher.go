package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultConfirmTimeout = 5 * time.Second
	deliveryResultType    = "delivery_result"
)

var (
	ErrPublishNacked  = errors.New("broker nacked the message")
	ErrConfirmTimeout = errors.New("timed out waiting for publish confirm")
)

// confirmChannel is the subset of *amqp.Channel used for confirmed publishing.
type confirmChannel interface {
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher publishes each chunk on its own confirm-mode channel and
// returns only once the broker has taken responsibility for it, so a failed
// hand-off reaches the recorder's synchronous fallback.
type RabbitMQPublisher struct {
	openChannel    func(ctx context.Context) (confirmChannel, error)
	confirmTimeout time.Duration
	now            func() time.Time
}

func NewRabbitMQPublisher(broker *Broker) *RabbitMQPublisher {
	p := &RabbitMQPublisher{
		confirmTimeout: defaultConfirmTimeout,
		now:            time.Now,
	}
	if broker != nil {
		p.openChannel = func(ctx context.Context) (confirmChannel, error) {
			ch, err := broker.openChannel(ctx)
			if err != nil {
				return nil, err
			}
			return ch, nil
		}
	}
	return p
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, queue string, msg DeliveryResultMessage) error {
	if p == nil || p.openChannel == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid delivery result message: %w", err)
	}

	publishing, err := newPublishing(msg, p.now())
	if err != nil {
		return err
	}

	ch, err := p.openChannel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck // best-effort channel close

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable publish confirms: %w", err)
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	if err := ch.PublishWithContext(ctx, "", queue, false, false, publishing); err != nil {
		return fmt.Errorf("publish chunk %s to %q: %w", msg.ChunkID, queue, err)
	}

	return p.awaitConfirm(ctx, confirms, msg.ChunkID)
}

func (p *RabbitMQPublisher) awaitConfirm(ctx context.Context, confirms <-chan amqp.Confirmation, chunkID string) error {
	timer := time.NewTimer(p.confirmTimeout)
	defer timer.Stop()

	select {
	case confirm, ok := <-confirms:
		if !ok {
			return fmt.Errorf("chunk %s: channel closed before confirm", chunkID)
		}
		if !confirm.Ack {
			return fmt.Errorf("chunk %s: %w", chunkID, ErrPublishNacked)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("chunk %s: %w", chunkID, ErrConfirmTimeout)
	case <-ctx.Done():
		return fmt.Errorf("chunk %s: %w", chunkID, ctx.Err())
	}
}

// newPublishing uses the chunk id as MessageId so redeliveries are traceable
// to the write that deduplicates them.
func newPublishing(msg DeliveryResultMessage, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal delivery result message: %w", err)
	}

	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     now.UTC(),
		MessageId:     msg.ChunkID,
		CorrelationId: msg.CorrelationID,
		Type:          deliveryResultType,
		Headers: amqp.Table{
			"campaign_slug": msg.CampaignSlug,
			"attempt_count": int32(len(msg.Attempts)),
		},
		Body: body,
	}, nil
}

// Close is a no-op; the broker connection is closed by its owner.
func (p *RabbitMQPublisher) Close() error {
	return nil
}
