package queue

import (
	"context"
	"fmt"
)

// Publisher hands delivery result chunks to the broker.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg DeliveryResultMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg DeliveryResultMessage) error

// Consumer consumes delivery result messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

// DeliveryResultsQueue carries chunks of per-recipient campaign outcomes.
const DeliveryResultsQueue = "delivery_results"

var workQueues = []string{
	DeliveryResultsQueue,
}

// DLQName returns the dead-letter queue for a work queue, e.g. dlq.delivery_results.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}

func WorkQueueNames() []string {
	return append([]string(nil), workQueues...)
}

func DLQNames() []string {
	queues := make([]string, 0, len(workQueues))
	for _, q := range workQueues {
		queues = append(queues, DLQName(q))
	}
	return queues
}
