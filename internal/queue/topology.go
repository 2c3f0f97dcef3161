package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const dlxExchangeName = "newsletter.dlx"

// topologyDeclarer is the subset of *amqp.Channel used to declare queues.
type topologyDeclarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// declareTopology makes every work queue durable and dead-lettered: rejected
// or exhausted messages are routed through the DLX into dlq.<queue>.
func declareTopology(ch topologyDeclarer, queues []string) error {
	const (
		durable    = true
		autoDelete = false
		internal   = false
		exclusive  = false
		noWait     = false
	)

	if err := ch.ExchangeDeclare(dlxExchangeName, amqp.ExchangeDirect, durable, autoDelete, internal, noWait, nil); err != nil {
		return fmt.Errorf("declare exchange %q: %w", dlxExchangeName, err)
	}

	for _, work := range queues {
		dead := DLQName(work)

		if _, err := ch.QueueDeclare(dead, durable, autoDelete, exclusive, noWait, nil); err != nil {
			return fmt.Errorf("declare queue %q: %w", dead, err)
		}
		// The DLX routes by the original queue name.
		if err := ch.QueueBind(dead, work, dlxExchangeName, noWait, nil); err != nil {
			return fmt.Errorf("bind %q to %q: %w", dead, dlxExchangeName, err)
		}
		if _, err := ch.QueueDeclare(work, durable, autoDelete, exclusive, noWait, queueArgs(work)); err != nil {
			return fmt.Errorf("declare queue %q: %w", work, err)
		}
	}

	return nil
}

func queueArgs(queueName string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    dlxExchangeName,
		"x-dead-letter-routing-key": queueName,
	}
}
