package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	reconnectBackoff = time.Second
	maxBackoff       = 30 * time.Second
	dialTimeout      = 15 * time.Second
	heartbeat        = 10 * time.Second
	connectionName   = "newsletter-dispatch"
)

var ErrBrokerClosed = errors.New("rabbitmq broker is closed")

// Broker owns the AMQP connection shared by the result publisher and
// consumer. The topology is declared once per dialled connection; a dropped
// connection is redialled lazily by the next caller that needs a channel.
type Broker struct {
	url    string
	logger *zap.Logger

	connectMu sync.Mutex
	conn      atomic.Pointer[amqp.Connection]
	closed    atomic.Bool
}

func NewBroker(ctx context.Context, url string, logger *zap.Logger) (*Broker, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Broker{url: url, logger: logger}

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if _, err := b.connection(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Healthy reports whether the connection is currently open.
func (b *Broker) Healthy() bool {
	conn := b.conn.Load()
	return conn != nil && !conn.IsClosed()
}

func (b *Broker) Close() error {
	b.closed.Store(true)

	conn := b.conn.Swap(nil)
	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}

func (b *Broker) openChannel(ctx context.Context) (*amqp.Channel, error) {
	conn, err := b.connection(ctx)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err == nil {
		return ch, nil
	}

	// The connection died after it was loaded; forget it and dial once more.
	b.conn.CompareAndSwap(conn, nil)
	if conn, err = b.connection(ctx); err != nil {
		return nil, err
	}
	if ch, err = conn.Channel(); err != nil {
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	return ch, nil
}

func (b *Broker) connection(ctx context.Context) (*amqp.Connection, error) {
	if conn := b.conn.Load(); conn != nil && !conn.IsClosed() {
		return conn, nil
	}

	b.connectMu.Lock()
	defer b.connectMu.Unlock()

	if conn := b.conn.Load(); conn != nil && !conn.IsClosed() {
		return conn, nil
	}

	wait := reconnectBackoff
	for attempt := 1; ; attempt++ {
		if b.closed.Load() {
			return nil, ErrBrokerClosed
		}

		conn, err := b.dial()
		if err == nil {
			b.conn.Store(conn)
			go b.watch(conn)
			b.logger.Info("rabbitmq connected", zap.Int("attempt", attempt))
			return conn, nil
		}

		b.logger.Warn("rabbitmq dial failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("retryIn", wait),
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rabbitmq connect canceled after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(wait):
		}
		wait = nextBackoff(wait)
	}
}

func (b *Broker) dial() (*amqp.Connection, error) {
	conn, err := amqp.DialConfig(b.url, amqp.Config{
		Dial:      amqp.DefaultDial(dialTimeout),
		Heartbeat: heartbeat,
		Locale:    "en_US",
		Properties: amqp.Table{
			"connection_name": connectionName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open topology channel: %w", err)
	}
	defer ch.Close() //nolint:errcheck // topology channel is throwaway

	if err := declareTopology(ch, workQueues); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// watch clears the cached connection as soon as the broker drops it, so
// Healthy flips before anyone tries to open a channel on a dead socket.
func (b *Broker) watch(conn *amqp.Connection) {
	amqpErr, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
	b.conn.CompareAndSwap(conn, nil)

	if b.closed.Load() || !ok || amqpErr == nil {
		return
	}
	b.logger.Warn("rabbitmq connection lost",
		zap.Int("code", amqpErr.Code),
		zap.String("reason", amqpErr.Reason),
		zap.Bool("serverInitiated", amqpErr.Server),
	)
}

func nextBackoff(current time.Duration) time.Duration {
	return min(current*2, maxBackoff)
}
