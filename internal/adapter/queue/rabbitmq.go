package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/ports"
	"github.com/voltx/rec-hub/pkg/config"
)

// RabbitMQQueue publishes to a durable topic exchange with publisher
// confirms. Subjects are used as routing keys.
type RabbitMQQueue struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	url      string
	exchange string
	mu       sync.RWMutex
	closed   chan struct{}
	log      *zap.Logger
}

var _ ports.MessageQueue = (*RabbitMQQueue)(nil)

// NewRabbitMQQueue creates a new RabbitMQ message queue adapter
func NewRabbitMQQueue(cfg config.RabbitMQConfig, log *zap.Logger) (*RabbitMQQueue, error) {
	q := &RabbitMQQueue{
		url:      cfg.URL,
		exchange: cfg.Exchange,
		closed:   make(chan struct{}),
		log:      log,
	}
	if q.exchange == "" {
		q.exchange = "rec.events"
	}

	conn, ch, err := q.dial()
	if err != nil {
		return nil, err
	}
	q.conn = conn
	q.channel = ch

	go q.monitorConnection()

	log.Info("Successfully connected to RabbitMQ", zap.String("exchange", q.exchange))
	return q, nil
}

func (q *RabbitMQQueue) dial() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(q.url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	if err := ch.ExchangeDeclare(q.exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq: enable confirms: %w", err)
	}
	return conn, ch, nil
}

func (q *RabbitMQQueue) Publish(ctx context.Context, subject string, data []byte) error {
	q.mu.RLock()
	ch := q.channel
	q.mu.RUnlock()

	if ch == nil {
		return fmt.Errorf("rabbitmq: channel not available")
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx,
		q.exchange, subject, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         data,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq: confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("rabbitmq: message to %s was nacked", subject)
	}
	return nil
}

// Subscribe binds a private queue to the exchange. NATS-style wildcards in
// subject (">" for the tail) are accepted.
func (q *RabbitMQQueue) Subscribe(subject string, handler func(data []byte) error) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.channel == nil {
		return fmt.Errorf("rabbitmq: channel not available")
	}

	queue, err := q.channel.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: declare queue: %w", err)
	}

	bindingKey := strings.ReplaceAll(subject, ">", "#")
	err = q.channel.QueueBind(queue.Name, bindingKey, q.exchange, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: bind queue: %w", err)
	}

	msgs, err := q.channel.Consume(queue.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume: %w", err)
	}

	go func() {
		for msg := range msgs {
			if err := handler(msg.Body); err != nil {
				q.log.Error("Error processing RabbitMQ message",
					zap.String("routing_key", msg.RoutingKey),
					zap.Error(err),
				)
			}
		}
	}()

	q.log.Info("Subscribed to RabbitMQ exchange",
		zap.String("exchange", q.exchange),
		zap.String("binding_key", bindingKey),
	)
	return nil
}

// Ping reports whether the connection is usable.
func (q *RabbitMQQueue) Ping() error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.conn == nil || q.conn.IsClosed() {
		return fmt.Errorf("rabbitmq: connection closed")
	}
	return nil
}

func (q *RabbitMQQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	select {
	case <-q.closed:
		return nil
	default:
		close(q.closed)
	}

	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

func (q *RabbitMQQueue) monitorConnection() {
	for {
		q.mu.RLock()
		conn := q.conn
		q.mu.RUnlock()

		reason, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
		if !ok {
			return
		}
		q.log.Warn("RabbitMQ connection lost, reconnecting...", zap.String("reason", reason.Reason))

		q.mu.Lock()
		q.channel = nil
		q.mu.Unlock()

		for {
			select {
			case <-q.closed:
				return
			case <-time.After(5 * time.Second):
			}

			conn, ch, err := q.dial()
			if err != nil {
				q.log.Error("Failed to reconnect to RabbitMQ", zap.Error(err))
				continue
			}

			q.mu.Lock()
			q.conn = conn
			q.channel = ch
			q.mu.Unlock()

			q.log.Info("Successfully reconnected to RabbitMQ")
			break
		}
	}
}
