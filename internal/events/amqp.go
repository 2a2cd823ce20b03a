package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"
)

// AMQPClient publishes events to, and consumes them from, one durable queue.
type AMQPClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string

	// amqp.Channel is not safe for concurrent publishing.
	mu sync.Mutex
}

func NewAMQPClient(url, queue string) (*AMQPClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	return &AMQPClient{conn: conn, channel: ch, queue: queue}, nil
}

func (c *AMQPClient) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.channel.Publish(
		"",      // default exchange
		c.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         event.Type,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
		})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}

	slog.DebugContext(ctx, "event published", slog.String("type", event.Type))
	return nil
}

// Consume hands every delivery to handle until ctx is done or the channel
// closes. Deliveries are acked on success and requeued once on failure.
func (c *AMQPClient) Consume(ctx context.Context, handle func(context.Context, Event) error) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.deliver(ctx, msg, handle)
		}
	}
}

func (c *AMQPClient) deliver(ctx context.Context, msg amqp.Delivery, handle func(context.Context, Event) error) {
	var event Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		slog.ErrorContext(ctx, "dropping malformed event", slog.Any("err", err))
		_ = msg.Nack(false, false)
		return
	}

	if err := handle(ctx, event); err != nil {
		slog.WarnContext(ctx, "event handler failed",
			slog.String("type", event.Type), slog.Bool("redelivered", msg.Redelivered), slog.Any("err", err))
		// Requeue only on the first failure so a poison event cannot loop forever.
		_ = msg.Nack(false, !msg.Redelivered)
		return
	}
	_ = msg.Ack(false)
}

func (c *AMQPClient) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}
