package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"log/slog"

	"github.com/rabbitmq/amqp091-go"

	"github.com/taskdeck/taskdeck/internal/mail"
)

// MailJob is a rendered email waiting for delivery by the worker.
type MailJob struct {
	Message  mail.Message `json:"message"`
	Enqueued time.Time    `json:"enqueued"`
}

// Client publishes and consumes mail jobs over AMQP.
type Client struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	queue    string
	logger   *slog.Logger
}

// NewClient dials the broker and declares the mail exchange and queue.
func NewClient(url, exchange, queueName string, logger *slog.Logger) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	c := &Client{conn: conn, channel: channel, exchange: exchange, queue: queueName, logger: logger}
	if err := c.setup(); err != nil {
		c.Close()
		return nil, fmt.Errorf("declare exchange and queue: %w", err)
	}
	return c, nil
}

func (c *Client) setup() error {
	if err := c.channel.ExchangeDeclare(c.exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := c.channel.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := c.channel.QueueBind(c.queue, c.queue, c.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Enqueue publishes a mail job. Implements mail.Outbox.
func (c *Client) Enqueue(ctx context.Context, msg mail.Message) error {
	body, err := json.Marshal(MailJob{Message: msg, Enqueued: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal mail job: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(ctx, c.exchange, c.queue, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish mail job: %w", err)
	}
	c.logger.Info("mail job queued", "to", msg.To, "subject", msg.Subject)
	return nil
}

var _ mail.Outbox = (*Client)(nil)

// Consume drains mail jobs, delivering each through the sender. Failed
// deliveries are requeued once; malformed payloads are dropped.
func (c *Client) Consume(ctx context.Context, sender mail.Sender) error {
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	c.logger.Info("consuming mail jobs", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("mail queue channel closed")
			}
			var job MailJob
			if err := json.Unmarshal(delivery.Body, &job); err != nil {
				c.logger.Error("malformed mail job, dropping", "error", err)
				_ = delivery.Nack(false, false)
				continue
			}
			if err := sender.Send(ctx, job.Message); err != nil {
				c.logger.Error("mail delivery failed", "to", job.Message.To, "redelivered", delivery.Redelivered, "error", err)
				_ = delivery.Nack(false, !delivery.Redelivered)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// Close tears down the channel and connection.
func (c *Client) Close() error {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
