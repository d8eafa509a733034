// Package chat implements a notification channel that publishes messages
// to a RabbitMQ topic exchange. A downstream bot consumes the queue and
// posts into the user's chat workspace.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xraph/almanac/policy"
)

// ExchangeName is the topic exchange chat notifications are published to.
const ExchangeName = "almanac.notifications"

// publisher is the subset of amqp.Channel the sender needs. Tests swap in
// a fake; production uses a real channel from an amqp.Connection.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Sender publishes chat notifications to RabbitMQ.
type Sender struct {
	channel publisher
	closer  interface{ Close() error }
	logger  *slog.Logger
}

// message is the JSON body published per notification.
type message struct {
	UserID      string    `json:"user_id"`
	Text        string    `json:"text"`
	PublishedAt time.Time `json:"published_at"`
}

// Dial connects to RabbitMQ, opens a channel, and declares the topic
// exchange.
func Dial(url string, logger *slog.Logger) (*Sender, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{channel: ch, closer: conn, logger: logger}, nil
}

// newWithPublisher wires a sender around an existing publisher. Used by tests.
func newWithPublisher(p publisher, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{channel: p, logger: logger}
}

// Name identifies the channel this sender serves.
func (s *Sender) Name() policy.Channel { return policy.ChannelChat }

// Send publishes the message with a per-user routing key so consumers can
// bind to individual users or to "notify.*" for everything.
func (s *Sender) Send(ctx context.Context, userID, text string) error {
	body, err := json.Marshal(message{
		UserID:      userID,
		Text:        text,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal chat message: %w", err)
	}

	routingKey := "notify." + userID
	err = s.channel.PublishWithContext(
		ctx,
		ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish chat message: %w", err)
	}

	s.logger.DebugContext(ctx, "chat message published", "routing_key", routingKey)
	return nil
}

// Close closes the underlying connection.
func (s *Sender) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
