// Package notification delivers best-effort operation notices. Delivery is
// at-most-once: the orchestrator logs and discards any error, and never blocks
// an operation's outcome on it.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jettyvasavi/banking-system-phase2/internal/transaction"
	"github.com/jettyvasavi/banking-system-phase2/pkg/log"
)

var (
	// ErrChannelRequired is returned when the publisher is built without a
	// channel.
	ErrChannelRequired = errors.New("notification: amqp channel is required")
	// ErrEmptyMessage is returned for blank notification messages.
	ErrEmptyMessage = errors.New("notification: message is empty")
)

// DefaultPublishTimeout bounds a single publish attempt.
const DefaultPublishTimeout = 5 * time.Second

// Notifier sends a human-readable notice about a completed operation. Errors
// are returned so the caller can log them, but callers must treat delivery as
// fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Channel is the slice of amqp091.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Config holds the publisher's routing settings.
type Config struct {
	Exchange       string
	RoutingKey     string
	PublishTimeout time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.RoutingKey == "" {
		cfg.RoutingKey = "transactions.notifications"
	}

	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}

	return cfg
}

// Publisher sends notifications to a RabbitMQ exchange.
type Publisher struct {
	channel Channel
	cfg     Config
	logger  log.Logger
}

// NewPublisher builds a Publisher over an open channel.
func NewPublisher(channel Channel, cfg Config, logger log.Logger) (*Publisher, error) {
	if channel == nil {
		return nil, ErrChannelRequired
	}

	if logger == nil {
		logger = log.NewNop()
	}

	return &Publisher{channel: channel, cfg: cfg.withDefaults(), logger: logger}, nil
}

// Notify publishes the message as a persistent text payload.
func (p *Publisher) Notify(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
	defer cancel()

	err := p.channel.PublishWithContext(pubCtx, p.cfg.Exchange, p.cfg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "text/plain",
		DeliveryMode: amqp.Persistent,
		MessageId:    transaction.NewRecordID(),
		Timestamp:    time.Now().UTC(),
		Body:         []byte(message),
	})
	if err != nil {
		return fmt.Errorf("notification: publish failed: %w", err)
	}

	return nil
}

// Nop is the notifier used when no broker is configured.
type Nop struct{}

// NewNop returns a notifier that drops every message.
func NewNop() Notifier { return Nop{} }

// Notify discards the message.
func (Nop) Notify(context.Context, string) error { return nil }
