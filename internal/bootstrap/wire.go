package bootstrap

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jettyvasavi/banking-system-phase2/internal/accounts"
	"github.com/jettyvasavi/banking-system-phase2/internal/ledger"
	"github.com/jettyvasavi/banking-system-phase2/internal/notification"
	"github.com/jettyvasavi/banking-system-phase2/pkg/log"
)

// Dependencies bundles the orchestrator's wired collaborators and their
// shutdown hooks.
type Dependencies struct {
	Ledger   ledger.Store
	Accounts accounts.Client
	Notifier notification.Notifier

	closers []func(ctx context.Context) error
}

// Build constructs the runtime dependency graph from the configuration.
func Build(ctx context.Context, cfg Config, logger log.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	client, err := accounts.NewHTTPClient(accounts.Config{
		BaseURL: cfg.AccountServiceURL,
		Timeout: cfg.AccountServiceTimeout,
		Breaker: cfg.BreakerConfig(),
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	deps.Accounts = client

	if cfg.MongoURI == "" {
		logger.Warn("MONGO_URI not set, using in-memory ledger (records are lost on restart)")
		deps.Ledger = ledger.NewMemory()
	} else {
		store, err := ledger.NewMongoStore(ctx, ledger.MongoConfig{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}

		deps.Ledger = store
		deps.closers = append(deps.closers, store.Close)
	}

	if cfg.RabbitURI == "" {
		logger.Warn("RABBITMQ_URI not set, notifications are disabled")
		deps.Notifier = notification.NewNop()

		return deps, nil
	}

	notifier, closeAMQP, err := buildPublisher(cfg, logger)
	if err != nil {
		deps.Close(context.Background())
		return nil, err
	}

	deps.Notifier = notifier
	deps.closers = append(deps.closers, closeAMQP)

	return deps, nil
}

func buildPublisher(cfg Config, logger log.Logger) (notification.Notifier, func(context.Context) error, error) {
	conn, err := amqp.Dial(cfg.RabbitURI)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: rabbitmq dial failed: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("bootstrap: rabbitmq channel failed: %w", err)
	}

	if err := channel.ExchangeDeclare(cfg.NotificationExchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("bootstrap: exchange declare failed: %w", err)
	}

	publisher, err := notification.NewPublisher(channel, notification.Config{
		Exchange:   cfg.NotificationExchange,
		RoutingKey: cfg.NotificationRoutingKey,
	}, logger)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	return publisher, func(context.Context) error { return conn.Close() }, nil
}

// Close releases every wired dependency in reverse order.
func (d *Dependencies) Close(ctx context.Context) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i](ctx)
	}
}
