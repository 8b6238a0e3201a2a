// Package server exposes the orchestrator over HTTP and owns the server
// lifecycle.
package server

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jettyvasavi/banking-system-phase2/pkg/log"
)

const defaultShutdownTimeout = 30 * time.Second

// Config holds the server settings.
type Config struct {
	Address         string
	ShutdownTimeout time.Duration
}

// Server wraps the fiber app with graceful shutdown handling.
type Server struct {
	app             *fiber.App
	address         string
	shutdownTimeout time.Duration
	logger          log.Logger
}

// New builds the HTTP server and registers the transaction routes.
func New(service Service, cfg Config, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	app := fiber.New(fiber.Config{
		AppName:               "transaction-service",
		DisableStartupMessage: true,
	})

	registerRoutes(app, NewHandler(service, logger))

	return &Server{
		app:             app,
		address:         cfg.Address,
		shutdownTimeout: timeout,
		logger:          logger,
	}
}

func registerRoutes(app *fiber.App, h *Handler) {
	app.Get("/health", h.Health)

	api := app.Group("/api/transactions")
	api.Post("/deposit", h.Deposit)
	api.Post("/withdraw", h.Withdraw)
	api.Post("/transfer", h.Transfer)
	api.Get("/account/:accountNumber", h.ListTransactions)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

// Run starts the server and blocks until SIGINT/SIGTERM, then shuts down
// within the configured timeout so in-flight operations can reach a terminal
// status.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Infof("http server listening on %s", s.address)
		errCh <- s.app.Listen(s.address)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen failed: %w", err)
	case sig := <-sigCh:
		s.logger.Infof("received %s, shutting down", sig)
	}

	if err := s.app.ShutdownWithTimeout(s.shutdownTimeout); err != nil {
		return fmt.Errorf("server: shutdown failed: %w", err)
	}

	return nil
}
