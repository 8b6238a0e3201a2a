package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jettyvasavi/banking-system-phase2/internal/bootstrap"
	"github.com/jettyvasavi/banking-system-phase2/internal/orchestrator"
	"github.com/jettyvasavi/banking-system-phase2/internal/server"
	"github.com/jettyvasavi/banking-system-phase2/pkg/log"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := bootstrap.Load()
	if err != nil {
		return err
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	logger, err := log.NewZapLogger(level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	deps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close(ctx)

	orch, err := orchestrator.New(deps.Ledger, deps.Accounts, deps.Notifier, logger)
	if err != nil {
		return err
	}

	srv := server.New(orch, server.Config{
		Address:         cfg.ServerAddress,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	return srv.Run()
}
