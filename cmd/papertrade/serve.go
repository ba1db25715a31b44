package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"
	"github.com/vadiminshakov/papertrade/internal/app"
	"github.com/vadiminshakov/papertrade/internal/logger"
	"go.uber.org/zap"
)

type serveCmd struct{}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the ledger HTTP server" }
func (*serveCmd) Usage() string {
	return `papertrade [-config <file>] [-addr <addr>] [-backend <name>] [-data <dir>] serve

  Opens the configured ledger, seeds the wallet on first start and serves the HTTP API
  until interrupted.
`
}

func (*serveCmd) SetFlags(*flag.FlagSet) {}

func (*serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := flags.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return subcommands.ExitUsageError
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		return subcommands.ExitFailure
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to start", zap.Error(err))
		return subcommands.ExitFailure
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("shutdown", zap.Error(err))
		}
	}()

	log.Info("papertrade started",
		zap.String("backend", cfg.Ledger.Backend),
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("quotes", cfg.Quote.Provider))

	if err := a.Run(ctx); err != nil {
		log.Error("server stopped", zap.Error(err))
		return subcommands.ExitFailure
	}
	log.Info("papertrade stopped")
	return subcommands.ExitSuccess
}
