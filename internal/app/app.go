// Package app assembles the ledger service from configuration.
package app

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/papertrade/config"
	"github.com/vadiminshakov/papertrade/internal/cache"
	"github.com/vadiminshakov/papertrade/internal/events"
	"github.com/vadiminshakov/papertrade/internal/httpapi"
	"github.com/vadiminshakov/papertrade/internal/ledger"
	"github.com/vadiminshakov/papertrade/internal/quote"
	"github.com/vadiminshakov/papertrade/internal/storage"
	"go.uber.org/zap"
)

// App owns every long-lived component of a running service.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	store    ledger.Store
	executor *ledger.Executor
	query    *ledger.Query
	cache    *cache.Snapshots
	stream   *events.Broadcaster
	kafka    *events.KafkaPublisher
	guard    *quote.Guard
	server   *httpapi.Server
}

// New opens the store, seeds the wallet and wires the executor, read side and HTTP server.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	seed, err := cfg.SeedBalance()
	if err != nil {
		return nil, err
	}

	a.store, err = storage.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if _, err := ledger.Bootstrap(ctx, a.store, seed, logger); err != nil {
		_ = a.Close()
		return nil, errors.Wrap(err, "bootstrap wallet")
	}

	var reader ledger.Reader = a.store
	sinks := events.Multi{}

	if cfg.Cache.Enabled {
		a.cache, err = cache.New(a.store, cfg.Cache.TTL)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		reader = a.cache
		sinks = append(sinks, a.cache)
	}

	a.stream = events.NewBroadcaster(256)
	sinks = append(sinks, a.stream)

	if len(cfg.Kafka.Brokers) > 0 {
		a.kafka, err = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger.Named("kafka"))
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		sinks = append(sinks, a.kafka)
		logger.Info("publishing ledger deltas to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	a.executor, err = ledger.NewExecutor(a.store,
		ledger.WithLogger(logger.Named("executor")),
		ledger.WithStoreTimeout(cfg.Ledger.StoreTimeout),
		ledger.WithSinks(sinks),
	)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.query = ledger.NewQuery(reader)

	source, err := quote.New(cfg, logger.Named("quote"))
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.guard = quote.NewGuard(source, cfg.Quote.ToleranceBps, cfg.Quote.Strict, logger.Named("guard"))

	a.server = httpapi.NewServer(cfg.HTTP, a.executor, a.query,
		httpapi.WithLogger(logger.Named("http")),
		httpapi.WithGuard(a.guard),
		httpapi.WithStream(a.stream),
	)
	return a, nil
}

func (a *App) Executor() *ledger.Executor { return a.executor }

func (a *App) Query() *ledger.Query { return a.query }

func (a *App) Guard() *quote.Guard { return a.guard }

func (a *App) Server() *httpapi.Server { return a.server }

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.server.Start(ctx)
}

// Close releases the publishers and the store. It is safe on a partially built App.
func (a *App) Close() error {
	var firstErr error
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			firstErr = errors.Wrap(err, "close kafka publisher")
		}
	}
	if a.cache != nil {
		a.cache.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "close store")
		}
	}
	return firstErr
}
