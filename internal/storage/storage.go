// Package storage opens the configured ledger backend.
package storage

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/papertrade/config"
	"github.com/vadiminshakov/papertrade/internal/journal"
	"github.com/vadiminshakov/papertrade/internal/ledger"
	"github.com/vadiminshakov/papertrade/internal/storage/filestore"
	"github.com/vadiminshakov/papertrade/internal/storage/journaled"
	"github.com/vadiminshakov/papertrade/internal/storage/memstore"
	"github.com/vadiminshakov/papertrade/internal/storage/pgstore"
	"github.com/vadiminshakov/papertrade/internal/storage/walstore"
	"go.uber.org/zap"
)

// Open is the single place that maps a backend name to a ledger.Store.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ledger.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("backend", cfg.Ledger.Backend))

	switch cfg.Ledger.Backend {
	case config.BackendMemory:
		logger.Warn("ledger is kept in memory only and is lost on exit")
		return memstore.New(), nil
	case config.BackendWAL:
		s, err := walstore.Open(filepath.Join(cfg.Ledger.DataDir, "wal"), walstore.WithLogger(logger))
		if err != nil {
			return nil, errors.Wrap(err, "open wal store")
		}
		return s, nil
	case config.BackendFile:
		files, err := filestore.Open(filepath.Join(cfg.Ledger.DataDir, "records"))
		if err != nil {
			return nil, err
		}
		j, err := journal.Open(filepath.Join(cfg.Ledger.DataDir, "journal"), logger)
		if err != nil {
			return nil, err
		}
		s, err := journaled.New(files, j, journaled.WithLogger(logger))
		if err != nil {
			_ = j.Close()
			return nil, errors.Wrap(err, "open journaled store")
		}
		return s, nil
	case config.BackendPostgres:
		s, err := pgstore.Open(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, errors.Wrap(err, "open postgres store")
		}
		return s, nil
	default:
		return nil, errors.Errorf("unsupported ledger backend %q", cfg.Ledger.Backend)
	}
}
