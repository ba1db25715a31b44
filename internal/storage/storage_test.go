package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/papertrade/config"
	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/ledger"
)

func TestOpen_LocalBackends(t *testing.T) {
	for _, backend := range []string{config.BackendMemory, config.BackendWAL, config.BackendFile} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.Ledger.Backend = backend
			cfg.Ledger.DataDir = t.TempDir()

			s, err := Open(context.Background(), &cfg, nil)
			require.NoError(t, err)
			defer s.Close()

			w, err := ledger.Bootstrap(context.Background(), s, domain.SeedBalance, nil)
			require.NoError(t, err)
			assert.True(t, w.Balance.Equal(domain.SeedBalance))
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Ledger.Backend = "tape"

	_, err := Open(context.Background(), &cfg, nil)
	assert.Error(t, err)
}
