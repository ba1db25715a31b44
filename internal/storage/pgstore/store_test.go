package pgstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/ledger"
	"gorm.io/gorm"
)

const dsnEnv = "PAPERTRADE_TEST_POSTGRES_DSN"

// PAPERTRADE_TEST_POSTGRES_DSN must point at a scratch database; its ledger tables are truncated.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}

	s, err := NewClient(dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.db.Exec("TRUNCATE wallet, holdings, ledger_commits").Error)
	return s
}

func TestStore_TradeRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.True(t, s.IsHealthy(ctx))

	_, err := s.GetWallet(ctx)
	assert.ErrorIs(t, err, ledger.ErrWalletNotFound)

	_, err = ledger.Bootstrap(ctx, s, domain.SeedBalance, nil)
	require.NoError(t, err)
	exec, err := ledger.NewExecutor(s)
	require.NoError(t, err)

	for _, sym := range []string{"MSFT", "AAPL"} {
		_, err := exec.Apply(ctx, domain.NewTradeIntent("", domain.SideBuy, sym, "", 10, decimal.NewFromInt(150)))
		require.NoError(t, err)
	}
	id := uuid.NewString()
	_, err = exec.Apply(ctx, domain.NewTradeIntent(id, domain.SideSell, "MSFT", "", 4, decimal.NewFromInt(170)))
	require.NoError(t, err)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Wallet.Balance.Equal(decimal.NewFromInt(22680)))
	require.Len(t, snap.Holdings, 2)
	assert.Equal(t, "MSFT", snap.Holdings[0].Symbol)
	assert.True(t, snap.Holdings[0].TotalCost.Equal(decimal.NewFromInt(820)))

	fp, ok, err := s.Committed(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.NewTradeIntent(id, domain.SideSell, "MSFT", "", 4, decimal.NewFromInt(170)).Fingerprint(), fp)

	_, err = exec.Apply(ctx, domain.NewTradeIntent("", domain.SideSell, "MSFT", "", 6, decimal.NewFromInt(160)))
	require.NoError(t, err)
	h, err := s.GetHolding(ctx, "MSFT")
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestStore_FailedBatchRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := ledger.Bootstrap(ctx, s, domain.SeedBalance, nil)
	require.NoError(t, err)

	h, err := domain.NewHolding("AAPL", "", 1, decimal.NewFromInt(1))
	require.NoError(t, err)
	bad := *h
	bad.Quantity = 0 // violates the quantity check inside the transaction

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := applyMutation(tx, ledger.UpsertHolding(*h)); err != nil {
			return err
		}
		return applyMutation(tx, ledger.UpsertHolding(bad))
	})
	require.Error(t, err)

	holdings, err := s.ListHoldings(ctx)
	require.NoError(t, err)
	assert.Empty(t, holdings)
}

func TestHoldingRecord_Conversion(t *testing.T) {
	h, err := domain.NewHolding("NVDA", "Nvidia", 3, decimal.RequireFromString("101.5"))
	require.NoError(t, err)

	rec := toHoldingRecord(*h)
	assert.Equal(t, "holdings", rec.TableName())
	assert.Equal(t, *h, rec.toDomain())
}
