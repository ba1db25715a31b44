package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/ledger"
	"github.com/vadiminshakov/papertrade/internal/storage/memstore"
)

func TestQuery(t *testing.T) {
	ctx := context.Background()
	exec, store := newSeeded(t)
	q := ledger.NewQuery(store)

	_, err := exec.Apply(ctx, buy("MSFT", 2, "300"))
	require.NoError(t, err)
	_, err = exec.Apply(ctx, buy("AAPL", 10, "150"))
	require.NoError(t, err)
	_, err = exec.Apply(ctx, buy("MSFT", 1, "310"))
	require.NoError(t, err)

	holdings, err := q.Holdings(ctx)
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, "MSFT", holdings[0].Symbol, "insertion order is stable across updates")
	assert.Equal(t, "AAPL", holdings[1].Symbol)

	h, err := q.Holding(ctx, "msft")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, int64(3), h.Quantity)

	missing, err := q.Holding(ctx, "TSLA")
	require.NoError(t, err)
	assert.Nil(t, missing)

	summary, err := q.Summary(ctx)
	require.NoError(t, err)
	// MSFT 3 @ 310 + AAPL 10 @ 150
	assert.True(t, summary.TotalMarketValue.Equal(dec("2430")), summary.TotalMarketValue.String())
	assert.True(t, summary.Balance.Equal(dec("22590")))
	assert.True(t, summary.NetWorth.Equal(dec("25020")))
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	w, err := ledger.Bootstrap(ctx, store, domain.SeedBalance, nil)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("25000")))

	store.PutWallet(domain.Wallet{Balance: dec("10")})
	w, err = ledger.Bootstrap(ctx, store, domain.SeedBalance, nil)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("10")), "existing wallet is never reseeded")

	_, err = ledger.Bootstrap(ctx, memstore.New(), dec("-1"), nil)
	assert.Error(t, err)
}

func TestBatch_Validate(t *testing.T) {
	assert.Error(t, ledger.Batch{}.Validate())
	assert.Error(t, ledger.Batch{IntentID: "x"}.Validate())
	assert.Error(t, ledger.Batch{IntentID: "x", Mutations: []ledger.Mutation{
		ledger.SetWallet(domain.Wallet{Balance: dec("-1")}),
	}}.Validate())
	assert.Error(t, ledger.Batch{IntentID: "x", Mutations: []ledger.Mutation{
		ledger.UpsertHolding(domain.Holding{Symbol: "A"}),
	}}.Validate())
	assert.NoError(t, ledger.Batch{IntentID: "x", Mutations: []ledger.Mutation{
		ledger.DeleteHolding("A"),
	}}.Validate())
}
