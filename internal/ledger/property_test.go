package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/ledger"
	"github.com/vadiminshakov/papertrade/internal/storage/memstore"
	"pgregory.net/rapid"
)

// At fixed per-symbol prices every successful trade moves value between cash and
// market value, so net worth never changes and nothing goes negative.
func TestProperty_ConservationAtFixedPrices(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		store := memstore.New()
		if _, err := ledger.Bootstrap(ctx, store, domain.SeedBalance, nil); err != nil {
			t.Fatalf("bootstrap: %v", err)
		}
		exec, err := ledger.NewExecutor(store)
		if err != nil {
			t.Fatalf("executor: %v", err)
		}

		symbols := []string{"AAPL", "MSFT", "NVDA"}
		prices := make(map[string]decimal.Decimal, len(symbols))
		for _, s := range symbols {
			cents := rapid.Int64Range(1, 100000).Draw(t, "price_"+s)
			prices[s] = decimal.New(cents, -2)
		}

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			sym := rapid.SampledFrom(symbols).Draw(t, "symbol")
			qty := rapid.Int64Range(1, 30).Draw(t, "qty")
			side := domain.SideBuy
			if rapid.Bool().Draw(t, "sell") {
				side = domain.SideSell
			}

			_, _ = exec.Apply(ctx, domain.NewTradeIntent("", side, sym, "", qty, prices[sym]))

			snap, err := store.Snapshot(ctx)
			if err != nil {
				t.Fatalf("snapshot: %v", err)
			}
			if snap.Wallet.Balance.IsNegative() {
				t.Fatalf("negative balance %s", snap.Wallet.Balance)
			}
			for _, h := range snap.Holdings {
				if h.Quantity < 1 {
					t.Fatalf("holding %s has quantity %d", h.Symbol, h.Quantity)
				}
			}
			if nw := ledger.NetWorth(snap.Wallet, snap.Holdings); !nw.Equal(domain.SeedBalance) {
				t.Fatalf("net worth drifted to %s", nw)
			}
		}
	})
}

func TestProperty_AverageCost(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		store := memstore.New()
		if _, err := ledger.Bootstrap(ctx, store, decimal.NewFromInt(1_000_000_000), nil); err != nil {
			t.Fatalf("bootstrap: %v", err)
		}
		exec, err := ledger.NewExecutor(store)
		if err != nil {
			t.Fatalf("executor: %v", err)
		}

		q1 := rapid.Int64Range(1, 1000).Draw(t, "q1")
		q2 := rapid.Int64Range(1, 1000).Draw(t, "q2")
		p1 := decimal.New(rapid.Int64Range(1, 100000).Draw(t, "p1"), -2)
		p2 := decimal.New(rapid.Int64Range(1, 100000).Draw(t, "p2"), -2)

		if _, err := exec.Apply(ctx, domain.NewTradeIntent("", domain.SideBuy, "AAPL", "", q1, p1)); err != nil {
			t.Fatalf("first buy: %v", err)
		}
		delta, err := exec.Apply(ctx, domain.NewTradeIntent("", domain.SideBuy, "AAPL", "", q2, p2))
		if err != nil {
			t.Fatalf("second buy: %v", err)
		}

		total := p1.Mul(decimal.NewFromInt(q1)).Add(p2.Mul(decimal.NewFromInt(q2)))
		want := total.Div(decimal.NewFromInt(q1 + q2))
		if !delta.Holding.AverageCostPerShare.Equal(want) {
			t.Fatalf("average %s, want %s", delta.Holding.AverageCostPerShare, want)
		}
	})
}
