package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrade/internal/domain"
)

// Summary is the wallet-level view shown next to the holdings list.
type Summary struct {
	Balance          decimal.Decimal `json:"balance"`
	TotalMarketValue decimal.Decimal `json:"totalMarketValue"`
	NetWorth         decimal.Decimal `json:"netWorth"`
}

// Query serves read-only views. It never mutates and may run concurrently with trades.
type Query struct {
	reader Reader
}

// NewQuery reads from r, which is a Store or a cache in front of one.
func NewQuery(r Reader) *Query {
	return &Query{reader: r}
}

func (q *Query) Wallet(ctx context.Context) (domain.Wallet, error) {
	return q.reader.GetWallet(ctx)
}

// Holding returns nil, nil when symbol is not held.
func (q *Query) Holding(ctx context.Context, symbol string) (*domain.Holding, error) {
	return q.reader.GetHolding(ctx, domain.NormalizeSymbol(symbol))
}

func (q *Query) Holdings(ctx context.Context) ([]domain.Holding, error) {
	return q.reader.ListHoldings(ctx)
}

func (q *Query) Summary(ctx context.Context) (Summary, error) {
	snap, err := q.reader.Snapshot(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(snap), nil
}

// Summarize derives the summary from a snapshot.
func Summarize(snap domain.Snapshot) Summary {
	total := TotalMarketValue(snap.Holdings)
	return Summary{
		Balance:          snap.Wallet.Balance,
		TotalMarketValue: total,
		NetWorth:         NetWorth(snap.Wallet, snap.Holdings),
	}
}

// TotalMarketValue is the sum of holding market values.
func TotalMarketValue(holdings []domain.Holding) decimal.Decimal {
	total := decimal.Zero
	for _, h := range holdings {
		total = total.Add(h.MarketValue)
	}
	return total
}

// NetWorth is cash plus the market value of every holding.
func NetWorth(w domain.Wallet, holdings []domain.Holding) decimal.Decimal {
	return w.Balance.Add(TotalMarketValue(holdings))
}
