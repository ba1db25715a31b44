package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Holding is the persisted position in one symbol.
// AverageCostPerShare, Change and MarketValue are derived and recomputed on every mutation.
type Holding struct {
	Symbol              string          `json:"symbol"`
	Name                string          `json:"name"`
	Quantity            int64           `json:"quantity"`
	TotalCost           decimal.Decimal `json:"totalCost"`
	AverageCostPerShare decimal.Decimal `json:"averageCostPerShare"`
	CurrentPrice        decimal.Decimal `json:"currentPrice"`
	Change              decimal.Decimal `json:"change"`
	MarketValue         decimal.Decimal `json:"marketValue"`
}

// NormalizeSymbol upper-cases and trims a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// NewHolding opens a position with the first buy of a symbol.
func NewHolding(symbol, name string, quantity int64, price decimal.Decimal) (*Holding, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, ErrInvalidSymbol
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if !price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	h := &Holding{Symbol: symbol, Name: name}
	h.recompute(quantity, price.Mul(decimal.NewFromInt(quantity)), price)
	return h, nil
}

// Bought returns the holding after buying quantity more shares at price.
func (h Holding) Bought(quantity int64, price decimal.Decimal) Holding {
	next := h
	cost := price.Mul(decimal.NewFromInt(quantity))
	next.recompute(h.Quantity+quantity, h.TotalCost.Add(cost), price)
	return next
}

// Sold returns the holding after selling quantity shares at price.
// The total cost is reduced by the sale proceeds. The second result is true when
// no shares remain and the holding must be deleted.
func (h Holding) Sold(quantity int64, price decimal.Decimal) (Holding, bool) {
	remaining := h.Quantity - quantity
	if remaining == 0 {
		return Holding{Symbol: h.Symbol, Name: h.Name}, true
	}

	next := h
	proceeds := price.Mul(decimal.NewFromInt(quantity))
	next.recompute(remaining, h.TotalCost.Sub(proceeds), price)
	return next, false
}

func (h *Holding) recompute(quantity int64, totalCost, price decimal.Decimal) {
	q := decimal.NewFromInt(quantity)
	h.Quantity = quantity
	h.TotalCost = totalCost
	h.AverageCostPerShare = totalCost.Div(q)
	h.CurrentPrice = price
	// positive change means the position is below its average cost
	h.Change = h.AverageCostPerShare.Sub(price)
	h.MarketValue = price.Mul(q)
}

// Validate checks the stored invariants of a holding read back from a store.
// A zero or negative total cost is allowed: sells reduce it by proceeds, not by cost basis.
func (h Holding) Validate() error {
	if h.Symbol == "" || h.Symbol != NormalizeSymbol(h.Symbol) {
		return NewTradeError(KindStoreCorruption, "holding has malformed symbol %q", h.Symbol)
	}
	if h.Quantity < 1 {
		return NewTradeError(KindStoreCorruption, "holding %s has quantity %d", h.Symbol, h.Quantity)
	}
	if !h.CurrentPrice.IsPositive() {
		return NewTradeError(KindStoreCorruption, "holding %s has non-positive price %s", h.Symbol, h.CurrentPrice)
	}

	var want Holding
	want.recompute(h.Quantity, h.TotalCost, h.CurrentPrice)
	if !want.AverageCostPerShare.Equal(h.AverageCostPerShare) ||
		!want.Change.Equal(h.Change) ||
		!want.MarketValue.Equal(h.MarketValue) {
		return NewTradeError(KindStoreCorruption, "holding %s has inconsistent derived fields", h.Symbol)
	}

	return nil
}
