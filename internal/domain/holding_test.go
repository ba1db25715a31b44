package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNewHolding(t *testing.T) {
	h, err := NewHolding(" aapl ", "Apple Inc", 10, d("150"))
	require.NoError(t, err)

	assert.Equal(t, "AAPL", h.Symbol)
	assert.Equal(t, "Apple Inc", h.Name)
	assert.Equal(t, int64(10), h.Quantity)
	assert.True(t, h.TotalCost.Equal(d("1500")))
	assert.True(t, h.AverageCostPerShare.Equal(d("150")))
	assert.True(t, h.Change.IsZero())
	assert.True(t, h.MarketValue.Equal(d("1500")))
	require.NoError(t, h.Validate())
}

func TestNewHolding_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		symbol   string
		quantity int64
		price    decimal.Decimal
		kind     ErrorKind
	}{
		{"empty symbol", "  ", 1, d("1"), KindInvalidSymbol},
		{"zero quantity", "AAPL", 0, d("1"), KindInvalidQuantity},
		{"negative quantity", "AAPL", -3, d("1"), KindInvalidQuantity},
		{"zero price", "AAPL", 1, decimal.Zero, KindInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHolding(tt.symbol, "", tt.quantity, tt.price)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestHolding_BoughtAveragesCost(t *testing.T) {
	h, err := NewHolding("MSFT", "", 3, d("100"))
	require.NoError(t, err)

	next := h.Bought(7, d("110.5"))

	// (3*100 + 7*110.5) / 10
	want := d("300").Add(d("773.5")).Div(d("10"))
	assert.Equal(t, int64(10), next.Quantity)
	assert.True(t, next.AverageCostPerShare.Equal(want), next.AverageCostPerShare.String())
	assert.True(t, next.Change.Equal(want.Sub(d("110.5"))))
	assert.True(t, next.MarketValue.Equal(d("1105")))
	assert.True(t, h.Quantity == 3, "receiver must not be mutated")
	require.NoError(t, next.Validate())
}

func TestHolding_SoldReducesByProceeds(t *testing.T) {
	h, err := NewHolding("AAPL", "", 10, d("150"))
	require.NoError(t, err)

	next, deleted := h.Sold(4, d("170"))
	require.False(t, deleted)

	assert.Equal(t, int64(6), next.Quantity)
	assert.True(t, next.TotalCost.Equal(d("820")))
	assert.Equal(t, "136.67", next.AverageCostPerShare.StringFixed(2))
	assert.True(t, next.MarketValue.Equal(d("1020")))
	require.NoError(t, next.Validate())

	_, deleted = next.Sold(6, d("160"))
	assert.True(t, deleted)
}

func TestHolding_SoldAboveCostKeepsNegativeBasis(t *testing.T) {
	h, err := NewHolding("NVDA", "", 2, d("10"))
	require.NoError(t, err)

	next, deleted := h.Sold(1, d("50"))
	require.False(t, deleted)

	assert.True(t, next.TotalCost.Equal(d("-30")))
	assert.NoError(t, next.Validate(), "negative total cost is a legitimate state")
}

func TestHolding_Validate(t *testing.T) {
	good, err := NewHolding("AAPL", "", 2, d("5"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(h *Holding)
	}{
		{"zero quantity", func(h *Holding) { h.Quantity = 0 }},
		{"negative quantity", func(h *Holding) { h.Quantity = -1 }},
		{"lowercase symbol", func(h *Holding) { h.Symbol = "aapl" }},
		{"stale average", func(h *Holding) { h.AverageCostPerShare = d("7") }},
		{"stale market value", func(h *Holding) { h.MarketValue = d("1") }},
		{"non-positive price", func(h *Holding) { h.CurrentPrice = decimal.Zero }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := *good
			tt.mutate(&h)
			err := h.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrStoreCorruption)
		})
	}
}
