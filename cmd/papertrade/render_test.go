package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/papertrade/internal/client"
)

func TestUSD(t *testing.T) {
	assert.Equal(t, "$1,500.00", usd(1500))
	assert.Equal(t, "$0.10", usd(0.1))
	assert.Equal(t, "$187.21", usd(187.205))
}

func TestHoldingsMarkdown(t *testing.T) {
	md := holdingsMarkdown([]client.Holding{
		{Symbol: "AAPL", Name: "Apple", Quantity: 10, AverageCostPerShare: 150, CurrentPrice: 160, Change: 100, MarketValue: 1600},
	}, client.Summary{Balance: 8500, TotalMarketValue: 1600, NetWorth: 10100})

	assert.Contains(t, md, "| AAPL | Apple | 10 | $150.00 | $160.00 | $100.00 | $1,600.00 |")
	assert.Contains(t, md, "**$10,100.00**")

	empty := holdingsMarkdown(nil, client.Summary{Balance: 10000, NetWorth: 10000})
	assert.Contains(t, empty, "_No holdings._")
}

func TestTradeMarkdown(t *testing.T) {
	md := tradeMarkdown(client.TradeResult{
		Detail:   "Sold all shares of MSFT",
		IntentID: "abc",
		Wallet:   client.Wallet{Balance: 10100},
		Deleted:  true,
	})
	assert.Contains(t, md, "Position closed")
	assert.Contains(t, md, "$10,100.00")
	assert.NotContains(t, md, "already recorded")
}

func TestBuildTrade(t *testing.T) {
	tr, err := buildTrade(" aapl ", "Apple", 3, "101.5", "id-1")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", tr.Symbol)
	assert.Equal(t, 304.5, tr.TotalCost)
	assert.Equal(t, "id-1", tr.IntentID)

	for _, tc := range []struct {
		name   string
		symbol string
		qty    int64
		price  string
	}{
		{"no symbol", "", 1, "1"},
		{"zero qty", "AAPL", 0, "1"},
		{"bad price", "AAPL", 1, "abc"},
		{"negative price", "AAPL", 1, "-2"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := buildTrade(tc.symbol, "", tc.qty, tc.price, "")
			assert.Error(t, err)
		})
	}
}

func TestFormValidators(t *testing.T) {
	assert.NoError(t, validateQuantity("5"))
	assert.Error(t, validateQuantity("1.5"))
	assert.Error(t, validateQuantity("0"))
	assert.NoError(t, validatePrice("0.01"))
	assert.Error(t, validatePrice("0"))
}
