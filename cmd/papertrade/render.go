package main

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrade/internal/client"
)

// usd formats a dollar amount, rounding to cents.
func usd(v float64) string {
	cents := decimal.NewFromFloat(v).Shift(2).Round(0).IntPart()
	return money.New(cents, money.USD).Display()
}

func holdingsMarkdown(holdings []client.Holding, sum client.Summary) string {
	var b strings.Builder
	b.WriteString("# Portfolio\n\n")

	if len(holdings) == 0 {
		b.WriteString("_No holdings._\n\n")
	} else {
		b.WriteString("| Symbol | Name | Qty | Avg cost | Price | Change | Market value |\n")
		b.WriteString("|:---|:---|---:|---:|---:|---:|---:|\n")
		for _, h := range holdings {
			fmt.Fprintf(&b, "| %s | %s | %d | %s | %s | %s | %s |\n",
				h.Symbol, h.Name, h.Quantity,
				usd(h.AverageCostPerShare), usd(h.CurrentPrice), usd(h.Change), usd(h.MarketValue))
		}
		b.WriteString("\n")
	}

	b.WriteString("| | |\n|:---|---:|\n")
	fmt.Fprintf(&b, "| Cash | %s |\n", usd(sum.Balance))
	fmt.Fprintf(&b, "| Stocks | %s |\n", usd(sum.TotalMarketValue))
	fmt.Fprintf(&b, "| **Net worth** | **%s** |\n", usd(sum.NetWorth))
	return b.String()
}

func tradeMarkdown(res client.TradeResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n", res.Detail)
	if res.Replayed {
		b.WriteString("_This trade was already recorded; nothing changed._\n\n")
	}
	fmt.Fprintf(&b, "- Cash balance: %s\n", usd(res.Wallet.Balance))
	switch {
	case res.Deleted:
		b.WriteString("- Position closed\n")
	case res.Holding != nil:
		fmt.Fprintf(&b, "- Position: %d %s at %s average\n", res.Holding.Quantity, res.Holding.Symbol, usd(res.Holding.AverageCostPerShare))
	}
	fmt.Fprintf(&b, "- Intent: `%s`\n", res.IntentID)
	return b.String()
}
