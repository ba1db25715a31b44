package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrade/internal/client"
)

// tradeCmd is both "buy" and "sell".
type tradeCmd struct {
	side     string
	symbol   string
	name     string
	quantity int64
	price    string
	intentID string
}

func (c *tradeCmd) Name() string { return c.side }
func (c *tradeCmd) Synopsis() string {
	return fmt.Sprintf("%s shares at the given price", c.side)
}
func (c *tradeCmd) Usage() string {
	return fmt.Sprintf(`papertrade %s -symbol <SYM> -qty <n> -price <p> [-name <company>] [-id <intent-id>]

  Sends a %s to the server. Passing the same -id twice records the trade once.
`, c.side, c.side)
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "symbol", "", "ticker symbol")
	f.StringVar(&c.name, "name", "", "company name")
	f.Int64Var(&c.quantity, "qty", 0, "number of shares")
	f.StringVar(&c.price, "price", "", "price per share")
	f.StringVar(&c.intentID, "id", "", "idempotency key, generated by the server when empty")
}

func (c *tradeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	t, err := buildTrade(c.symbol, c.name, c.quantity, c.price, c.intentID)
	if err != nil {
		fail("Error: %v", err)
		return subcommands.ExitUsageError
	}

	cl, err := newClient()
	if err != nil {
		fail("Error: %v", err)
		return subcommands.ExitUsageError
	}

	res, err := submit(ctx, cl, c.side, t)
	if err != nil {
		fail("Trade failed: %v", err)
		return subcommands.ExitFailure
	}
	printMarkdown(tradeMarkdown(res))
	return subcommands.ExitSuccess
}

func buildTrade(symbol, name string, quantity int64, price, intentID string) (client.Trade, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return client.Trade{}, errors.New("-symbol is required")
	}
	if quantity <= 0 {
		return client.Trade{}, errors.New("-qty must be positive")
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return client.Trade{}, errors.Wrapf(err, "incorrect -price %q", price)
	}
	if !p.IsPositive() {
		return client.Trade{}, errors.New("-price must be positive")
	}
	return client.Trade{
		Symbol:       symbol,
		Name:         name,
		Quantity:     quantity,
		CurrentPrice: p.InexactFloat64(),
		TotalCost:    p.Mul(decimal.NewFromInt(quantity)).InexactFloat64(),
		IntentID:     intentID,
	}, nil
}

func submit(ctx context.Context, cl *client.Client, side string, t client.Trade) (client.TradeResult, error) {
	if side == "sell" {
		return cl.Sell(ctx, t)
	}
	return cl.Buy(ctx, t)
}
