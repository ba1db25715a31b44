package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type walletCmd struct {
	set string
}

func (*walletCmd) Name() string     { return "wallet" }
func (*walletCmd) Synopsis() string { return "show or overwrite the cash balance" }
func (*walletCmd) Usage() string {
	return `papertrade wallet [-set <balance>]
`
}

func (c *walletCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.set, "set", "", "new balance")
}

func (c *walletCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cl, err := newClient()
	if err != nil {
		fail("Error: %v", err)
		return subcommands.ExitUsageError
	}

	if c.set != "" {
		b, err := decimal.NewFromString(c.set)
		if err != nil || b.IsNegative() {
			fail("Error: -set must be a non-negative number")
			return subcommands.ExitUsageError
		}
		if err := cl.SetBalance(ctx, b.String()); err != nil {
			fail("Error updating balance: %v", err)
			return subcommands.ExitFailure
		}
	}

	w, err := cl.Wallet(ctx)
	if err != nil {
		fail("Error loading wallet: %v", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Cash balance: %s\n", usd(w.Balance))
	return subcommands.ExitSuccess
}
