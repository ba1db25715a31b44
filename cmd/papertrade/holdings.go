package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"
)

type holdingsCmd struct{}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "display holdings and net worth" }
func (*holdingsCmd) Usage() string {
	return `papertrade holdings

  Displays every holding in purchase order followed by cash, stock value and net worth.
`
}

func (*holdingsCmd) SetFlags(*flag.FlagSet) {}

func (*holdingsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cl, err := newClient()
	if err != nil {
		fail("Error: %v", err)
		return subcommands.ExitUsageError
	}
	hs, err := cl.Holdings(ctx)
	if err != nil {
		fail("Error loading holdings: %v", err)
		return subcommands.ExitFailure
	}
	sum, err := cl.NetWorth(ctx)
	if err != nil {
		fail("Error loading net worth: %v", err)
		return subcommands.ExitFailure
	}
	printMarkdown(holdingsMarkdown(hs, sum))
	return subcommands.ExitSuccess
}
