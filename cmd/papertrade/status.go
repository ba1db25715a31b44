package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

type statusCmd struct{}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "check whether a trade intent was recorded" }
func (*statusCmd) Usage() string {
	return `papertrade status <intent-id>
`
}

func (*statusCmd) SetFlags(*flag.FlagSet) {}

func (*statusCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fail("Usage: papertrade status <intent-id>")
		return subcommands.ExitUsageError
	}
	cl, err := newClient()
	if err != nil {
		fail("Error: %v", err)
		return subcommands.ExitUsageError
	}
	st, err := cl.Status(ctx, f.Arg(0))
	if err != nil {
		fail("Error: %v", err)
		return subcommands.ExitFailure
	}
	if st.Committed {
		fmt.Printf("%s: committed\n", st.IntentID)
	} else {
		fmt.Printf("%s: not found\n", st.IntentID)
	}
	return subcommands.ExitSuccess
}
