package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/vadiminshakov/papertrade/internal/setup"
)

type setupCmd struct {
	out string
}

func (*setupCmd) Name() string     { return "setup" }
func (*setupCmd) Synopsis() string { return "create a config file interactively" }
func (*setupCmd) Usage() string {
	return `papertrade setup [-o <file>]

  Walks through backend, server and price check settings and writes a YAML config.
`
}

func (c *setupCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "o", setup.DefaultPath, "output config file")
}

func (c *setupCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := setup.RunTUI(c.out); err != nil {
		fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
