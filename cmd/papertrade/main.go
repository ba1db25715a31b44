// Command papertrade runs the paper trading ledger server and a CLI client for it.
//
// Usage:
//
//	papertrade [-config papertrade.yaml] serve
//	papertrade buy -symbol AAPL -qty 10 -price 187.2
//	papertrade holdings
//	papertrade setup
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/vadiminshakov/papertrade/config"
)

var flags config.Flags

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&serveCmd{}, "server")
	commander.Register(&setupCmd{}, "server")

	commander.Register(&tradeCmd{side: "buy"}, "trading")
	commander.Register(&tradeCmd{side: "sell"}, "trading")
	commander.Register(&interactiveCmd{}, "trading")
	commander.Register(&statusCmd{}, "trading")

	commander.Register(&holdingsCmd{}, "ledger")
	commander.Register(&walletCmd{}, "ledger")

	flags.Register(flag.CommandLine)
	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
