package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/subcommands"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var titleStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("205")).
	Bold(true).
	MarginBottom(1)

type interactiveCmd struct{}

func (*interactiveCmd) Name() string     { return "trade" }
func (*interactiveCmd) Synopsis() string { return "place a trade through an interactive form" }
func (*interactiveCmd) Usage() string {
	return `papertrade trade
`
}

func (*interactiveCmd) SetFlags(*flag.FlagSet) {}

func (*interactiveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cl, err := newClient()
	if err != nil {
		fail("Error: %v", err)
		return subcommands.ExitUsageError
	}

	var (
		side    = "buy"
		symbol  string
		name    string
		qty     string
		price   string
		confirm bool
	)

	fmt.Println(titleStyle.Render("PAPERTRADE"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Side").
				Options(huh.NewOption("Buy", "buy"), huh.NewOption("Sell", "sell")).
				Value(&side),
			huh.NewInput().
				Title("Symbol").
				Value(&symbol).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("symbol is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Company name").
				Description("Optional").
				Value(&name),
			huh.NewInput().
				Title("Quantity").
				Value(&qty).
				Validate(validateQuantity),
			huh.NewInput().
				Title("Price per share").
				Value(&price).
				Validate(validatePrice),
		),
	).Run()
	if err != nil {
		fail("Error: %v", err)
		return subcommands.ExitFailure
	}

	n, _ := strconv.ParseInt(qty, 10, 64)
	t, err := buildTrade(symbol, name, n, price, "")
	if err != nil {
		fail("Error: %v", err)
		return subcommands.ExitUsageError
	}

	err = huh.NewConfirm().
		Title(fmt.Sprintf("%s %d %s for %s?", strings.ToUpper(side[:1])+side[1:], t.Quantity, t.Symbol, usd(t.TotalCost))).
		Value(&confirm).
		Run()
	if err != nil {
		fail("Error: %v", err)
		return subcommands.ExitFailure
	}
	if !confirm {
		fmt.Println("Cancelled.")
		return subcommands.ExitSuccess
	}

	res, err := submit(ctx, cl, side, t)
	if err != nil {
		fail("Trade failed: %v", err)
		return subcommands.ExitFailure
	}
	printMarkdown(tradeMarkdown(res))
	return subcommands.ExitSuccess
}

func validateQuantity(s string) error {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return errors.New("quantity must be a positive whole number")
	}
	return nil
}

func validatePrice(s string) error {
	p, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !p.IsPositive() {
		return errors.New("price must be a positive number")
	}
	return nil
}
