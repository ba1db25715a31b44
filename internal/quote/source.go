// Package quote looks up reference prices and guards trades against stale client prices.
package quote

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrUnknownSymbol is returned when a source has no price for the symbol.
var ErrUnknownSymbol = errors.New("unknown symbol")

// Source provides the latest traded price for a symbol.
type Source interface {
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Static serves prices from a fixed table. Useful for demos and tests.
type Static struct {
	prices map[string]decimal.Decimal
}

// NewStatic copies prices; keys are normalized to upper case.
func NewStatic(prices map[string]decimal.Decimal) *Static {
	s := &Static{prices: make(map[string]decimal.Decimal, len(prices))}
	for sym, p := range prices {
		s.prices[strings.ToUpper(strings.TrimSpace(sym))] = p
	}
	return s
}

func (s *Static) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	p, ok := s.prices[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return decimal.Zero, errors.Wrap(ErrUnknownSymbol, symbol)
	}
	return p, nil
}
