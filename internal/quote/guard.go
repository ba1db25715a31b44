package quote

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrade/internal/domain"
	"go.uber.org/zap"
)

var bpsScale = decimal.NewFromInt(10000)

// Guard rejects trades whose client price drifts too far from the latest quote.
// It runs once at request entry, never while ledger locks are held.
type Guard struct {
	source       Source
	toleranceBps int64
	strict       bool
	logger       *zap.Logger
}

// NewGuard returns a guard that allows toleranceBps basis points of drift.
// A nil source or zero tolerance disables the check.
// In strict mode a failed quote lookup rejects the trade instead of letting it through.
func NewGuard(source Source, toleranceBps int64, strict bool, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{source: source, toleranceBps: toleranceBps, strict: strict, logger: logger}
}

func (g *Guard) Enabled() bool {
	return g != nil && g.source != nil && g.toleranceBps > 0
}

// Check compares price against the source's latest price for symbol.
func (g *Guard) Check(ctx context.Context, symbol string, price decimal.Decimal) error {
	if !g.Enabled() {
		return nil
	}

	ref, err := g.source.LatestPrice(ctx, symbol)
	if err != nil {
		if ctx.Err() != nil {
			return domain.WrapTradeError(domain.KindCanceled, err, "quote lookup for %s", symbol)
		}
		if g.strict {
			return domain.WrapTradeError(domain.KindPriceRejected, err, "no reference price for %s", symbol)
		}
		g.logger.Warn("quote lookup failed, trade allowed without price check",
			zap.String("symbol", symbol), zap.Error(err))
		return nil
	}

	drift := Deviation(price, ref)
	if drift.GreaterThan(decimal.NewFromInt(g.toleranceBps)) {
		g.logger.Info("price rejected",
			zap.String("symbol", symbol),
			zap.String("price", price.String()),
			zap.String("reference", ref.String()),
			zap.String("drift_bps", drift.StringFixed(2)))
		return domain.NewTradeError(domain.KindPriceRejected,
			"price %s for %s is %s bps away from market price %s", price, symbol, drift.StringFixed(2), ref)
	}
	return nil
}

// Deviation is |price-ref|/ref in basis points.
func Deviation(price, ref decimal.Decimal) decimal.Decimal {
	if !ref.IsPositive() {
		return decimal.Zero
	}
	return price.Sub(ref).Abs().Div(ref).Mul(bpsScale)
}
