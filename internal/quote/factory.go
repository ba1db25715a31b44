package quote

import (
	"github.com/pkg/errors"
	"github.com/vadiminshakov/papertrade/config"
	"go.uber.org/zap"
)

// New builds the configured source. It returns nil when quotes are disabled.
func New(cfg *config.Config, logger *zap.Logger) (Source, error) {
	switch cfg.Quote.Provider {
	case config.QuoteNone, "":
		return nil, nil
	case config.QuoteStatic:
		prices, err := cfg.StaticPrices()
		if err != nil {
			return nil, err
		}
		return NewStatic(prices), nil
	case config.QuoteAlpaca:
		return NewAlpaca(cfg.Quote.APIKey, cfg.Quote.APISecret, cfg.Quote.BaseURL,
			WithAlpacaLogger(logger),
			WithMaxRetries(cfg.Quote.MaxRetries),
			WithAttemptTimeout(cfg.Quote.Timeout),
		), nil
	default:
		return nil, errors.Errorf("unsupported quote provider %q", cfg.Quote.Provider)
	}
}
