package quote

import (
	"context"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrade/pkg/retrier"
	"go.uber.org/zap"
)

type latestTrader interface {
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
}

// Alpaca reads the latest trade from the Alpaca market data API.
type Alpaca struct {
	client     latestTrader
	retrier    *retrier.Retrier
	maxRetries int
	backoff    time.Duration
	timeout    time.Duration
	logger     *zap.Logger
}

type AlpacaOption func(*Alpaca)

func WithAlpacaLogger(l *zap.Logger) AlpacaOption {
	return func(a *Alpaca) { a.logger = l }
}

// WithAttemptTimeout bounds a single API call.
func WithAttemptTimeout(d time.Duration) AlpacaOption {
	return func(a *Alpaca) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithMaxRetries(n int) AlpacaOption {
	return func(a *Alpaca) { a.maxRetries = n }
}

// WithBackoff sets the first retry interval.
func WithBackoff(d time.Duration) AlpacaOption {
	return func(a *Alpaca) { a.backoff = d }
}

// NewAlpaca creates the source. Empty credentials fall back to the APCA_* environment variables.
func NewAlpaca(apiKey, apiSecret, baseURL string, opts ...AlpacaOption) *Alpaca {
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})
	return newAlpaca(client, opts...)
}

func newAlpaca(client latestTrader, opts ...AlpacaOption) *Alpaca {
	a := &Alpaca{
		client:     client,
		maxRetries: 3,
		backoff:    200 * time.Millisecond,
		timeout:    3 * time.Second,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.retrier = retrier.New(
		retrier.WithMaxRetries(a.maxRetries),
		retrier.WithInitialInterval(a.backoff),
		retrier.WithMaxInterval(2*time.Second),
		retrier.WithRetryable(retryable),
	)
	return a
}

func (a *Alpaca) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	return retrier.DoWithData(a.retrier, ctx, func(ctx context.Context) (decimal.Decimal, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		price, err := a.fetch(attemptCtx, symbol)
		if err != nil {
			a.logger.Debug("latest trade lookup failed", zap.String("symbol", symbol), zap.Error(err))
		}
		return price, err
	})
}

// fetch runs the blocking client call in a goroutine so ctx can abandon it.
func (a *Alpaca) fetch(ctx context.Context, symbol string) (decimal.Decimal, error) {
	type result struct {
		trade *marketdata.Trade
		err   error
	}
	done := make(chan result, 1)
	go func() {
		trade, err := a.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
		done <- result{trade: trade, err: err}
	}()

	select {
	case <-ctx.Done():
		return decimal.Zero, errors.Wrapf(ctx.Err(), "latest trade %s", symbol)
	case res := <-done:
		if res.err != nil {
			return decimal.Zero, errors.Wrapf(res.err, "latest trade %s", symbol)
		}
		if res.trade == nil || res.trade.Price <= 0 {
			return decimal.Zero, errors.Wrap(ErrUnknownSymbol, symbol)
		}
		return decimal.NewFromFloat(res.trade.Price), nil
	}
}

func retryable(err error) bool {
	return !errors.Is(err, ErrUnknownSymbol) && !errors.Is(err, context.Canceled)
}
