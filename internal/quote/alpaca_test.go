package quote

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTrader struct {
	calls atomic.Int32
	fn    func(call int32) (*marketdata.Trade, error)
}

func (f *fakeTrader) GetLatestTrade(_ string, _ marketdata.GetLatestTradeRequest) (*marketdata.Trade, error) {
	return f.fn(f.calls.Add(1))
}

func TestAlpaca_RetriesTransientErrors(t *testing.T) {
	ft := &fakeTrader{fn: func(call int32) (*marketdata.Trade, error) {
		if call < 3 {
			return nil, errors.New("503 service unavailable")
		}
		return &marketdata.Trade{Price: 187.25}, nil
	}}
	a := newAlpaca(ft, WithBackoff(time.Millisecond), WithMaxRetries(3))

	p, err := a.LatestPrice(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "187.25", p.String())
	assert.Equal(t, int32(3), ft.calls.Load())
}

func TestAlpaca_UnknownSymbolIsNotRetried(t *testing.T) {
	ft := &fakeTrader{fn: func(int32) (*marketdata.Trade, error) { return nil, nil }}
	a := newAlpaca(ft, WithBackoff(time.Millisecond), WithMaxRetries(3))

	_, err := a.LatestPrice(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrUnknownSymbol)
	assert.Equal(t, int32(1), ft.calls.Load())
}

func TestAlpaca_AttemptTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	ft := &fakeTrader{fn: func(int32) (*marketdata.Trade, error) {
		<-block
		return nil, nil
	}}
	a := newAlpaca(ft, WithBackoff(time.Millisecond), WithMaxRetries(1), WithAttemptTimeout(10*time.Millisecond))

	_, err := a.LatestPrice(context.Background(), "AAPL")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Eventually(t, func() bool { return ft.calls.Load() == 2 }, time.Second, time.Millisecond)
}
