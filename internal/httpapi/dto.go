package httpapi

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/ledger"
)

// Requests accept numbers or numeric strings. Responses use plain JSON numbers.

type tradeRequest struct {
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"quantity"`
	TotalCost    decimal.Decimal `json:"totalCost"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	IntentID     string          `json:"intentId"`
}

type walletUpdateRequest struct {
	NewBalance *decimal.Decimal `json:"newBalance"`
}

type walletResponse struct {
	Balance float64 `json:"balance"`
}

type holdingResponse struct {
	Symbol              string  `json:"symbol"`
	Name                string  `json:"name"`
	Quantity            int64   `json:"quantity"`
	TotalCost           float64 `json:"totalCost"`
	AverageCostPerShare float64 `json:"averageCostPerShare"`
	CurrentPrice        float64 `json:"currentPrice"`
	Change              float64 `json:"change"`
	MarketValue         float64 `json:"marketValue"`
}

type tradeResponse struct {
	Message  string           `json:"message"`
	Detail   string           `json:"detail"`
	IntentID string           `json:"intentId"`
	Replayed bool             `json:"replayed"`
	Wallet   walletResponse   `json:"wallet"`
	Holding  *holdingResponse `json:"holding"`
	Deleted  bool             `json:"deleted"`
}

type summaryResponse struct {
	Balance          float64 `json:"balance"`
	TotalMarketValue float64 `json:"totalMarketValue"`
	NetWorth         float64 `json:"netWorth"`
}

type statusResponse struct {
	IntentID  string `json:"intentId"`
	Committed bool   `json:"committed"`
}

type deltaResponse struct {
	IntentID string           `json:"intentId"`
	Kind     domain.DeltaKind `json:"kind"`
	Symbol   string           `json:"symbol,omitempty"`
	Wallet   walletResponse   `json:"wallet"`
	Holding  *holdingResponse `json:"holding"`
	Deleted  bool             `json:"deleted"`
	Replayed bool             `json:"replayed"`
	At       time.Time        `json:"at"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func newWalletResponse(w domain.Wallet) walletResponse {
	return walletResponse{Balance: w.Balance.InexactFloat64()}
}

func newHoldingResponse(h *domain.Holding) *holdingResponse {
	if h == nil {
		return nil
	}
	return &holdingResponse{
		Symbol:              h.Symbol,
		Name:                h.Name,
		Quantity:            h.Quantity,
		TotalCost:           h.TotalCost.InexactFloat64(),
		AverageCostPerShare: h.AverageCostPerShare.InexactFloat64(),
		CurrentPrice:        h.CurrentPrice.InexactFloat64(),
		Change:              h.Change.InexactFloat64(),
		MarketValue:         h.MarketValue.InexactFloat64(),
	}
}

func newHoldingsResponse(hs []domain.Holding) []holdingResponse {
	out := make([]holdingResponse, 0, len(hs))
	for i := range hs {
		out = append(out, *newHoldingResponse(&hs[i]))
	}
	return out
}

func newSummaryResponse(s ledger.Summary) summaryResponse {
	return summaryResponse{
		Balance:          s.Balance.InexactFloat64(),
		TotalMarketValue: s.TotalMarketValue.InexactFloat64(),
		NetWorth:         s.NetWorth.InexactFloat64(),
	}
}

func newDeltaResponse(d domain.LedgerDelta) deltaResponse {
	return deltaResponse{
		IntentID: d.IntentID,
		Kind:     d.Kind,
		Symbol:   d.Symbol,
		Wallet:   newWalletResponse(d.Wallet),
		Holding:  newHoldingResponse(d.Holding),
		Deleted:  d.Deleted,
		Replayed: d.Replayed,
		At:       d.At,
	}
}
