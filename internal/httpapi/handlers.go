package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/ledger"
	"go.uber.org/zap"
)

const idempotencyHeader = "Idempotency-Key"

var costTolerance = decimal.RequireFromString("0.01")

func (s *Server) getWallet(c *gin.Context) {
	w, err := s.query.Wallet(c.Request.Context())
	if err != nil {
		s.readFailed(c, "Wallet", err)
		return
	}
	c.JSON(http.StatusOK, newWalletResponse(w))
}

func (s *Server) updateWallet(c *gin.Context) {
	var req walletUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.NewBalance == nil {
		s.badRequest(c, domain.KindInvalidBalance, "newBalance is required")
		return
	}

	if _, err := s.exec.SetBalance(c.Request.Context(), *req.NewBalance); err != nil {
		s.tradeFailed(c, "SetBalance", domain.SideBuy, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) getNetWorth(c *gin.Context) {
	sum, err := s.query.Summary(c.Request.Context())
	if err != nil {
		s.readFailed(c, "Summary", err)
		return
	}
	c.JSON(http.StatusOK, newSummaryResponse(sum))
}

func (s *Server) getHoldings(c *gin.Context) {
	hs, err := s.query.Holdings(c.Request.Context())
	if err != nil {
		s.readFailed(c, "Holdings", err)
		return
	}
	c.JSON(http.StatusOK, newHoldingsResponse(hs))
}

func (s *Server) getHolding(c *gin.Context) {
	symbol := domain.NormalizeSymbol(c.Param("symbol"))
	if symbol == "" {
		s.badRequest(c, domain.KindInvalidSymbol, domain.UserMessage(domain.KindInvalidSymbol, domain.SideBuy))
		return
	}

	h, err := s.query.Holding(c.Request.Context(), symbol)
	if err != nil {
		s.readFailed(c, "Holding", err)
		return
	}
	if h == nil {
		c.JSON(http.StatusNotFound, errorResponse{
			Error: domain.UserMessage(domain.KindNoPosition, domain.SideSell),
			Code:  string(domain.KindNoPosition),
		})
		return
	}
	c.JSON(http.StatusOK, newHoldingResponse(h))
}

func (s *Server) getTradeStatus(c *gin.Context) {
	id := strings.TrimSpace(c.Param("intentId"))
	ok, err := s.exec.Status(c.Request.Context(), id)
	if err != nil {
		s.tradeFailed(c, "Status", domain.SideBuy, err)
		return
	}
	c.JSON(http.StatusOK, statusResponse{IntentID: id, Committed: ok})
}

func (s *Server) buy(c *gin.Context) {
	s.trade(c, domain.SideBuy, "Portfolio updated successfully")
}

func (s *Server) sell(c *gin.Context) {
	s.trade(c, domain.SideSell, "Stock sold successfully")
}

func (s *Server) trade(c *gin.Context, side domain.Side, message string) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, domain.KindInvalidQuantity, "malformed trade request")
		return
	}
	if !req.Quantity.IsInteger() {
		s.badRequest(c, domain.KindInvalidQuantity, domain.UserMessage(domain.KindInvalidQuantity, side))
		return
	}
	// IntPart silently wraps anything wider than int64
	if !req.Quantity.BigInt().IsInt64() {
		s.badRequest(c, domain.KindInvalidQuantity, "Quantity is out of range")
		return
	}

	id := strings.TrimSpace(req.IntentID)
	if id == "" {
		id = strings.TrimSpace(c.GetHeader(idempotencyHeader))
	}
	intent := domain.NewTradeIntent(id, side, req.Symbol, req.Name, req.Quantity.IntPart(), req.CurrentPrice)
	if err := intent.Validate(); err != nil {
		s.tradeFailed(c, "Validate", side, err)
		return
	}

	ctx := c.Request.Context()
	s.warnCostMismatch(intent, req.TotalCost)

	if err := s.checkPrice(ctx, intent); err != nil {
		s.tradeFailed(c, "PriceGuard", side, err)
		return
	}

	delta, err := s.exec.Apply(ctx, intent)
	if err != nil {
		s.tradeFailed(c, "Apply", side, err)
		return
	}

	c.JSON(http.StatusOK, tradeResponse{
		Message:  message,
		Detail:   intent.SuccessMessage(),
		IntentID: delta.IntentID,
		Replayed: delta.Replayed,
		Wallet:   newWalletResponse(delta.Wallet),
		Holding:  newHoldingResponse(delta.Holding),
		Deleted:  delta.Deleted,
	})
}

// checkPrice skips intents that already committed so a retried request is not rejected by a moved market.
func (s *Server) checkPrice(ctx context.Context, intent domain.TradeIntent) error {
	if !s.guard.Enabled() {
		return nil
	}
	done, err := s.exec.Status(ctx, intent.ID)
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	return s.guard.Check(ctx, intent.Symbol, intent.Price)
}

func (s *Server) warnCostMismatch(intent domain.TradeIntent, clientTotal decimal.Decimal) {
	if clientTotal.IsZero() {
		return
	}
	if clientTotal.Sub(intent.Cost()).Abs().GreaterThan(costTolerance) {
		s.logger.Warn("client total cost differs from quantity x price",
			zap.String("intent_id", intent.ID),
			zap.String("symbol", intent.Symbol),
			zap.String("client_total", clientTotal.String()),
			zap.String("ledger_total", intent.Cost().String()))
	}
}

func (s *Server) readFailed(c *gin.Context, where string, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		c.JSON(statusClientClosedRequest, errorResponse{Error: "Request canceled", Code: string(domain.KindCanceled)})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ledger.ErrWalletNotFound):
		s.logger.Warn("ledger read unavailable", zap.String("where", where), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, errorResponse{
			Error: domain.UserMessage(domain.KindStoreUnavailable, domain.SideBuy),
			Code:  string(domain.KindStoreUnavailable),
		})
	default:
		s.internalError(c, where, err)
	}
}
