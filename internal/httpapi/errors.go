package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vadiminshakov/papertrade/internal/domain"
	"go.uber.org/zap"
)

// statusClientClosedRequest is the nginx convention for a request the client abandoned.
const statusClientClosedRequest = 499

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidQuantity, domain.KindInvalidPrice, domain.KindInvalidSymbol,
		domain.KindInvalidBalance, domain.KindInvalidIntent, domain.KindInsufficientFunds, domain.KindInsufficientShares:
		return http.StatusBadRequest
	case domain.KindNoPosition:
		return http.StatusNotFound
	case domain.KindPriceRejected, domain.KindIntentConflict:
		return http.StatusConflict
	case domain.KindCanceled:
		return statusClientClosedRequest
	case domain.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) badRequest(c *gin.Context, kind domain.ErrorKind, msg string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: msg, Code: string(kind)})
}

func (s *Server) tradeFailed(c *gin.Context, where string, side domain.Side, err error) {
	kind := domain.KindOf(err)
	if kind == "" {
		s.internalError(c, where, err)
		return
	}

	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error("ledger failure", zap.String("where", where), zap.String("kind", string(kind)), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("where", where), zap.String("kind", string(kind)), zap.Error(err))
	}
	c.JSON(status, errorResponse{Error: domain.UserMessage(kind, side), Code: string(kind)})
}

func (s *Server) internalError(c *gin.Context, where string, err error) {
	s.logger.Error("internal_error", zap.String("where", where), zap.Error(err))
	c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error", Code: "internal"})
}
