package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a ledger operation failed.
type ErrorKind string

const (
	KindInvalidQuantity    ErrorKind = "invalid_quantity"
	KindInvalidPrice       ErrorKind = "invalid_price"
	KindInvalidSymbol      ErrorKind = "invalid_symbol"
	KindInvalidBalance     ErrorKind = "invalid_balance"
	KindInvalidIntent      ErrorKind = "invalid_intent"
	KindIntentConflict     ErrorKind = "intent_conflict"
	KindInsufficientFunds  ErrorKind = "insufficient_funds"
	KindInsufficientShares ErrorKind = "insufficient_shares"
	KindNoPosition         ErrorKind = "no_position"
	KindPriceRejected      ErrorKind = "price_rejected"
	KindCanceled           ErrorKind = "canceled"
	KindStoreUnavailable   ErrorKind = "store_unavailable"
	KindStoreCorruption    ErrorKind = "store_corruption"
)

// TradeError is the typed failure returned by the ledger.
// errors.Is matches on Kind, so callers compare against the Err* sentinels.
type TradeError struct {
	Kind    ErrorKind
	Message string
	cause   error
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidQuantity    = &TradeError{Kind: KindInvalidQuantity, Message: "quantity must be positive"}
	ErrInvalidPrice       = &TradeError{Kind: KindInvalidPrice, Message: "price must be positive"}
	ErrInvalidSymbol      = &TradeError{Kind: KindInvalidSymbol, Message: "symbol is required"}
	ErrInvalidBalance     = &TradeError{Kind: KindInvalidBalance, Message: "balance must not be negative"}
	ErrInvalidIntent      = &TradeError{Kind: KindInvalidIntent, Message: "intent id is required"}
	ErrIntentConflict     = &TradeError{Kind: KindIntentConflict, Message: "intent id reused for a different trade"}
	ErrInsufficientFunds  = &TradeError{Kind: KindInsufficientFunds, Message: "insufficient funds"}
	ErrInsufficientShares = &TradeError{Kind: KindInsufficientShares, Message: "insufficient shares"}
	ErrNoPosition         = &TradeError{Kind: KindNoPosition, Message: "no position"}
	ErrPriceRejected      = &TradeError{Kind: KindPriceRejected, Message: "price rejected"}
	ErrCanceled           = &TradeError{Kind: KindCanceled, Message: "request canceled"}
	ErrStoreUnavailable   = &TradeError{Kind: KindStoreUnavailable, Message: "store unavailable"}
	ErrStoreCorruption    = &TradeError{Kind: KindStoreCorruption, Message: "store corruption"}
)

// NewTradeError builds a TradeError of the given kind with a formatted message.
func NewTradeError(kind ErrorKind, format string, args ...any) *TradeError {
	return &TradeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapTradeError builds a TradeError of the given kind around cause.
func WrapTradeError(kind ErrorKind, cause error, format string, args ...any) *TradeError {
	return &TradeError{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

func (e *TradeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *TradeError) Unwrap() error { return e.cause }

// Is reports kind equality. NoPosition is a specific case of InsufficientShares.
func (e *TradeError) Is(target error) bool {
	t, ok := target.(*TradeError)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindInsufficientShares && e.Kind == KindNoPosition
}

// KindOf extracts the ErrorKind from err, or "" when err is not a TradeError.
func KindOf(err error) ErrorKind {
	var te *TradeError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// UserMessage returns the short message shown to the user for a failure of the given kind.
func UserMessage(kind ErrorKind, side Side) string {
	switch kind {
	case KindInvalidQuantity:
		if side == SideSell {
			return "Cannot sell non-positive shares"
		}
		return "Cannot buy non-positive shares"
	case KindInvalidPrice:
		return "Price must be positive"
	case KindInvalidSymbol:
		return "Symbol is required"
	case KindInvalidBalance:
		return "Balance cannot be negative"
	case KindInvalidIntent:
		return "Intent id is required"
	case KindIntentConflict:
		return "This idempotency key was already used for a different trade"
	case KindInsufficientFunds:
		return "Not enough money to buy"
	case KindInsufficientShares:
		return "Insufficient quantity to sell"
	case KindNoPosition:
		return "Stock not found in the portfolio"
	case KindPriceRejected:
		return "Price has moved, refresh the quote and try again"
	case KindCanceled:
		return "Request canceled"
	case KindStoreUnavailable:
		return "Ledger is temporarily unavailable, try again"
	case KindStoreCorruption:
		return "Ledger integrity check failed"
	default:
		if side == SideSell {
			return "Sale failed"
		}
		return "Purchase failed"
	}
}
