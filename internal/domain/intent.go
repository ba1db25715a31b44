package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeIntent is an unvalidated request to buy or sell shares at an observed price.
// ID doubles as the idempotency key of the resulting commit.
type TradeIntent struct {
	ID       string
	Side     Side
	Symbol   string
	Name     string
	Quantity int64
	Price    decimal.Decimal
}

// NewTradeIntent normalizes the symbol and assigns a fresh ID when id is empty.
// It does not validate; the executor does that before touching the ledger.
func NewTradeIntent(id string, side Side, symbol, name string, quantity int64, price decimal.Decimal) TradeIntent {
	if id == "" {
		id = uuid.NewString()
	}
	return TradeIntent{
		ID:       id,
		Side:     side,
		Symbol:   NormalizeSymbol(symbol),
		Name:     name,
		Quantity: quantity,
		Price:    price,
	}
}

// Cost is quantity times price: the cash paid on a buy or received on a sell.
func (t TradeIntent) Cost() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}

// Validate checks the ledger-independent preconditions.
func (t TradeIntent) Validate() error {
	if !t.Side.Valid() {
		return NewTradeError(KindInvalidQuantity, "unknown side %d", int(t.Side))
	}
	if t.Quantity <= 0 {
		return NewTradeError(KindInvalidQuantity, "cannot %s %d shares", t.Side, t.Quantity)
	}
	if NormalizeSymbol(t.Symbol) == "" {
		return ErrInvalidSymbol
	}
	if !t.Price.IsPositive() {
		return NewTradeError(KindInvalidPrice, "price %s must be positive", t.Price)
	}
	return nil
}

// Fingerprint identifies what the intent does, independent of its ID and the company name.
// Two requests sharing an ID must share a fingerprint to count as the same trade.
func (t TradeIntent) Fingerprint() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s", t.Side, NormalizeSymbol(t.Symbol), t.Quantity, t.Price.String())))
	return hex.EncodeToString(sum[:])
}

// SuccessMessage is the confirmation shown after the intent settles.
func (t TradeIntent) SuccessMessage() string {
	return fmt.Sprintf("You have successfully %s %d shares of %s.", t.Side.Verb(), t.Quantity, t.Symbol)
}
