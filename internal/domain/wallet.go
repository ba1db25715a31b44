package domain

import "github.com/shopspring/decimal"

// SeedBalance is the cash balance the wallet is created with on first boot.
var SeedBalance = decimal.NewFromInt(25000)

// Wallet is the singleton cash record.
type Wallet struct {
	Balance decimal.Decimal `json:"balance"`
}

// NewWallet returns a wallet holding balance, rejecting negative amounts.
func NewWallet(balance decimal.Decimal) (Wallet, error) {
	if balance.IsNegative() {
		return Wallet{}, ErrInvalidBalance
	}
	return Wallet{Balance: balance}, nil
}

// Debit returns the wallet after paying amount.
func (w Wallet) Debit(amount decimal.Decimal) (Wallet, error) {
	if amount.GreaterThan(w.Balance) {
		return w, NewTradeError(KindInsufficientFunds, "cost %s exceeds balance %s", amount, w.Balance)
	}
	return Wallet{Balance: w.Balance.Sub(amount)}, nil
}

// Credit returns the wallet after receiving amount.
func (w Wallet) Credit(amount decimal.Decimal) Wallet {
	return Wallet{Balance: w.Balance.Add(amount)}
}

// Validate reports a corrupted wallet read back from a store.
func (w Wallet) Validate() error {
	if w.Balance.IsNegative() {
		return NewTradeError(KindStoreCorruption, "wallet balance %s is negative", w.Balance)
	}
	return nil
}
