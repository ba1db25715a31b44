// Package ledger settles trade intents against a Store holding the wallet and holdings.
package ledger

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/papertrade/internal/domain"
)

var (
	// ErrWalletNotFound is returned by GetWallet before the wallet is seeded.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrCorrupt marks persisted data that cannot be decoded.
	ErrCorrupt = errors.New("ledger data is corrupt")
)

// Reader is the read half of a Store.
type Reader interface {
	// GetWallet returns ErrWalletNotFound when the wallet has not been seeded.
	GetWallet(ctx context.Context) (domain.Wallet, error)
	// GetHolding returns nil, nil when no holding exists for symbol.
	GetHolding(ctx context.Context, symbol string) (*domain.Holding, error)
	// ListHoldings returns holdings in insertion order.
	ListHoldings(ctx context.Context) ([]domain.Holding, error)
	// Snapshot returns wallet and holdings read consistently.
	Snapshot(ctx context.Context) (domain.Snapshot, error)
}

// Store persists the ledger. Commit applies every mutation of a batch or none of them.
type Store interface {
	Reader
	Commit(ctx context.Context, batch Batch) error
	// Committed reports whether a batch with intentID was already committed,
	// and the fingerprint that batch carried.
	Committed(ctx context.Context, intentID string) (fingerprint string, ok bool, err error)
	Close() error
}

// MutationKind enumerates the record changes a batch can carry.
type MutationKind int

const (
	MutationSetWallet MutationKind = iota + 1
	MutationUpsertHolding
	MutationDeleteHolding
)

func (k MutationKind) String() string {
	switch k {
	case MutationSetWallet:
		return "set_wallet"
	case MutationUpsertHolding:
		return "upsert_holding"
	case MutationDeleteHolding:
		return "delete_holding"
	default:
		return "unknown"
	}
}

// Mutation is one record change.
type Mutation struct {
	Kind    MutationKind   `json:"kind"`
	Wallet  domain.Wallet  `json:"wallet"`
	Holding domain.Holding `json:"holding"`
	Symbol  string         `json:"symbol,omitempty"`
}

// SetWallet overwrites the wallet record.
func SetWallet(w domain.Wallet) Mutation {
	return Mutation{Kind: MutationSetWallet, Wallet: w}
}

// UpsertHolding inserts or replaces the holding for h.Symbol.
func UpsertHolding(h domain.Holding) Mutation {
	return Mutation{Kind: MutationUpsertHolding, Holding: h, Symbol: h.Symbol}
}

// DeleteHolding removes the holding for symbol.
func DeleteHolding(symbol string) Mutation {
	return Mutation{Kind: MutationDeleteHolding, Symbol: symbol}
}

// Batch is the unit of atomicity handed to Store.Commit.
// Fingerprint identifies the request behind a trade batch and is empty for balance overwrites.
type Batch struct {
	IntentID    string     `json:"intentId"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	Mutations   []Mutation `json:"mutations"`
}

// Validate rejects batches a store must never apply.
func (b Batch) Validate() error {
	if b.IntentID == "" {
		return errors.New("batch intent id is required")
	}
	if len(b.Mutations) == 0 {
		return errors.New("batch has no mutations")
	}
	for _, m := range b.Mutations {
		switch m.Kind {
		case MutationSetWallet:
			if m.Wallet.Balance.IsNegative() {
				return errors.Errorf("batch %s sets negative balance %s", b.IntentID, m.Wallet.Balance)
			}
		case MutationUpsertHolding:
			if m.Holding.Quantity < 1 {
				return errors.Errorf("batch %s upserts %s with quantity %d", b.IntentID, m.Symbol, m.Holding.Quantity)
			}
		case MutationDeleteHolding:
			if m.Symbol == "" {
				return errors.Errorf("batch %s deletes an empty symbol", b.IntentID)
			}
		default:
			return errors.Errorf("batch %s has unknown mutation %d", b.IntentID, int(m.Kind))
		}
	}
	return nil
}
