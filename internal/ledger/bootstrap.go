package ledger

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrade/internal/domain"
	"go.uber.org/zap"
)

const bootstrapIntentID = "bootstrap-wallet"

// Bootstrap creates the wallet with seed when the store has none and returns the current wallet.
func Bootstrap(ctx context.Context, store Store, seed decimal.Decimal, logger *zap.Logger) (domain.Wallet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	w, err := store.GetWallet(ctx)
	if err == nil {
		if err := w.Validate(); err != nil {
			return domain.Wallet{}, err
		}
		logger.Info("wallet loaded", zap.String("balance", w.Balance.String()))
		return w, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return domain.Wallet{}, errors.Wrap(err, "read wallet")
	}

	w, err = domain.NewWallet(seed)
	if err != nil {
		return domain.Wallet{}, errors.Wrapf(err, "seed balance %s", seed)
	}
	batch := Batch{IntentID: bootstrapIntentID, Mutations: []Mutation{SetWallet(w)}}
	if err := store.Commit(ctx, batch); err != nil {
		return domain.Wallet{}, errors.Wrap(err, "seed wallet")
	}

	logger.Info("wallet seeded", zap.String("balance", w.Balance.String()))
	return w, nil
}
