// Package journaled turns the two independent filestore records into an atomic ledger.Store
// by journaling every batch with a before-image and compensating on failure.
package journaled

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/journal"
	"github.com/vadiminshakov/papertrade/internal/ledger"
	"github.com/vadiminshakov/papertrade/internal/storage/filestore"
	"go.uber.org/zap"
)

const defaultRollbackTimeout = 10 * time.Second

var errInterrupted = errors.New("interrupted before completion")

// Store commits each batch as prepare, apply holdings, apply wallet, mark applied.
// A failure at any step restores the before-image.
type Store struct {
	files   *filestore.Store
	journal *journal.Journal
	logger  *zap.Logger

	rollbackTimeout time.Duration

	// writers hold mu exclusively so readers never observe a half-applied batch
	mu sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRollbackTimeout bounds a compensating rollback.
func WithRollbackTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.rollbackTimeout = d
		}
	}
}

// New composes files and j and rolls back every intent left pending by a crash.
func New(files *filestore.Store, j *journal.Journal, opts ...Option) (*Store, error) {
	if files == nil || j == nil {
		return nil, errors.New("journaled store needs files and a journal")
	}
	s := &Store{
		files:           files,
		journal:         j,
		logger:          zap.NewNop(),
		rollbackTimeout: defaultRollbackTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.reconcile(); err != nil {
		return nil, err
	}
	return s, nil
}

// reconcile restores the before-image of pending intents, oldest last so the
// earliest state wins when several were interrupted.
func (s *Store) reconcile() error {
	pending := s.journal.Pending()
	for i := len(pending) - 1; i >= 0; i-- {
		rec := pending[i]
		s.logger.Warn("rolling back interrupted intent", zap.String("intent_id", rec.ID))

		ctx, cancel := context.WithTimeout(context.Background(), s.rollbackTimeout)
		err := s.restore(ctx, rec.Before)
		cancel()
		if err != nil {
			return errors.Wrapf(err, "reconcile intent %s", rec.ID)
		}
		if err := s.journal.MarkRolledBack(rec, errInterrupted); err != nil {
			return errors.Wrapf(err, "reconcile intent %s", rec.ID)
		}
	}
	if len(pending) > 0 {
		s.logger.Info("reconciliation complete", zap.Int("rolled_back", len(pending)))
	}
	return nil
}

func (s *Store) GetWallet(ctx context.Context) (domain.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return domain.Wallet{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.walletLocked()
}

func (s *Store) GetHolding(ctx context.Context, symbol string) (*domain.Holding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	holdings, err := s.files.LoadHoldings()
	if err != nil {
		return nil, err
	}
	for i := range holdings {
		if holdings[i].Symbol == symbol {
			return &holdings[i], nil
		}
	}
	return nil, nil
}

func (s *Store) ListHoldings(ctx context.Context) ([]domain.Holding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.files.LoadHoldings()
}

func (s *Store) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, err := s.walletLocked()
	if err != nil {
		return domain.Snapshot{}, err
	}
	holdings, err := s.files.LoadHoldings()
	if err != nil {
		return domain.Snapshot{}, err
	}
	return domain.Snapshot{Wallet: w, Holdings: holdings}, nil
}

func (s *Store) Committed(ctx context.Context, intentID string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	rec, ok := s.journal.Get(intentID)
	if !ok || rec.Status != journal.StatusApplied {
		return "", false, nil
	}
	return rec.Batch.Fingerprint, true, nil
}

func (s *Store) Commit(ctx context.Context, batch ledger.Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if status, ok := s.journal.Lookup(batch.IntentID); ok && status == journal.StatusApplied {
		return nil
	}

	before, err := s.beforeImage(batch)
	if err != nil {
		return err
	}

	rec, err := s.journal.Prepare(batch, before)
	if err != nil {
		return errors.Wrap(err, "prepare intent")
	}

	if err := s.apply(ctx, batch, before); err != nil {
		return s.rollback(rec, err)
	}
	if err := s.journal.MarkApplied(rec); err != nil {
		return s.rollback(rec, errors.Wrap(err, "mark intent applied"))
	}
	return nil
}

func (s *Store) Close() error {
	return s.journal.Close()
}

func (s *Store) walletLocked() (domain.Wallet, error) {
	w, err := s.files.LoadWallet()
	if err != nil {
		return domain.Wallet{}, err
	}
	if w == nil {
		return domain.Wallet{}, ledger.ErrWalletNotFound
	}
	return *w, nil
}

func (s *Store) beforeImage(batch ledger.Batch) (journal.BeforeImage, error) {
	var before journal.BeforeImage

	w, err := s.files.LoadWallet()
	if err != nil {
		return before, err
	}
	before.Wallet = w

	for _, m := range batch.Mutations {
		if m.Kind == ledger.MutationUpsertHolding || m.Kind == ledger.MutationDeleteHolding {
			before.HoldingsTouched = true
			break
		}
	}
	if before.HoldingsTouched {
		holdings, err := s.files.LoadHoldings()
		if err != nil {
			return before, err
		}
		before.Holdings = holdings
	}
	return before, nil
}

// apply writes the holdings record first and the wallet record second.
func (s *Store) apply(ctx context.Context, batch ledger.Batch, before journal.BeforeImage) error {
	var wallet *domain.Wallet
	holdings := append([]domain.Holding(nil), before.Holdings...)

	for _, m := range batch.Mutations {
		switch m.Kind {
		case ledger.MutationSetWallet:
			w := m.Wallet
			wallet = &w
		case ledger.MutationUpsertHolding:
			holdings = upsert(holdings, m.Holding)
		case ledger.MutationDeleteHolding:
			holdings = remove(holdings, m.Symbol)
		}
	}

	if before.HoldingsTouched {
		if err := s.files.SaveHoldings(ctx, holdings); err != nil {
			return errors.Wrap(err, "apply holdings")
		}
	}
	if wallet != nil {
		if err := s.files.SaveWallet(ctx, *wallet); err != nil {
			return errors.Wrap(err, "apply wallet")
		}
	}
	return nil
}

// rollback runs detached from the caller so a cancelled or timed out request still compensates.
func (s *Store) rollback(rec *journal.Record, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.rollbackTimeout)
	defer cancel()

	if err := s.restore(ctx, rec.Before); err != nil {
		s.logger.Error("rollback failed, intent left pending for reconciliation",
			zap.String("intent_id", rec.ID), zap.Error(err), zap.NamedError("cause", cause))
		return errors.Wrapf(cause, "rollback failed: %v", err)
	}
	if err := s.journal.MarkRolledBack(rec, cause); err != nil {
		s.logger.Error("failed to mark intent rolled back", zap.String("intent_id", rec.ID), zap.Error(err))
	}

	s.logger.Warn("intent rolled back", zap.String("intent_id", rec.ID), zap.Error(cause))
	return cause
}

func (s *Store) restore(ctx context.Context, before journal.BeforeImage) error {
	if before.HoldingsTouched {
		if err := s.files.SaveHoldings(ctx, before.Holdings); err != nil {
			return errors.Wrap(err, "restore holdings")
		}
	}
	if before.Wallet == nil {
		return errors.Wrap(s.files.RemoveWallet(ctx), "restore wallet")
	}
	return errors.Wrap(s.files.SaveWallet(ctx, *before.Wallet), "restore wallet")
}

func upsert(holdings []domain.Holding, h domain.Holding) []domain.Holding {
	for i := range holdings {
		if holdings[i].Symbol == h.Symbol {
			holdings[i] = h
			return holdings
		}
	}
	return append(holdings, h)
}

func remove(holdings []domain.Holding, symbol string) []domain.Holding {
	for i := range holdings {
		if holdings[i].Symbol == symbol {
			return append(holdings[:i], holdings[i+1:]...)
		}
	}
	return holdings
}
