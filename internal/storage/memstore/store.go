// Package memstore keeps the ledger in process memory.
package memstore

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/ledger"
)

// DefaultCommitLimit is how many committed intent IDs a store remembers for idempotency checks.
const DefaultCommitLimit = 10_000

// Hook runs before a store operation and can fail or stall it.
type Hook func(ctx context.Context, batch ledger.Batch) error

// Store is an in-memory ledger.Store. Commit swaps state under one lock so batches are atomic.
type Store struct {
	mu        sync.RWMutex
	wallet    *domain.Wallet
	holdings  map[string]domain.Holding
	order     []string
	committed map[string]string
	// commitOrder holds committed IDs oldest first; the oldest are forgotten past commitLimit
	commitOrder []string
	commitLimit int

	beforeCommit Hook
}

// Option configures a Store.
type Option func(*Store)

// WithCommitHook installs a hook invoked before every commit.
func WithCommitHook(h Hook) Option {
	return func(s *Store) { s.beforeCommit = h }
}

// WithCommitLimit bounds how many committed intent IDs are remembered.
func WithCommitLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.commitLimit = n
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		holdings:    make(map[string]domain.Holding),
		committed:   make(map[string]string),
		commitLimit: DefaultCommitLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetCommitHook replaces the commit hook.
func (s *Store) SetCommitHook(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeCommit = h
}

// Put writes a holding bypassing validation. Tests use it to plant corrupt state.
func (s *Store) Put(h domain.Holding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.holdings[h.Symbol]; !ok {
		s.order = append(s.order, h.Symbol)
	}
	s.holdings[h.Symbol] = h
}

// PutWallet writes the wallet bypassing validation.
func (s *Store) PutWallet(w domain.Wallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallet = &w
}

func (s *Store) GetWallet(ctx context.Context) (domain.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return domain.Wallet{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.wallet == nil {
		return domain.Wallet{}, ledger.ErrWalletNotFound
	}
	return *s.wallet, nil
}

func (s *Store) GetHolding(ctx context.Context, symbol string) (*domain.Holding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.holdings[symbol]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (s *Store) ListHoldings(ctx context.Context) ([]domain.Holding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(), nil
}

func (s *Store) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.wallet == nil {
		return domain.Snapshot{}, ledger.ErrWalletNotFound
	}
	return domain.Snapshot{Wallet: *s.wallet, Holdings: s.listLocked()}, nil
}

func (s *Store) Commit(ctx context.Context, batch ledger.Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}

	s.mu.RLock()
	hook := s.beforeCommit
	s.mu.RUnlock()
	if hook != nil {
		if err := hook(ctx, batch); err != nil {
			return errors.Wrap(err, "memstore commit")
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.committed[batch.IntentID]; ok {
		return nil
	}

	for _, m := range batch.Mutations {
		switch m.Kind {
		case ledger.MutationSetWallet:
			w := m.Wallet
			s.wallet = &w
		case ledger.MutationUpsertHolding:
			if _, ok := s.holdings[m.Symbol]; !ok {
				s.order = append(s.order, m.Symbol)
			}
			s.holdings[m.Symbol] = m.Holding
		case ledger.MutationDeleteHolding:
			if _, ok := s.holdings[m.Symbol]; ok {
				delete(s.holdings, m.Symbol)
				s.removeFromOrder(m.Symbol)
			}
		}
	}
	s.rememberLocked(batch.IntentID, batch.Fingerprint)

	return nil
}

func (s *Store) Committed(ctx context.Context, intentID string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fp, ok := s.committed[intentID]
	return fp, ok, nil
}

func (s *Store) rememberLocked(id, fingerprint string) {
	if _, ok := s.committed[id]; !ok {
		s.commitOrder = append(s.commitOrder, id)
	}
	s.committed[id] = fingerprint
	for len(s.commitOrder) > s.commitLimit {
		delete(s.committed, s.commitOrder[0])
		s.commitOrder = s.commitOrder[1:]
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) listLocked() []domain.Holding {
	out := make([]domain.Holding, 0, len(s.order))
	for _, sym := range s.order {
		out = append(out, s.holdings[sym])
	}
	return out
}

func (s *Store) removeFromOrder(symbol string) {
	for i, sym := range s.order {
		if sym == symbol {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// Commit is a remembered intent ID with the fingerprint it was committed under.
type Commit struct {
	ID          string `json:"id"`
	Fingerprint string `json:"fp,omitempty"`
}

// State is a full copy of the store contents. Committed is oldest first.
type State struct {
	Wallet    *domain.Wallet   `json:"wallet,omitempty"`
	Holdings  []domain.Holding `json:"holdings"`
	Committed []Commit         `json:"committed"`
}

// Export copies the store contents.
func (s *Store) Export() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{Holdings: s.listLocked(), Committed: make([]Commit, 0, len(s.commitOrder))}
	if s.wallet != nil {
		w := *s.wallet
		st.Wallet = &w
	}
	for _, id := range s.commitOrder {
		st.Committed = append(st.Committed, Commit{ID: id, Fingerprint: s.committed[id]})
	}
	return st
}

// Import replaces the store contents with st.
func (s *Store) Import(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wallet = nil
	if st.Wallet != nil {
		w := *st.Wallet
		s.wallet = &w
	}
	s.holdings = make(map[string]domain.Holding, len(st.Holdings))
	s.order = s.order[:0]
	for _, h := range st.Holdings {
		s.holdings[h.Symbol] = h
		s.order = append(s.order, h.Symbol)
	}
	s.committed = make(map[string]string, len(st.Committed))
	s.commitOrder = make([]string, 0, len(st.Committed))
	for _, c := range st.Committed {
		s.rememberLocked(c.ID, c.Fingerprint)
	}
}
